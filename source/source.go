// Package source locates the package file to upload. A location is a local
// path or glob, an s3://bucket/key object or an http(s) URL. Remote files are
// staged in a temporary directory that File.Close removes.
package source

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
)

// File is a package file available on the local disk.
type File struct {
	// Path is the local path to read from.
	Path string
	// Name is the file name reported to the service.
	Name string
	Size int64

	cleanup func() error
}

// Close removes the staged copy of a remote file. Local files are kept.
func (f *File) Close() error {
	if f.cleanup == nil {
		return nil
	}
	cleanup := f.cleanup
	f.cleanup = nil
	return cleanup()
}

// S3Config configures access to s3:// locations. Empty keys fall back to the
// default AWS credential chain.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	NumFullRetries  int
}

// Resolver turns locations into local files.
type Resolver struct {
	logger     log.Logger
	httpClient *http.Client
	s3Config   S3Config
	newS3      func(ctx context.Context) (s3Client, error)
	retryWait  time.Duration

	pathProvider pathutil.PathProvider
	pathModifier pathutil.PathModifier
	pathChecker  pathutil.PathChecker
}

// NewResolver creates a resolver. httpClient is used for http(s) downloads.
func NewResolver(httpClient *http.Client, s3Config S3Config, logger log.Logger) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if s3Config.NumFullRetries <= 0 {
		s3Config.NumFullRetries = 3
	}
	r := &Resolver{
		logger:       logger,
		httpClient:   httpClient,
		s3Config:     s3Config,
		retryWait:    5 * time.Second,
		pathProvider: pathutil.NewPathProvider(),
		pathModifier: pathutil.NewPathModifier(),
		pathChecker:  pathutil.NewPathChecker(),
	}
	r.newS3 = r.defaultS3Client
	return r
}

// Resolve returns the local file for location.
func (r *Resolver) Resolve(ctx context.Context, location string) (*File, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return nil, fmt.Errorf("package location is empty")
	case strings.HasPrefix(location, "s3://"):
		return r.fetchS3(ctx, location)
	case strings.HasPrefix(location, "https://"), strings.HasPrefix(location, "http://"):
		return r.fetchHTTP(ctx, location)
	default:
		return r.resolveLocal(location)
	}
}

// stagingDir creates a temp dir and the cleanup that removes it.
func (r *Resolver) stagingDir() (string, func() error, error) {
	dir, err := r.pathProvider.CreateTempDir("package-uploader")
	if err != nil {
		return "", nil, fmt.Errorf("create staging dir: %w", err)
	}
	return dir, func() error { return os.RemoveAll(dir) }, nil
}

func stagedFile(path, name string, cleanup func() error) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		_ = cleanup()
		return nil, err
	}
	return &File{Path: path, Name: name, Size: info.Size(), cleanup: cleanup}, nil
}
