package source

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/melbahja/got"
	"github.com/microsoft/PackageUploader-sub002/errkind"
	"github.com/microsoft/PackageUploader-sub002/network"
)

func (r *Resolver) fetchHTTP(ctx context.Context, location string) (*File, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, errkind.ConfigError("invalid package url %q: %s", location, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return nil, errkind.ConfigError("package url %q has no file name", location)
	}

	printable := network.Redact(u.Redacted())

	dir, cleanup, err := r.stagingDir()
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(dir, name)

	r.logger.Infof("Downloading %s", printable)
	downloader := got.New()
	downloader.Client = r.httpClient
	if err := downloader.Do(got.NewDownload(ctx, location, dest)); err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("download %s: %w", printable, err)
	}

	return stagedFile(dest, name, cleanup)
}
