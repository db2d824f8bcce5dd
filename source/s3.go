package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/microsoft/PackageUploader-sub002/errkind"
)

type s3Client interface {
	manager.DownloadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

func parseS3Location(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", errkind.ConfigError("invalid s3 location %q: %s", location, err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", errkind.ConfigError("s3 location %q must be s3://bucket/key", location)
	}
	return bucket, key, nil
}

func (r *Resolver) fetchS3(ctx context.Context, location string) (*File, error) {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return nil, err
	}

	client, err := r.newS3(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws credentials: %w", err)
	}

	err = retry.Times(uint(r.s3Config.NumFullRetries)).Wait(r.retryWait).TryWithAbort(func(attempt uint) (error, bool) {
		_, err := client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return nil, true
		}
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return errkind.NotFoundError("head object", "package file", fmt.Errorf("%s not found in bucket %s", key, bucket)), true
		}
		var apiError smithy.APIError
		if errors.As(err, &apiError) && apiError.ErrorCode() == "Forbidden" {
			return fmt.Errorf("head object %s: %w", key, err), true
		}
		r.logger.Debugf("head object %s (attempt %d): %s", key, attempt, err)
		return err, false
	})
	if err != nil {
		return nil, err
	}

	dir, cleanup, err := r.stagingDir()
	if err != nil {
		return nil, err
	}
	name := path.Base(key)
	dest := filepath.Join(dir, name)

	r.logger.Infof("Downloading s3://%s/%s", bucket, key)
	downloader := manager.NewDownloader(client)
	err = retry.Times(uint(r.s3Config.NumFullRetries)).Wait(r.retryWait).TryWithAbort(func(attempt uint) (error, bool) {
		file, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("create file: %w", err), true
		}
		defer file.Close() //nolint:errcheck

		if _, err := downloader.Download(ctx, file, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err(), true
			}
			r.logger.Debugf("download %s (attempt %d): %s", key, attempt, err)
			return fmt.Errorf("get object: %w", err), false
		}
		return nil, true
	})
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}

	return stagedFile(dest, name, cleanup)
}

func (r *Resolver) defaultS3Client(ctx context.Context) (s3Client, error) {
	opts := []func(*config.LoadOptions) error{}
	if r.s3Config.Region != "" {
		opts = append(opts, config.WithRegion(r.s3Config.Region))
	}
	if r.s3Config.AccessKeyID != "" && r.s3Config.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(r.s3Config.AccessKeyID, r.s3Config.SecretAccessKey, "")))
	} else {
		r.logger.Debugf("aws credentials not defined, using the default credential chain")
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}
