package source

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"video-filter/pkg/config"
)

// S3Source streams records from a JSONL object in S3-compatible storage.
// Dataset mirrors commonly live behind an S3 API, so this is the usual
// "remote dataset reference" backend.
type S3Source struct {
	api    *minio.Client
	bucket string
	key    string
}

// NewS3Source creates a source over s3://bucket/key using the configured
// endpoint and credentials. An empty access key means anonymous access.
func NewS3Source(cfg config.S3Config, bucket, key string) (*S3Source, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 source requires source.s3.endpoint")
	}

	opts := &minio.Options{
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.AccessKey != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	api, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("s3 client for %s: %w", cfg.Endpoint, err)
	}

	return &S3Source{
		api:    api,
		bucket: bucket,
		key:    key,
	}, nil
}

// Open fetches the object and returns an iterator over its stream.
// GetObject is lazy, so the object is stat'ed first to surface
// missing-object and auth errors before scanning starts.
func (s *S3Source) Open(ctx context.Context) (Iterator, error) {
	obj, err := s.api.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w: %w", s.bucket, s.key, ErrSourceUnavailable, err)
	}

	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("stat s3://%s/%s: %w: %w", s.bucket, s.key, ErrSourceUnavailable, err)
	}

	rc, err := maybeGzip(obj, s.key)
	if err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("read s3://%s/%s: %w: %w", s.bucket, s.key, ErrSourceUnavailable, err)
	}

	return newJSONLIterator(rc), nil
}
