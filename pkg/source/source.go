package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"video-filter/pkg/config"
	"video-filter/pkg/domain"
)

// ErrSourceUnavailable marks a dataset that cannot be opened at all:
// missing file, unreachable endpoint, failed auth. Callers treat it as
// fatal, unlike per-record parse errors.
var ErrSourceUnavailable = errors.New("source unavailable")

// ParseError marks a single malformed record in the stream. The iterator
// stays usable after returning one; the caller decides whether to skip
// the record or give up.
type ParseError struct {
	Record int64 // ordinal of the bad record in the stream, starting at 1
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed record %d: %v", e.Record, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Iterator yields records one at a time, in source order.
type Iterator interface {
	// Next returns the next record. It returns io.EOF when the source is
	// exhausted, and *ParseError for a malformed record; any other error
	// means the stream itself broke.
	Next(ctx context.Context) (domain.Record, error)
	Close() error
}

// Source is a dataset that can be opened as a lazy record stream.
// Opening never materializes the dataset; each Open starts over from the
// beginning (there is no mid-stream resume).
type Source interface {
	Open(ctx context.Context) (Iterator, error)
}

// New builds a source for the configured dataset location, dispatching
// on the URL scheme. A bare path is treated as a local file.
func New(cfg config.SourceConfig) (Source, error) {
	raw := cfg.URL
	if !strings.Contains(raw, "://") {
		return NewFileSource(raw), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse source url %q: %w", raw, err)
	}

	switch u.Scheme {
	case "file":
		return NewFileSource(u.Path), nil

	case "http", "https":
		return NewHTTPSource(raw), nil

	case "s3":
		bucket := u.Host
		key := strings.TrimPrefix(u.Path, "/")
		if bucket == "" || key == "" {
			return nil, fmt.Errorf("s3 source url %q must be s3://bucket/key", raw)
		}
		return NewS3Source(cfg.S3, bucket, key)

	case "postgres", "postgresql":
		if cfg.Postgres.Table == "" && cfg.Postgres.Query == "" {
			return nil, fmt.Errorf("postgres source requires source.postgres.table or source.postgres.query")
		}
		return NewPostgresSource(raw, cfg.Postgres), nil

	case "mongodb", "mongodb+srv":
		if cfg.Mongo.Database == "" || cfg.Mongo.Collection == "" {
			return nil, fmt.Errorf("mongodb source requires source.mongo.database and source.mongo.collection")
		}
		return NewMongoSource(raw, cfg.Mongo), nil

	default:
		return nil, fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}
}
