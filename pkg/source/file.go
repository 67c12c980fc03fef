package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// FileSource streams records from a local JSONL file.
// A .gz suffix enables transparent decompression.
type FileSource struct {
	path string
}

// NewFileSource creates a source over a local file path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Open opens the file and returns a record iterator over it.
func (s *FileSource) Open(ctx context.Context) (Iterator, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open source file %s: %w: %w", s.path, ErrSourceUnavailable, err)
	}

	rc, err := maybeGzip(f, s.path)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open source file %s: %w: %w", s.path, ErrSourceUnavailable, err)
	}

	return newJSONLIterator(rc), nil
}

// maybeGzip wraps the stream in a gzip reader when the name says so.
func maybeGzip(rc io.ReadCloser, name string) (io.ReadCloser, error) {
	if !strings.HasSuffix(name, ".gz") {
		return rc, nil
	}

	gz, err := gzip.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	return &gzipReadCloser{gz: gz, underlying: rc}, nil
}

// gzipReadCloser closes both the gzip layer and the underlying stream.
type gzipReadCloser struct {
	gz         *gzip.Reader
	underlying io.ReadCloser
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.gz.Read(p)
}

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	underErr := g.underlying.Close()
	if gzErr != nil {
		return gzErr
	}
	return underErr
}
