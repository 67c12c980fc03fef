package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"video-filter/pkg/domain"
)

const (
	// Descriptions can get long but stay well under this; a line that
	// exceeds it is treated as a stream error, not a record error.
	maxLineBytes     = 16 * 1024 * 1024
	initialLineBytes = 64 * 1024
)

// jsonlIterator decodes one JSON object per line from a stream.
// Blank lines are skipped. Numbers decode as json.Number so that integer
// fields survive the trip into the output schema as integers.
type jsonlIterator struct {
	rc      io.ReadCloser
	scanner *bufio.Scanner
	line    int64
}

func newJSONLIterator(rc io.ReadCloser) *jsonlIterator {
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, initialLineBytes), maxLineBytes)
	return &jsonlIterator{
		rc:      rc,
		scanner: scanner,
	}
}

func (it *jsonlIterator) Next(ctx context.Context) (domain.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !it.scanner.Scan() {
			if err := it.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		it.line++

		data := bytes.TrimSpace(it.scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		rec, err := decodeRecord(data)
		if err != nil {
			return nil, &ParseError{Record: it.line, Err: err}
		}
		return rec, nil
	}
}

func (it *jsonlIterator) Close() error {
	return it.rc.Close()
}

func decodeRecord(data []byte) (domain.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec domain.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}
