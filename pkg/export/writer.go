package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"video-filter/pkg/domain"
)

// ErrWriteFailure marks a failure to produce the output artifact:
// unwritable directory, full disk, failed rename.
var ErrWriteFailure = errors.New("write failure")

const defaultChunkSize = 4096

// Result describes the written artifact.
type Result struct {
	Path        string
	RecordCount int64
	FileSize    int64
}

// Writer serializes a result set to a single Parquet file.
// The write is atomic: data goes to a temp file in the destination
// directory, is fsynced, and is renamed into place. An interrupted run
// leaves at most a .tmp file, which the next run removes.
type Writer struct {
	// CoreColumns lead the output schema and define the schema of a
	// zero-row artifact.
	CoreColumns []string

	// ChunkSize is the number of rows per Arrow record batch.
	ChunkSize int
}

// NewWriter creates a writer with the given leading columns.
func NewWriter(coreColumns []string) *Writer {
	return &Writer{
		CoreColumns: coreColumns,
		ChunkSize:   defaultChunkSize,
	}
}

// Write serializes the records to path. Column names and per-record field
// values are carried over exactly; an empty record set still produces a
// valid zero-row file.
func (w *Writer) Write(ctx context.Context, path string, records []domain.Record) (*Result, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w: %w", dir, ErrWriteFailure, err)
	}

	tmp := path + ".tmp"
	// Leftover from a previous interrupted run.
	_ = os.Remove(tmp)

	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w: %w", tmp, ErrWriteFailure, err)
	}

	// The parquet writer closes its sink when it is closed; keep the fd out
	// of its reach so the sync, close, rename sequence below stays ours.
	if err := w.writeParquet(ctx, struct{ io.Writer }{f}, records); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("write %s: %w: %w", tmp, ErrWriteFailure, err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("sync %s: %w: %w", tmp, ErrWriteFailure, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("close %s: %w: %w", tmp, ErrWriteFailure, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("rename %s: %w: %w", tmp, ErrWriteFailure, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w: %w", path, ErrWriteFailure, err)
	}

	return &Result{
		Path:        path,
		RecordCount: int64(len(records)),
		FileSize:    info.Size(),
	}, nil
}

func (w *Writer) writeParquet(ctx context.Context, out io.Writer, records []domain.Record) error {
	schema := inferSchema(records, w.CoreColumns)
	arrowSchema := schema.arrowSchema()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(arrowSchema, out, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}

	alloc := memory.NewGoAllocator()
	chunk := w.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	for start := 0; start < len(records); start += chunk {
		if err := ctx.Err(); err != nil {
			_ = fw.Close()
			return err
		}

		end := start + chunk
		if end > len(records) {
			end = len(records)
		}

		rec := buildRecord(alloc, schema, arrowSchema, records[start:end])
		writeErr := fw.Write(rec)
		rec.Release()
		if writeErr != nil {
			_ = fw.Close()
			return fmt.Errorf("write record batch: %w", writeErr)
		}
	}

	if err := fw.Close(); err != nil {
		return fmt.Errorf("finalize parquet: %w", err)
	}
	return nil
}

func buildRecord(alloc memory.Allocator, schema *fileSchema, arrowSchema *arrow.Schema, records []domain.Record) arrow.Record {
	bld := array.NewRecordBuilder(alloc, arrowSchema)
	defer bld.Release()

	for _, rec := range records {
		for i, name := range schema.names {
			appendValue(bld.Field(i), schema.types[i], rec[name])
		}
	}

	return bld.NewRecord()
}

// appendValue appends one value to a column builder, following the
// inferred type tree. A value that does not fit its column type (possible
// only on nested nodes that fell back late) becomes null rather than
// failing the export.
func appendValue(b array.Builder, t *colType, v any) {
	if v == nil {
		b.AppendNull()
		return
	}

	switch t.kind {
	case kindBool:
		bb := b.(*array.BooleanBuilder)
		if bv, ok := v.(bool); ok {
			bb.Append(bv)
		} else {
			bb.AppendNull()
		}

	case kindInt64:
		ib := b.(*array.Int64Builder)
		if iv, ok := asInt64(v); ok {
			ib.Append(iv)
		} else {
			ib.AppendNull()
		}

	case kindFloat64:
		fb := b.(*array.Float64Builder)
		if fv, ok := asFloat64(v); ok {
			fb.Append(fv)
		} else {
			fb.AppendNull()
		}

	case kindTimestamp:
		tb := b.(*array.TimestampBuilder)
		if tv, ok := v.(time.Time); ok {
			tb.Append(arrow.Timestamp(tv.UTC().UnixMicro()))
		} else {
			tb.AppendNull()
		}

	case kindList:
		lb := b.(*array.ListBuilder)
		items, ok := v.([]any)
		if !ok {
			lb.AppendNull()
			return
		}
		lb.Append(true)
		vb := lb.ValueBuilder()
		for _, e := range items {
			appendValue(vb, t.elem, e)
		}

	case kindStruct:
		sb := b.(*array.StructBuilder)
		m, ok := v.(map[string]any)
		if !ok {
			sb.AppendNull()
			return
		}
		sb.Append(true)
		for i, f := range t.fields {
			appendValue(sb.FieldBuilder(i), f.typ, m[f.name])
		}

	default:
		// kindString, and the utf8 fallback for conflicted columns.
		b.(*array.StringBuilder).Append(stringify(v))
	}
}

func asInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		return n, err == nil
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Float64()
		return n, err == nil
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	default:
		return 0, false
	}
}

// stringify renders a value for a utf8 column. Strings pass through;
// everything else keeps its JSON representation.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
