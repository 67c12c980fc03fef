package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-filter/pkg/domain"
)

// readRows reads a parquet file back into one map per row, in row order.
func readRows(t *testing.T, path string) []map[string]any {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	mem := memory.NewGoAllocator()
	tbl, err := pqarrow.ReadTable(context.Background(), f, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	require.NoError(t, err)
	defer tbl.Release()

	rows := make([]map[string]any, tbl.NumRows())
	for i := range rows {
		rows[i] = make(map[string]any)
	}

	for ci := 0; ci < int(tbl.NumCols()); ci++ {
		name := tbl.Schema().Field(ci).Name
		row := 0
		for _, chunk := range tbl.Column(ci).Data().Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				if chunk.IsNull(j) {
					rows[row][name] = nil
				} else {
					rows[row][name] = arrayValue(t, chunk, j)
				}
				row++
			}
		}
	}

	return rows
}

func arrayValue(t *testing.T, arr arrow.Array, i int) any {
	t.Helper()

	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	case *array.Timestamp:
		return a.Value(i).ToTime(arrow.Microsecond)
	case *array.List:
		start, end := a.ValueOffsets(i)
		values := a.ListValues()
		out := make([]any, 0, end-start)
		for j := start; j < end; j++ {
			if values.IsNull(int(j)) {
				out = append(out, nil)
			} else {
				out = append(out, arrayValue(t, values, int(j)))
			}
		}
		return out
	case *array.Struct:
		st := a.DataType().(*arrow.StructType)
		out := make(map[string]any, a.NumField())
		for fi := 0; fi < a.NumField(); fi++ {
			field := a.Field(fi)
			if field.IsNull(i) {
				out[st.Field(fi).Name] = nil
			} else {
				out[st.Field(fi).Name] = arrayValue(t, field, i)
			}
		}
		return out
	default:
		t.Fatalf("unhandled array type %T", arr)
		return nil
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	records := []domain.Record{
		{
			"video_id":    json.Number("1001"),
			"description": "Fresh haircut by my local barber!",
			"views":       json.Number("100000"),
			"likes":       json.Number("12000"),
			"user_id":     "u1",
			"upload_date": "2023-10-01",
			"tags":        []any{"barber", "fade"},
			"author":      map[string]any{"name": "sam", "followers": json.Number("120")},
		},
		{
			"video_id":    json.Number("1006"),
			"description": "Barber shop vibes and clean fades.",
			"views":       json.Number("250000"),
			"likes":       json.Number("30000"),
			"user_id":     "u6",
			"upload_date": "2023-10-03",
			"tags":        []any{"vibes"},
			"author":      nil,
		},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "Results", "barber_videos.parquet")

	w := NewWriter([]string{"video_id", "description", "views", "likes", "user_id", "upload_date"})
	res, err := w.Write(context.Background(), path, records)
	require.NoError(t, err)

	assert.Equal(t, path, res.Path)
	assert.Equal(t, int64(2), res.RecordCount)
	assert.Greater(t, res.FileSize, int64(0))

	// Exactly one artifact, no temp file left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "barber_videos.parquet", entries[0].Name())

	rows := readRows(t, path)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(1001), rows[0]["video_id"])
	assert.Equal(t, "Fresh haircut by my local barber!", rows[0]["description"])
	assert.Equal(t, int64(100000), rows[0]["views"])
	assert.Equal(t, "u1", rows[0]["user_id"])
	assert.Equal(t, "2023-10-01", rows[0]["upload_date"])
	assert.Equal(t, []any{"barber", "fade"}, rows[0]["tags"])
	assert.Equal(t, map[string]any{"name": "sam", "followers": int64(120)}, rows[0]["author"])

	assert.Equal(t, int64(1006), rows[1]["video_id"])
	assert.Nil(t, rows[1]["author"])
}

func TestWriter_EmptyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Results", "empty.parquet")
	core := []string{"video_id", "description", "views"}

	res, err := NewWriter(core).Write(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.RecordCount)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	mem := memory.NewGoAllocator()
	tbl, err := pqarrow.ReadTable(context.Background(), f, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(0), tbl.NumRows())
	require.Equal(t, int64(len(core)), tbl.NumCols())
	for i, name := range core {
		assert.Equal(t, name, tbl.Schema().Field(i).Name)
	}
}

func TestWriter_CreatesDestinationDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "TikTok_Results")
	path := filepath.Join(dir, "out.parquet")

	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	_, err = NewWriter(nil).Write(context.Background(), path, []domain.Record{
		{"video_id": json.Number("1")},
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriter_WriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	// Destination directory path collides with an existing file.
	path := filepath.Join(blocker, "out.parquet")

	_, err := NewWriter(nil).Write(context.Background(), path, nil)
	require.ErrorIs(t, err, ErrWriteFailure)
}

func TestWriter_IdempotentContent(t *testing.T) {
	records := []domain.Record{
		{"video_id": json.Number("1"), "description": "barber one", "views": json.Number("10")},
		{"video_id": json.Number("3"), "description": "barber two", "views": json.Number("20")},
	}

	w := NewWriter([]string{"video_id", "description", "views"})

	pathA := filepath.Join(t.TempDir(), "a.parquet")
	pathB := filepath.Join(t.TempDir(), "b.parquet")

	_, err := w.Write(context.Background(), pathA, records)
	require.NoError(t, err)
	_, err = w.Write(context.Background(), pathB, records)
	require.NoError(t, err)

	assert.Equal(t, readRows(t, pathA), readRows(t, pathB))
}
