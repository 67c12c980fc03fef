package export

import (
	"encoding/json"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-filter/pkg/domain"
)

func fieldType(t *testing.T, s *arrow.Schema, name string) arrow.DataType {
	t.Helper()
	idx := s.FieldIndices(name)
	require.Len(t, idx, 1, "column %s", name)
	return s.Field(idx[0]).Type
}

func TestInferSchema_PrimitiveTypes(t *testing.T) {
	records := []domain.Record{
		{
			"video_id":    json.Number("1001"),
			"description": "fresh cut",
			"score":       json.Number("0.75"),
			"verified":    true,
		},
	}

	s := inferSchema(records, nil).arrowSchema()

	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, fieldType(t, s, "video_id")))
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, fieldType(t, s, "description")))
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Float64, fieldType(t, s, "score")))
	assert.True(t, arrow.TypeEqual(arrow.FixedWidthTypes.Boolean, fieldType(t, s, "verified")))
}

func TestInferSchema_IntWidensToFloat(t *testing.T) {
	records := []domain.Record{
		{"views": json.Number("10")},
		{"views": json.Number("2.5")},
	}

	s := inferSchema(records, nil).arrowSchema()
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Float64, fieldType(t, s, "views")))
}

func TestInferSchema_ConflictFallsBackToString(t *testing.T) {
	records := []domain.Record{
		{"views": json.Number("10")},
		{"views": "unknown"},
	}

	s := inferSchema(records, nil).arrowSchema()
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, fieldType(t, s, "views")))
}

func TestInferSchema_AllNullIsString(t *testing.T) {
	records := []domain.Record{
		{"extra": nil},
		{"extra": nil},
	}

	s := inferSchema(records, nil).arrowSchema()
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, fieldType(t, s, "extra")))
}

func TestInferSchema_NestedValues(t *testing.T) {
	records := []domain.Record{
		{
			"tags":   []any{"barber", "fade"},
			"author": map[string]any{"name": "sam", "followers": json.Number("120")},
		},
	}

	s := inferSchema(records, nil).arrowSchema()

	assert.True(t, arrow.TypeEqual(arrow.ListOf(arrow.BinaryTypes.String), fieldType(t, s, "tags")))

	authorType, ok := fieldType(t, s, "author").(*arrow.StructType)
	require.True(t, ok, "author should be a struct column")

	followers, ok := authorType.FieldByName("followers")
	require.True(t, ok)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, followers.Type))

	name, ok := authorType.FieldByName("name")
	require.True(t, ok)
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, name.Type))
}

func TestInferSchema_ColumnOrder(t *testing.T) {
	core := []string{"video_id", "description"}
	records := []domain.Record{
		{"video_id": json.Number("1"), "zebra": "z", "alpha": "a", "description": "x"},
	}

	s := inferSchema(records, core).arrowSchema()

	names := make([]string, 0, len(s.Fields()))
	for _, f := range s.Fields() {
		names = append(names, f.Name)
	}

	// Core columns first in configured order, the rest lexicographic.
	assert.Equal(t, []string{"video_id", "description", "alpha", "zebra"}, names)
}

func TestInferSchema_ColumnOrder_HeterogeneousRecords(t *testing.T) {
	core := []string{"video_id"}

	// Columns introduced by later records must still sort into the tail,
	// not trail in first-appearance order.
	records := []domain.Record{
		{"video_id": json.Number("1"), "zebra": "z"},
		{"video_id": json.Number("2"), "alpha": "a", "mid": "m"},
	}

	s := inferSchema(records, core).arrowSchema()

	names := make([]string, 0, len(s.Fields()))
	for _, f := range s.Fields() {
		names = append(names, f.Name)
	}

	assert.Equal(t, []string{"video_id", "alpha", "mid", "zebra"}, names)
}

func TestInferSchema_EmptyRecordsUsesCoreColumns(t *testing.T) {
	core := []string{"video_id", "description", "views"}

	s := inferSchema(nil, core).arrowSchema()

	require.Equal(t, len(core), len(s.Fields()))
	for i, name := range core {
		assert.Equal(t, name, s.Field(i).Name)
	}
}
