package export

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"video-filter/pkg/domain"
)

// Column types are inferred over the whole result set before anything is
// written, so one pass decides the schema and a second builds the arrays.
type kind int

const (
	kindUnknown kind = iota // no non-null value seen; serialized as utf8
	kindBool
	kindInt64
	kindFloat64
	kindString
	kindTimestamp
	kindList
	kindStruct
)

type colType struct {
	kind   kind
	elem   *colType      // list element type
	fields []structField // struct fields
}

type structField struct {
	name string
	typ  *colType
}

// fileSchema is the inferred output schema: column names in output order
// with their inferred types.
type fileSchema struct {
	names []string
	types []*colType
}

// inferSchema derives the output schema from the accumulated records.
// Core columns come first, in their configured order, whether or not any
// record carries them; remaining columns follow in lexicographic order so
// re-runs of the same input produce the same file layout.
func inferSchema(records []domain.Record, coreColumns []string) *fileSchema {
	s := &fileSchema{}
	index := make(map[string]int)

	add := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		index[name] = len(s.names)
		s.names = append(s.names, name)
		s.types = append(s.types, &colType{kind: kindUnknown})
		return len(s.names) - 1
	}

	for _, col := range coreColumns {
		add(col)
	}
	coreCount := len(s.names)

	for _, rec := range records {
		for k, v := range rec {
			i := add(k)
			s.types[i] = mergeType(s.types[i], valueType(v))
		}
	}

	// Non-core columns land in map iteration order; sort them once so the
	// tail really is lexicographic.
	tail := make([]structField, 0, len(s.names)-coreCount)
	for i := coreCount; i < len(s.names); i++ {
		tail = append(tail, structField{name: s.names[i], typ: s.types[i]})
	}
	sort.Slice(tail, func(i, j int) bool { return tail[i].name < tail[j].name })
	for i, col := range tail {
		s.names[coreCount+i] = col.name
		s.types[coreCount+i] = col.typ
	}

	return s
}

func (s *fileSchema) arrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(s.names))
	for i, name := range s.names {
		fields[i] = arrow.Field{
			Name:     name,
			Type:     arrowType(s.types[i]),
			Nullable: true,
		}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t *colType) arrow.DataType {
	switch t.kind {
	case kindBool:
		return arrow.FixedWidthTypes.Boolean
	case kindInt64:
		return arrow.PrimitiveTypes.Int64
	case kindFloat64:
		return arrow.PrimitiveTypes.Float64
	case kindTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	case kindList:
		return arrow.ListOf(arrowType(t.elem))
	case kindStruct:
		fields := make([]arrow.Field, len(t.fields))
		for i, f := range t.fields {
			fields[i] = arrow.Field{
				Name:     f.name,
				Type:     arrowType(f.typ),
				Nullable: true,
			}
		}
		return arrow.StructOf(fields...)
	default:
		// kindString, and kindUnknown for all-null columns
		return arrow.BinaryTypes.String
	}
}

// valueType infers the column type a single value wants.
func valueType(v any) *colType {
	switch val := v.(type) {
	case nil:
		return &colType{kind: kindUnknown}
	case bool:
		return &colType{kind: kindBool}
	case string:
		return &colType{kind: kindString}
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return &colType{kind: kindInt64}
		}
		return &colType{kind: kindFloat64}
	case int, int32, int64:
		return &colType{kind: kindInt64}
	case float32, float64:
		return &colType{kind: kindFloat64}
	case time.Time:
		return &colType{kind: kindTimestamp}
	case []any:
		elem := &colType{kind: kindUnknown}
		for _, e := range val {
			elem = mergeType(elem, valueType(e))
		}
		return &colType{kind: kindList, elem: elem}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fields := make([]structField, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, structField{name: k, typ: valueType(val[k])})
		}
		return &colType{kind: kindStruct, fields: fields}
	default:
		return &colType{kind: kindString}
	}
}

// mergeType reconciles two observed types for the same column.
// Mixed int64/float64 widens to float64; anything else incompatible
// falls back to utf8, with values rendered from their JSON text.
func mergeType(a, b *colType) *colType {
	if a == nil || a.kind == kindUnknown {
		return b
	}
	if b == nil || b.kind == kindUnknown {
		return a
	}

	if a.kind == b.kind {
		switch a.kind {
		case kindList:
			return &colType{kind: kindList, elem: mergeType(a.elem, b.elem)}
		case kindStruct:
			return &colType{kind: kindStruct, fields: mergeStructFields(a.fields, b.fields)}
		default:
			return a
		}
	}

	if (a.kind == kindInt64 && b.kind == kindFloat64) || (a.kind == kindFloat64 && b.kind == kindInt64) {
		return &colType{kind: kindFloat64}
	}

	return &colType{kind: kindString}
}

func mergeStructFields(a, b []structField) []structField {
	merged := make([]structField, len(a))
	copy(merged, a)

	index := make(map[string]int, len(a))
	for i, f := range a {
		index[f.name] = i
	}

	for _, f := range b {
		if i, ok := index[f.name]; ok {
			merged[i].typ = mergeType(merged[i].typ, f.typ)
			continue
		}
		merged = append(merged, f)
	}

	return merged
}
