package domain

// Core field names present in the video metadata dumps we process.
// Sources are not required to provide all of them; whatever a source
// provides is carried through to the output unchanged.
const (
	FieldVideoID     = "video_id"
	FieldDescription = "description"
	FieldViews       = "views"
	FieldLikes       = "likes"
	FieldUserID      = "user_id"
	FieldUploadDate  = "upload_date"
)

// Record represents one video's metadata as read from a source.
// The field set is open: a record holds every field the source produced,
// and the job must never drop or recompute any of them.
type Record map[string]any

// ID returns the record's identifier field, if present.
func (r Record) ID() (any, bool) {
	v, ok := r[FieldVideoID]
	return v, ok
}

// Text returns the named field as a string.
// Returns ("", false) when the field is absent or not a string.
func (r Record) Text(field string) (string, bool) {
	v, ok := r[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Clone returns a deep copy of the record. Accumulated matches are cloned
// so that later mutations of decode buffers can never reach the result set.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
