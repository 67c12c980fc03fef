package filter

import (
	"context"
	"strings"

	"video-filter/pkg/domain"
)

// Predicate defines the interface for record filtering
type Predicate interface {
	Matches(ctx context.Context, rec domain.Record) (bool, error)
}

// KeywordPredicate matches records whose text field contains any of the
// configured keywords, case-insensitively. A record with a missing, empty,
// or non-string text field never matches and never errors.
type KeywordPredicate struct {
	field    string
	keywords []string // stored lowercased
}

// NewKeywordPredicate creates a keyword predicate over the given text field.
func NewKeywordPredicate(field string, keywords []string) *KeywordPredicate {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		lowered = append(lowered, strings.ToLower(kw))
	}
	return &KeywordPredicate{
		field:    field,
		keywords: lowered,
	}
}

// Matches returns true if the record's text field contains any keyword.
func (p *KeywordPredicate) Matches(ctx context.Context, rec domain.Record) (bool, error) {
	text, ok := rec.Text(p.field)
	if !ok || text == "" {
		return false, nil
	}

	lowered := strings.ToLower(text)
	for _, kw := range p.keywords {
		if strings.Contains(lowered, kw) {
			return true, nil
		}
	}
	return false, nil
}
