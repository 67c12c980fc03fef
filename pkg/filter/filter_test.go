package filter

import (
	"context"
	"encoding/json"
	"testing"

	"video-filter/pkg/domain"
)

func TestKeywordPredicate_Matches(t *testing.T) {
	pred := NewKeywordPredicate("description", []string{"barber", "fade"})
	ctx := context.Background()

	cases := []struct {
		name string
		rec  domain.Record
		want bool
	}{
		{
			name: "exact keyword",
			rec:  domain.Record{"description": "my local barber"},
			want: true,
		},
		{
			name: "case insensitive",
			rec:  domain.Record{"description": "BARBER shop tour"},
			want: true,
		},
		{
			name: "keyword inside word",
			rec:  domain.Record{"description": "the best fades in town"},
			want: true,
		},
		{
			name: "second keyword",
			rec:  domain.Record{"description": "clean mid fade"},
			want: true,
		},
		{
			name: "no keyword",
			rec:  domain.Record{"description": "cooking tutorial"},
			want: false,
		},
		{
			name: "missing text field",
			rec:  domain.Record{"video_id": json.Number("7")},
			want: false,
		},
		{
			name: "empty text field",
			rec:  domain.Record{"description": ""},
			want: false,
		},
		{
			name: "non-string text field",
			rec:  domain.Record{"description": json.Number("42")},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := pred.Matches(ctx, tc.rec)
			if err != nil {
				t.Fatalf("Matches returned error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewKeywordPredicate_SkipsEmptyKeywords(t *testing.T) {
	pred := NewKeywordPredicate("description", []string{"", "barber"})

	got, err := pred.Matches(context.Background(), domain.Record{"description": "anything at all"})
	if err != nil {
		t.Fatalf("Matches returned error: %v", err)
	}
	if got {
		t.Error("Empty keyword should not match everything")
	}
}
