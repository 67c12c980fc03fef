package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// HTTPSource streams records from a JSONL file served over HTTP(S).
// The body is consumed as it downloads; the dataset is never buffered
// in full.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source that GETs the given URL.
func NewHTTPSource(rawURL string) *HTTPSource {
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Follow up to 10 redirects
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &HTTPSource{
		url:    rawURL,
		client: client,
	}
}

// Open issues the request and returns an iterator over the streamed body.
func (s *HTTPSource) Open(ctx context.Context) (Iterator, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", s.url, err)
	}
	req.Header.Set("Accept", "application/x-ndjson, application/json;q=0.9, */*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %w", s.url, ErrSourceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %w: unexpected status %s", s.url, ErrSourceUnavailable, resp.Status)
	}

	rc, err := maybeGzip(resp.Body, urlPath(s.url))
	if err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %w: %w", s.url, ErrSourceUnavailable, err)
	}

	return newJSONLIterator(rc), nil
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.TrimSuffix(rawURL, "/")
	}
	return u.Path
}
