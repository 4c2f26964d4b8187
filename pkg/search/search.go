// Package search finds candidate web pages for a research query.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const DefaultMaxResults = 5

var (
	// ErrRateLimited is returned when a provider keeps answering 429.
	ErrRateLimited = errors.New("search rate limited")
	// ErrNoProvider is returned by Multi without providers.
	ErrNoProvider = errors.New("no search provider configured")
)

// Result is one search hit.
type Result struct {
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score,omitempty"`
	Provider string  `json:"provider"`
}

// Provider searches the web. Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// HTTPError is a non-2xx answer from a provider API.
type HTTPError struct {
	Provider string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s search failed with status %d: %s", e.Provider, e.Status, e.Body)
}

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "gclid", "fbclid"}

// NormalizeURL returns the form of raw used to detect duplicate results:
// lower-case scheme and host, no fragment, no tracking parameters and no
// trailing slash. Unparseable input is returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	if u.RawQuery != "" {
		q := u.Query()
		for _, p := range trackingParams {
			q.Del(p)
		}
		u.RawQuery = q.Encode()
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// DedupeResults drops results without a URL and later results whose
// normalized URL was already seen.
func DedupeResults(results []Result) []Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		k := NormalizeURL(r.URL)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
