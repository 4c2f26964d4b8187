package search

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const braveURL = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Search web API.
type Brave struct {
	apiKey  string
	baseURL string
	http    *httpBackend
}

// NewBrave creates a Brave provider.
func NewBrave(apiKey string, p HTTPParams) *Brave {
	base := p.BaseURL
	if base == "" {
		base = braveURL
	}
	return &Brave{apiKey: apiKey, baseURL: base, http: newHTTPBackend("brave", p)}
}

func (b *Brave) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (b *Brave) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(maxResults))

	var resp braveResponse
	err := b.http.doJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Subscription-Token", b.apiKey)
		return req, nil
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		out = append(out, Result{
			Title:    strings.TrimSpace(r.Title),
			URL:      r.URL,
			Snippet:  stripTags(r.Description),
			Provider: b.Name(),
		})
	}
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}
