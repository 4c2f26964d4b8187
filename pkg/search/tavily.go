package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const tavilyURL = "https://api.tavily.com/search"

// Tavily queries the Tavily search API with advanced search depth.
type Tavily struct {
	apiKey  string
	baseURL string
	http    *httpBackend
}

// NewTavily creates a Tavily provider.
func NewTavily(apiKey string, p HTTPParams) *Tavily {
	base := p.BaseURL
	if base == "" {
		base = tavilyURL
	}
	return &Tavily{apiKey: apiKey, baseURL: base, http: newHTTPBackend("tavily", p)}
}

func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	payload, err := json.Marshal(tavilyRequest{
		APIKey:      t.apiKey,
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: "advanced",
	})
	if err != nil {
		return nil, err
	}

	var resp tavilyResponse
	err = t.http.doJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, Result{
			Title:    strings.TrimSpace(r.Title),
			URL:      r.URL,
			Snippet:  strings.TrimSpace(r.Content),
			Score:    r.Score,
			Provider: t.Name(),
		})
	}
	return out, nil
}
