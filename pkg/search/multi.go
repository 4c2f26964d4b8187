package search

import (
	"context"
	"errors"

	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
)

// Multi asks its providers in order until enough unique results are
// collected. A failing provider is logged and skipped; Multi only fails when
// every provider failed.
type Multi struct {
	providers []Provider
}

// NewMulti combines providers, primary first. Nil providers are ignored.
func NewMulti(providers ...Provider) *Multi {
	m := &Multi{}
	for _, p := range providers {
		if p != nil {
			m.providers = append(m.providers, p)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if len(m.providers) == 0 {
		return nil, ErrNoProvider
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	var results []Result
	var errs []error
	for _, p := range m.providers {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		found, err := p.Search(ctx, query, maxResults)
		if err != nil {
			logger.Warn("[Search] Provider failed", "provider", p.Name(), "query", query, "err", err)
			errs = append(errs, err)
			continue
		}
		results = DedupeResults(append(results, found...))
		if len(results) >= maxResults {
			break
		}
	}

	if len(results) == 0 && len(errs) == len(m.providers) {
		return nil, errors.Join(errs...)
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
