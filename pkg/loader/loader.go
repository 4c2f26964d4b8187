// Package loader turns URLs into documents for extraction.
package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// DefaultParallelFetches bounds FetchAll when no limit is given.
const DefaultParallelFetches = 5

// Fetcher downloads one URL and returns its readable text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (common.Document, error)
}

// ErrTimeout marks a request that timed out while the caller's context
// was still alive.
var ErrTimeout = errors.New("request timed out")

// FetchError describes a URL that could not be turned into a document.
// Status is the HTTP status, or 0 when no response was received.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed: no response at
// all, 408, 429 or a server error.
func (e *FetchError) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	switch {
	case e.Status == 0:
		return true
	case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	}
	return false
}

// IsRetryable reports whether err is a retryable FetchError.
func IsRetryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable()
}

// FetchAll fetches urls with at most parallel requests in flight. Failed
// or empty pages are logged and skipped; the remaining documents keep the
// order of urls.
func FetchAll(ctx context.Context, f Fetcher, urls []string, parallel int) []common.Document {
	if parallel <= 0 {
		parallel = DefaultParallelFetches
	}
	docs := make([]*common.Document, len(urls))

	eg := errgroup.Group{}
	eg.SetLimit(parallel)
	for i, u := range urls {
		eg.Go(func() error {
			doc, err := f.Fetch(ctx, u)
			if err != nil {
				logger.Warn("[Fetch] Skipping url", "url", u, "err", err)
				return nil
			}
			if doc.Text == "" {
				logger.Warn("[Fetch] Skipping empty page", "url", u)
				return nil
			}
			docs[i] = &doc
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]common.Document, 0, len(urls))
	for _, d := range docs {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}
