package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yt110010111/market-analysis-LLM/internal/util"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"

	"golang.org/x/time/rate"
)

const (
	defaultRequestsPerSecond = 1
	defaultRateLimitRetries  = 3
	defaultRateLimitBackoff  = 2 * time.Second
)

// HTTPParams configures the shared HTTP behaviour of the API providers.
//
// RequestsPerSecond throttles outgoing requests per provider. A 429 answer
// is retried RateLimitRetries times, waiting RateLimitBackoff and doubling.
type HTTPParams struct {
	BaseURL           string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	RateLimitRetries  int
	RateLimitBackoff  time.Duration
}

type httpBackend struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	policy  util.RetryPolicy
}

func newHTTPBackend(name string, p HTTPParams) *httpBackend {
	client := p.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	rps := p.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	retries := p.RateLimitRetries
	if retries <= 0 {
		retries = defaultRateLimitRetries
	}
	backoff := p.RateLimitBackoff
	if backoff <= 0 {
		backoff = defaultRateLimitBackoff
	}
	return &httpBackend{
		name:    name,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		policy: util.RetryPolicy{
			MaxTries:  retries + 1,
			Delay:     backoff,
			MaxDelay:  30 * time.Second,
			Retryable: func(err error) bool { return errors.Is(err, ErrRateLimited) },
		},
	}
}

// do sends the request built by newReq, retrying on 429, and returns the
// response body of the first 2xx answer.
func (b *httpBackend) do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	return util.RetryWithPolicy(ctx, b.policy, func(ctx context.Context) ([]byte, error) {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := b.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request failed: %w", b.name, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", b.name, err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			logger.Warn("[Search] Rate limited", "provider", b.name)
			return nil, fmt.Errorf("%s: %w", b.name, ErrRateLimited)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &HTTPError{Provider: b.name, Status: resp.StatusCode, Body: truncateBody(body)}
		}
		return body, nil
	})
}

func (b *httpBackend) doJSON(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error), out any) error {
	body, err := b.do(ctx, newReq)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", b.name, err)
	}
	return nil
}

func truncateBody(b []byte) string {
	if len(b) > 200 {
		return string(b[:200])
	}
	return string(b)
}
