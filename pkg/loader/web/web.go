package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/yt110010111/market-analysis-LLM/internal/util"
	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/loader"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
	"github.com/yt110010111/market-analysis-LLM/pkg/text"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxChars   = 5000
	DefaultMaxTries   = 3
	defaultUserAgent  = "Mozilla/5.0 (compatible; market-research-bot/1.0)"
	maxBodyBytes      = 10 << 20
	defaultRetryDelay = time.Second
)

// WebFetcher downloads pages and extracts their readable text. HTML goes
// through readability with a main-content fallback, PDFs through a native
// text extractor and plain text is kept as is. Successful fetches are
// cached per URL and concurrent fetches of one URL share a request.
type WebFetcher struct {
	client     *http.Client
	userAgent  string
	maxChars   int
	maxTries   int
	retryDelay time.Duration

	cache   map[string]common.Document
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewWebFetcherParams configures a WebFetcher. Zero values use the
// defaults: 30s client timeout, 5000 characters of text, 3 attempts.
type NewWebFetcherParams struct {
	HTTPClient *http.Client
	UserAgent  string
	MaxChars   int
	MaxTries   int
	RetryDelay time.Duration
}

func NewWebFetcher(params NewWebFetcherParams) *WebFetcher {
	f := &WebFetcher{
		client:     params.HTTPClient,
		userAgent:  params.UserAgent,
		maxChars:   params.MaxChars,
		maxTries:   params.MaxTries,
		retryDelay: params.RetryDelay,
		cache:      make(map[string]common.Document),
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: 30 * time.Second}
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if f.maxChars <= 0 {
		f.maxChars = DefaultMaxChars
	}
	if f.maxTries <= 0 {
		f.maxTries = DefaultMaxTries
	}
	if f.retryDelay <= 0 {
		f.retryDelay = defaultRetryDelay
	}
	return f
}

var _ loader.Fetcher = (*WebFetcher)(nil)

// Fetch returns the document at rawURL. Transient failures are retried;
// the returned error is a *loader.FetchError.
func (f *WebFetcher) Fetch(ctx context.Context, rawURL string) (common.Document, error) {
	f.cacheMu.RLock()
	if cached, ok := f.cache[rawURL]; ok {
		f.cacheMu.RUnlock()
		return cached, nil
	}
	f.cacheMu.RUnlock()

	result, err, _ := f.group.Do(rawURL, func() (any, error) {
		f.cacheMu.RLock()
		if cached, ok := f.cache[rawURL]; ok {
			f.cacheMu.RUnlock()
			return cached, nil
		}
		f.cacheMu.RUnlock()

		policy := util.RetryPolicy{
			MaxTries:  f.maxTries,
			Delay:     f.retryDelay,
			MaxDelay:  10 * time.Second,
			Retryable: loader.IsRetryable,
		}
		doc, err := util.RetryWithPolicy(ctx, policy, func(ctx context.Context) (common.Document, error) {
			return f.fetchOnce(ctx, rawURL)
		})
		if err != nil {
			var fe *loader.FetchError
			if !errors.As(err, &fe) {
				err = &loader.FetchError{URL: rawURL, Err: err}
			}
			return common.Document{}, err
		}

		f.cacheMu.Lock()
		f.cache[rawURL] = doc
		f.cacheMu.Unlock()

		logger.Debug("[Fetch] Page loaded", "url", rawURL, "title", doc.Title, "chars", len([]rune(doc.Text)))
		return doc, nil
	})
	if err != nil {
		return common.Document{}, err
	}
	return result.(common.Document), nil
}

func (f *WebFetcher) fetchOnce(ctx context.Context, rawURL string) (common.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return common.Document{}, &loader.FetchError{URL: rawURL, Status: http.StatusBadRequest, Err: fmt.Errorf("invalid url %q", rawURL)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return common.Document{}, &loader.FetchError{URL: rawURL, Status: http.StatusBadRequest, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		var ne net.Error
		if ctx.Err() == nil && errors.As(err, &ne) && ne.Timeout() {
			err = loader.ErrTimeout
		}
		return common.Document{}, &loader.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return common.Document{}, &loader.FetchError{URL: rawURL, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return common.Document{}, &loader.FetchError{URL: rawURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	var doc common.Document
	switch {
	case strings.Contains(contentType, "application/pdf") || strings.HasSuffix(strings.ToLower(u.Path), ".pdf"):
		content, err := parsePDF(body)
		if err != nil {
			return common.Document{}, &loader.FetchError{URL: rawURL, Status: resp.StatusCode, Err: err}
		}
		doc = common.Document{Title: path.Base(u.Path), Text: content}
	case strings.Contains(contentType, "html") || contentType == "" || bytes.Contains(bytes.ToLower(body[:min(len(body), 512)]), []byte("<html")):
		doc = parseHTML(body, u)
	default:
		doc = common.Document{Title: path.Base(u.Path), Text: strings.TrimSpace(string(body))}
	}

	doc.URL = rawURL
	doc.Text = text.Truncate(doc.Text, f.maxChars)
	return doc, nil
}
