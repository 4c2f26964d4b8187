package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func fastParams(url string) HTTPParams {
	return HTTPParams{
		BaseURL:           url,
		RequestsPerSecond: 1000,
		RateLimitBackoff:  time.Millisecond,
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"https://www.Example.com/news/", "https://example.com/news"},
		{"https://example.com/a?utm_source=x#top", "https://example.com/a"},
		{"https://example.com/a?id=1&utm_medium=y", "https://example.com/a?id=1"},
	}
	for _, tt := range tests {
		if NormalizeURL(tt.a) != NormalizeURL(tt.b) {
			t.Errorf("NormalizeURL(%q) = %q, NormalizeURL(%q) = %q", tt.a, NormalizeURL(tt.a), tt.b, NormalizeURL(tt.b))
		}
	}
	if NormalizeURL("https://example.com/a?id=1") == NormalizeURL("https://example.com/a?id=2") {
		t.Errorf("different query parameters must stay distinct")
	}
}

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tavilyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.APIKey != "key" || req.SearchDepth != "advanced" || req.MaxResults != 5 || req.Query != "ev batteries" {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"results": [
			{"title": "EV report", "url": "https://a.example/report", "content": "Battery demand grows.", "score": 0.9},
			{"title": "Market", "url": "https://b.example", "content": "CATL leads.", "score": 0.7}
		]}`))
	}))
	defer srv.Close()

	got, err := NewTavily("key", fastParams(srv.URL)).Search(context.Background(), "ev batteries", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].URL != "https://a.example/report" || got[0].Snippet != "Battery demand grows." || got[0].Provider != "tavily" {
		t.Fatalf("results = %+v", got)
	}
}

func TestRateLimitBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"web": {"results": [{"title": "T", "url": "https://a.example", "description": "<strong>CATL</strong> leads"}]}}`))
	}))
	defer srv.Close()

	got, err := NewBrave("key", fastParams(srv.URL)).Search(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if len(got) != 1 || got[0].Snippet != "CATL leads" {
		t.Fatalf("results = %+v", got)
	}
}

func TestRateLimitGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewBrave("key", fastParams(srv.URL)).Search(context.Background(), "q", 3)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestHTTPErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewTavily("key", fastParams(srv.URL)).Search(context.Background(), "q", 3)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

const duckDuckGoPage = `<html><body><table>
<tr><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fnews.example%2Facme&amp;rut=abc" class='result-link'>Acme <b>Robotics</b> raises</a></td></tr>
<tr><td class='result-snippet'>Acme Robotics closed a Series B.</td></tr>
<tr><td><a href="https://direct.example/page" class="result-link">Direct</a></td></tr>
<tr><td><a href="/lite/?q=next" class="other">Next</a></td></tr>
</table></body></html>`

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("q") != "acme" {
			t.Errorf("form = %v, err = %v", r.PostForm, err)
		}
		w.Write([]byte(duckDuckGoPage))
	}))
	defer srv.Close()

	got, err := NewDuckDuckGo(fastParams(srv.URL)).Search(context.Background(), "acme", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %+v", got)
	}
	if got[0].URL != "https://news.example/acme" || got[0].Title != "Acme Robotics raises" || got[0].Snippet != "Acme Robotics closed a Series B." {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].URL != "https://direct.example/page" || got[1].Snippet != "" {
		t.Fatalf("second = %+v", got[1])
	}
}

type staticProvider struct {
	name    string
	results []Result
	err     error
	calls   atomic.Int32
}

func (s *staticProvider) Name() string { return s.name }

func (s *staticProvider) Search(context.Context, string, int) ([]Result, error) {
	s.calls.Add(1)
	return s.results, s.err
}

func TestMulti(t *testing.T) {
	primary := &staticProvider{name: "p", results: []Result{
		{URL: "https://a.example/x"},
		{URL: "https://www.a.example/x/"},
	}}
	secondary := &staticProvider{name: "s", results: []Result{
		{URL: "https://a.example/x"},
		{URL: "https://b.example"},
		{URL: "https://c.example"},
	}}

	got, err := NewMulti(primary, secondary).Search(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[1].URL != "https://b.example" {
		t.Fatalf("results = %+v", got)
	}

	failing := &staticProvider{name: "f", err: errors.New("down")}
	got, err = NewMulti(failing, secondary).Search(context.Background(), "q", 5)
	if err != nil || len(got) != 3 {
		t.Fatalf("fallback to secondary failed: %v %+v", err, got)
	}

	if _, err := NewMulti(failing).Search(context.Background(), "q", 5); err == nil {
		t.Fatalf("expected error when every provider fails")
	}
	if _, err := NewMulti().Search(context.Background(), "q", 5); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("err = %v, want ErrNoProvider", err)
	}
}

func TestCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := &staticProvider{name: "p", results: []Result{{Title: "A", URL: "https://a.example"}}}
	c := NewCached(p, client, time.Minute)

	for range 3 {
		got, err := c.Search(context.Background(), "EV Batteries", 5)
		if err != nil || len(got) != 1 || got[0].Title != "A" {
			t.Fatalf("Search = %+v, %v", got, err)
		}
	}
	if p.calls.Load() != 1 {
		t.Fatalf("provider calls = %d, want 1", p.calls.Load())
	}

	mr.FastForward(2 * time.Minute)
	_, _ = c.Search(context.Background(), "ev batteries", 5)
	if p.calls.Load() != 2 {
		t.Fatalf("expired entry should be refreshed, calls = %d", p.calls.Load())
	}

	mr.Close()
	got, err := c.Search(context.Background(), "other", 5)
	if err != nil || len(got) != 1 {
		t.Fatalf("redis outage should fall back to the provider: %+v %v", got, err)
	}
}
