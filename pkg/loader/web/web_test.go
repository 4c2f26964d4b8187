package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yt110010111/market-analysis-LLM/pkg/loader"

	"golang.org/x/net/html"
)

const articlePage = `<!DOCTYPE html>
<html><head>
<title>Acme Robotics raises Series B</title>
<meta name="description" content="Acme Robotics closes a funding round.">
</head><body>
<nav>Home | News | About</nav>
<article>
<h1>Acme Robotics raises Series B</h1>
<p>Acme Robotics, the warehouse automation company founded by Jane Lin, announced a Series B round on Tuesday.</p>
<p>The company competes with RoboCorp and plans to double its engineering team over the next year.</p>
<p>Investors include Example Ventures, which also led the seed round three years ago in Taipei.</p>
<p>According to the announcement, the new capital will fund expansion into logistics centers across Southeast Asia, where demand for autonomous picking systems has grown quickly since 2022.</p>
<p>Analysts expect the warehouse robotics market to keep growing as labor costs rise and retailers push for faster delivery times.</p>
</article>
<footer>All rights reserved</footer>
</body></html>`

func newTestFetcher() *WebFetcher {
	return NewWebFetcher(NewWebFetcherParams{RetryDelay: time.Millisecond})
}

func TestFetchHTML(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	f := newTestFetcher()
	doc, err := f.Fetch(context.Background(), srv.URL+"/acme")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.Title != "Acme Robotics raises Series B" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.Description != "Acme Robotics closes a funding round." {
		t.Errorf("Description = %q", doc.Description)
	}
	if !strings.Contains(doc.Text, "founded by Jane Lin") {
		t.Errorf("Text = %q", doc.Text)
	}
	if doc.URL != srv.URL+"/acme" {
		t.Errorf("URL = %q", doc.URL)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/acme"); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, cached page should not be fetched again", hits.Load())
	}
}

func TestFetchTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("市場", 4000)))
	}))
	defer srv.Close()

	doc, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/notes.txt")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n := len([]rune(doc.Text)); n != DefaultMaxChars {
		t.Fatalf("text runes = %d, want %d", n, DefaultMaxChars)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("finally"))
	}))
	defer srv.Close()

	doc, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	if err != nil || doc.Text != "finally" {
		t.Fatalf("Fetch = %+v, %v", doc, err)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits = %d, want 3", hits.Load())
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/missing")
	var fe *loader.FetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusNotFound {
		t.Fatalf("err = %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1", hits.Load())
	}
}

func TestFetchRejectsBadURL(t *testing.T) {
	_, err := newTestFetcher().Fetch(context.Background(), "ftp://example.com/file")
	var fe *loader.FetchError
	if !errors.As(err, &fe) || fe.Retryable() {
		t.Fatalf("err = %v", err)
	}
}

func TestMainContentFallback(t *testing.T) {
	page := `<html><body>
<header>Site header</header>
<div id="content"><p>` + strings.Repeat("Battery demand keeps growing. ", 5) + `</p><script>var x = 1;</script></div>
<footer>Footer</footer>
</body></html>`
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := mainContent(root)
	if !strings.HasPrefix(got, "Battery demand keeps growing.") || strings.Contains(got, "var x") || strings.Contains(got, "Footer") {
		t.Fatalf("mainContent = %q", got)
	}

	short := `<html><body><main>Too short</main><p>Body text</p><nav>Menu</nav></body></html>`
	root, _ = html.Parse(strings.NewReader(short))
	if got := mainContent(root); got != "Too short\nBody text" {
		t.Fatalf("body fallback = %q", got)
	}
}
