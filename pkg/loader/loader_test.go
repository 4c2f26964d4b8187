package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
)

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, url string) (common.Document, error) {
	text, ok := m[url]
	if !ok {
		return common.Document{}, &FetchError{URL: url, Status: 404}
	}
	return common.Document{URL: url, Text: text}, nil
}

func TestFetchAllSkipsFailures(t *testing.T) {
	f := mapFetcher{"a": "alpha", "b": "", "d": "delta"}
	docs := FetchAll(context.Background(), f, []string{"a", "b", "c", "d"}, 2)
	if len(docs) != 2 || docs[0].URL != "a" || docs[1].URL != "d" {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestFetchErrorRetryable(t *testing.T) {
	tests := []struct {
		err  *FetchError
		want bool
	}{
		{&FetchError{Status: 0, Err: errors.New("dial tcp")}, true},
		{&FetchError{Status: 429}, true},
		{&FetchError{Status: 503}, true},
		{&FetchError{Status: 404}, false},
		{&FetchError{Status: 0, Err: context.Canceled}, false},
	}
	for _, tt := range tests {
		if got := tt.err.Retryable(); got != tt.want {
			t.Errorf("%v Retryable() = %v, want %v", tt.err, got, tt.want)
		}
	}
	if IsRetryable(errors.New("plain")) {
		t.Errorf("plain errors are not retryable")
	}
}
