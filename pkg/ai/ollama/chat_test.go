package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yt110010111/market-analysis-LLM/pkg/ai"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(NewClientParams{
		Model:                 "llama3.2:3b",
		Temperature:           0.3,
		BaseURL:               srv.URL,
		MaxConcurrentRequests: 2,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestCompleteSendsOptionsAndRecordsMetrics(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2:3b","message":{"role":"assistant","content":"{\"ok\":true}"},"done":true,"prompt_eval_count":12,"eval_count":4,"total_duration":2000000}`))
	})

	out, err := c.Complete(context.Background(), "hello",
		ai.WithTemperature(0.1),
		ai.WithMaxTokens(64),
		ai.WithSystemPrompts("be brief"),
		ai.WithFormat("probe", "probe", &struct {
			OK bool `json:"ok"`
		}{}),
	)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("Complete() = %q", out)
	}

	opts, _ := got["options"].(map[string]any)
	if opts["temperature"] != 0.1 {
		t.Fatalf("temperature = %v, want 0.1", opts["temperature"])
	}
	if opts["num_predict"] != float64(64) {
		t.Fatalf("num_predict = %v, want 64", opts["num_predict"])
	}
	if _, ok := opts["num_ctx"]; ok {
		t.Fatalf("num_ctx should not be set for short prompts")
	}
	if got["format"] == nil {
		t.Fatalf("format schema missing from request")
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want system and user", len(msgs))
	}

	m := c.GetMetrics()
	if m.Requests != 1 || m.InputTokens != 12 || m.OutputTokens != 4 || m.TotalTokens != 16 {
		t.Fatalf("metrics = %+v", m)
	}
	c.ResetMetrics()
	if c.GetMetrics() != (ai.ModelMetrics{}) {
		t.Fatalf("metrics not reset")
	}
}

func TestCompleteClassifiesUpstreamStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model is loading"}`))
	})

	_, err := c.Complete(context.Background(), "hello")
	if !ai.IsFailure(err, ai.FailureUpstream) {
		t.Fatalf("Complete() error = %v, want upstream failure", err)
	}
	if c.GetMetrics().Failures != 1 {
		t.Fatalf("failure not recorded")
	}
}

func TestCompleteClassifiesTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	_, err := c.Complete(context.Background(), "hello", ai.WithTimeout(50*time.Millisecond))
	if !ai.IsFailure(err, ai.FailureTimeout) {
		t.Fatalf("Complete() error = %v, want timeout failure", err)
	}
}
