// Package aitest provides a scripted ai.CompletionClient for tests.
package aitest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/yt110010111/market-analysis-LLM/pkg/ai"
)

// Rule answers prompts containing Match. The first matching rule wins.
// When Err is set it is returned instead of Response.
type Rule struct {
	Match    string
	Response string
	Err      error
	// Responses, when set, are returned one per call; the last one repeats.
	Responses []string

	calls int
}

// Call is one recorded Complete invocation.
type Call struct {
	Prompt  string
	Options ai.GenerateOptions
}

// FakeClient returns scripted responses. It is safe for concurrent use.
type FakeClient struct {
	mu      sync.Mutex
	rules   []*Rule
	def     string
	defErr  error
	calls   []Call
	metrics ai.ModelMetrics
}

// NewFakeClient returns a client answering unmatched prompts with "{}".
func NewFakeClient() *FakeClient {
	return &FakeClient{def: "{}"}
}

// On registers a response for prompts containing match.
func (f *FakeClient) On(match, response string) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &Rule{Match: match, Response: response})
	return f
}

// OnSequence registers responses returned in order for prompts containing match.
func (f *FakeClient) OnSequence(match string, responses ...string) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &Rule{Match: match, Responses: responses})
	return f
}

// Fail makes prompts containing match return err.
func (f *FakeClient) Fail(match string, err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &Rule{Match: match, Err: err})
	return f
}

// Default sets the response for unmatched prompts.
func (f *FakeClient) Default(response string) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.def = response
	f.defErr = nil
	return f
}

// FailAll makes every unmatched prompt return err.
func (f *FakeClient) FailAll(err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defErr = err
	return f
}

// Timeout is a ready-made FailureTimeout error.
func Timeout() error {
	return ai.NewTimeout(context.DeadlineExceeded)
}

// Transport is a ready-made FailureTransport error.
func Transport() error {
	return ai.NewTransport(errors.New("connection refused"))
}

func (f *FakeClient) Complete(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{}, opts...)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Prompt: prompt, Options: options})
	f.metrics.Requests++

	if err := ctx.Err(); err != nil {
		f.metrics.Failures++
		return "", ai.ClassifyContext(err)
	}

	for _, r := range f.rules {
		if !strings.Contains(prompt, r.Match) {
			continue
		}
		if r.Err != nil {
			f.metrics.Failures++
			return "", ai.ClassifyContext(r.Err)
		}
		if len(r.Responses) > 0 {
			i := min(r.calls, len(r.Responses)-1)
			r.calls++
			return r.Responses[i], nil
		}
		return r.Response, nil
	}

	if f.defErr != nil {
		f.metrics.Failures++
		return "", ai.ClassifyContext(f.defErr)
	}
	return f.def, nil
}

// Calls returns a copy of the recorded calls.
func (f *FakeClient) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsMatching counts recorded prompts containing match.
func (f *FakeClient) CallsMatching(match string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c.Prompt, match) {
			n++
		}
	}
	return n
}

func (f *FakeClient) ResetMetrics() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = ai.ModelMetrics{}
}

func (f *FakeClient) GetMetrics() ai.ModelMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}
