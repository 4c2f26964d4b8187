package ollama

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/yt110010111/market-analysis-LLM/pkg/ai"

	"github.com/ollama/ollama/api"
)

// contextFloor is the context window Ollama uses when num_ctx is unset.
const contextFloor = 4096

// Complete sends a single-turn prompt and returns the assistant text.
// A structured format hint is forwarded as the request's JSON schema.
func (c *Client) Complete(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.model,
		Temperature: c.temperature,
	}, opts...)

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sys := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sys})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if options.MaxTokens > 0 {
		req.Options["num_predict"] = options.MaxTokens
	}
	if options.Thinking != "" {
		req.Think = &api.ThinkValue{Value: options.Thinking}
	}
	if options.Format != nil && options.Format.Schema != nil {
		format, err := json.Marshal(options.Format.Schema)
		if err != nil {
			return "", ai.NewTransport(err)
		}
		req.Format = format
	}

	if tokens := c.estimateTokens(options.SystemPrompts, prompt) + options.MaxTokens; tokens > contextFloor {
		req.Options["num_ctx"] = tokens
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		c.recordFailure()
		return "", ai.ClassifyContext(err)
	}
	defer c.reqLock.Release(1)

	var final api.ChatResponse
	err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	})
	if err != nil {
		c.recordFailure()
		return "", classify(ctx, err)
	}

	c.modifyMetrics(ai.ModelMetrics{
		Requests:     1,
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.Metrics.TotalDuration.Milliseconds(),
	})

	return final.Message.Content, nil
}

// estimateTokens counts prompt tokens with o200k_base plus headroom for
// the chat template.
func (c *Client) estimateTokens(system []string, prompt string) int {
	tokens := 200 + len(c.enc.Encode(prompt, nil, nil))
	for _, s := range system {
		tokens += len(c.enc.Encode(s, nil, nil))
	}
	return tokens
}

func classify(ctx context.Context, err error) *ai.CompletionError {
	var status api.StatusError
	if errors.As(err, &status) {
		return ai.NewUpstream(status.StatusCode, err)
	}
	var statusPtr *api.StatusError
	if errors.As(err, &statusPtr) {
		return ai.NewUpstream(statusPtr.StatusCode, err)
	}
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ai.NewTimeout(err)
	}
	return ai.ClassifyContext(err)
}
