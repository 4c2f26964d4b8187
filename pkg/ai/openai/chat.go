package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yt110010111/market-analysis-LLM/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

// Complete sends a single-turn prompt to the chat model and returns the
// generated completion as plain text. When a format hint is given the
// request carries a strict JSON schema response format.
//
// Example:
//
//	resp, err := client.Complete(ctx, "List the top EV makers.",
//		ai.WithTemperature(0.2),
//		ai.WithMaxTokens(500),
//	)
//	if ai.IsFailure(err, ai.FailureTimeout) {
//		// fall back
//	}
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

	msgs := []openai.ChatCompletionMessageParamUnion{}
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}
	if options.MaxTokens > 0 {
		body.MaxCompletionTokens = openai.Int(int64(options.MaxTokens))
	}
	if options.Format != nil {
		body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        options.Format.Name,
					Description: openai.String(options.Format.Description),
					Schema:      options.Format.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}
	if options.Thinking != "" {
		// reasoning models on api.openai.com only accept temperature 1.0
		if c.baseURL == "" {
			body.Temperature = openai.Float(1.0)
		}
		body.ReasoningEffort = shared.ReasoningEffort(options.Thinking)
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		c.recordFailure()
		return "", ai.ClassifyContext(err)
	}
	defer c.reqLock.Release(1)

	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		c.recordFailure()
		return "", classify(err)
	}
	duration := time.Since(start).Milliseconds()

	c.modifyMetrics(ai.ModelMetrics{
		Requests:     1,
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   duration,
	})

	if len(response.Choices) == 0 {
		return "", ai.NewUpstream(0, fmt.Errorf("no choices in response from model"))
	}
	return response.Choices[0].Message.Content, nil
}

func classify(err error) *ai.CompletionError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return ai.NewUpstream(apiErr.StatusCode, err)
	}
	return ai.ClassifyContext(err)
}
