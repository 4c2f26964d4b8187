package ai

import (
	"context"
	"time"
)

// GenerateOptions holds configuration for AI generation requests.
type GenerateOptions struct {
	Model         string        // Model identifier to use for generation
	SystemPrompts []string      // System prompts prepended to the request
	Temperature   float64       // Sampling temperature (0.0-2.0)
	MaxTokens     int           // Upper bound on generated tokens, 0 means backend default
	Timeout       time.Duration // Per-call deadline, 0 means the caller's context only
	Thinking      string        // Extended thinking mode configuration
	Format        *Format       // Structured output hint, nil for free text
}

// Format describes the JSON document a structured call expects back.
type Format struct {
	Name        string
	Description string
	Schema      any
}

// ModelMetrics contains performance metrics from AI model operations.
type ModelMetrics struct {
	Requests       int     `json:"requests"`
	Failures       int     `json:"failures"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// GenerateOption is a functional option for configuring AI generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts returns a GenerateOption that sets the system prompts
// to prepend to the generation request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a GenerateOption that sets the sampling temperature.
// Higher values (e.g., 1.0) produce more random outputs, while lower values
// (e.g., 0.2) make outputs more focused and deterministic.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens caps the number of generated tokens.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// WithTimeout bounds a single call. Expiry is reported as FailureTimeout.
func WithTimeout(d time.Duration) GenerateOption {
	return func(o *GenerateOptions) {
		o.Timeout = d
	}
}

// WithThinking returns a GenerateOption that enables extended thinking mode.
// The thinking parameter specifies the thinking budget or mode configuration.
func WithThinking(thinking string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Thinking = thinking
	}
}

// WithFormat asks the backend for a JSON document shaped like schemaOf.
// schemaOf is a value (or pointer) of the Go type the response will be
// parsed into; its JSON schema is derived with GenerateSchema.
func WithFormat(name, description string, schemaOf any) GenerateOption {
	return func(o *GenerateOptions) {
		o.Format = &Format{
			Name:        name,
			Description: description,
			Schema:      GenerateSchema(schemaOf),
		}
	}
}

// ApplyOptions folds opts over defaults.
func ApplyOptions(defaults GenerateOptions, opts ...GenerateOption) GenerateOptions {
	for _, o := range opts {
		o(&defaults)
	}
	return defaults
}

// CompletionClient sends a prompt to a language model and returns its text.
// Implementations never retry; callers decide what a failure means for them.
// Errors are always *CompletionError.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)
	ResetMetrics()
	GetMetrics() ModelMetrics
}
