package openai

import (
	"net/http"
	"sync"

	"github.com/yt110010111/market-analysis-LLM/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// Client implements ai.CompletionClient against any OpenAI-compatible
// chat completions endpoint.
//
// A Client should be created using NewClient.
type Client struct {
	model       string
	temperature float64
	baseURL     string

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewClientParams defines the configuration parameters for creating a new
// Client.
//
// Model is the default chat model, overridable per call with ai.WithModel.
// BaseURL and ApiKey configure the endpoint; an empty BaseURL targets
// api.openai.com.
type NewClientParams struct {
	Model       string
	Temperature float64

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	HTTPClient            *http.Client
}

// NewClient creates and returns a new Client configured with the provided
// parameters. The SDK's built-in retries are disabled; retry policy belongs
// to the caller.
//
// Example:
//
//	client := openai.NewClient(openai.NewClientParams{
//		Model:   "gpt-4o-mini",
//		BaseURL: "https://api.openai.com/v1",
//		ApiKey:  os.Getenv("OPENAI_API_KEY"),
//	})
//	text, err := client.Complete(ctx, "Summarize the EV battery market.")
func NewClient(params NewClientParams) *Client {
	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 8
	}

	return &Client{
		model:       params.Model,
		temperature: params.Temperature,
		baseURL:     params.BaseURL,
		reqLock:     semaphore.NewWeighted(maxReq),
		ChatClient:  newOpenaiClient(params.BaseURL, params.ApiKey, params.HTTPClient),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
	httpClient *http.Client,
) *openai.Client {
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		options = append(options, option.WithHTTPClient(httpClient))
	}

	client := openai.NewClient(options...)

	return &client
}
