package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/yt110010111/market-analysis-LLM/pkg/ai"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/semaphore"
)

// Client implements ai.CompletionClient against a local or hosted Ollama
// server.
type Client struct {
	model       string
	temperature float64

	reqLock *semaphore.Weighted
	enc     *tiktoken.Tiktoken

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *api.Client
}

// NewClientParams contains configuration options for creating a new Client.
type NewClientParams struct {
	Model       string
	Temperature float64

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	HTTPClient            *http.Client
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewClient connects to the Ollama server at BaseURL (or the default from
// OLLAMA_HOST when empty). ApiKey is sent as a bearer token for hosted
// deployments behind a proxy.
func NewClient(params NewClientParams) (*Client, error) {
	base, err := baseURL(params.BaseURL)
	if err != nil {
		return nil, err
	}

	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return nil, err
	}

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 4
	}

	return &Client{
		model:       params.Model,
		temperature: params.Temperature,
		reqLock:     semaphore.NewWeighted(maxReq),
		enc:         enc,
		Client:      api.NewClient(base, authorizedClient(params.HTTPClient, params.ApiKey)),
	}, nil
}

func baseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return envconfig.Host(), nil
	}
	return url.Parse(raw)
}

// authorizedClient returns a copy of base that adds the bearer token. The
// caller's client is never modified.
func authorizedClient(base *http.Client, apiKey string) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	if apiKey == "" {
		return base
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c := *base
	c.Transport = &headerTransport{
		headers: map[string]string{"Authorization": "Bearer " + apiKey},
		rt:      rt,
	}
	return &c
}
