package graph

import (
	"time"

	"github.com/yt110010111/market-analysis-LLM/pkg/ai"
	"github.com/yt110010111/market-analysis-LLM/pkg/text"
)

const (
	defaultParallelDocuments  = 3
	defaultParallelAiRequests = 5
	defaultDocumentTimeout    = 3 * time.Minute
	defaultCallTimeout        = 60 * time.Second
	defaultMaxRetries         = 3
)

// GraphClient extracts knowledge graph fragments from documents with a
// language model. It bounds how many documents and model calls run at once
// and owns every model-assisted graph operation (extraction, expansion,
// inference).
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	ai         ai.CompletionClient
	normalizer text.Normalizer

	parallelDocuments  int
	parallelAiRequests int
	documentTimeout    time.Duration
	callTimeout        time.Duration
	maxRetries         int
	retryDelay         time.Duration

	relationshipMining bool
	enhancement        bool
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// ParallelDocuments controls how many documents are extracted at once.
// ParallelAiRequests controls how many chunk calls one document may have in
// flight. DocumentTimeout cancels a single slow document without touching
// the others. CallTimeout bounds each model call. MaxRetries applies to
// transport and upstream failures only.
type NewGraphClientParams struct {
	AI         ai.CompletionClient
	Normalizer *text.Normalizer

	ParallelDocuments  int
	ParallelAiRequests int
	DocumentTimeout    time.Duration
	CallTimeout        time.Duration
	MaxRetries         int
	RetryDelay         time.Duration

	DisableRelationshipMining bool
	DisableEnhancement        bool
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters. Zero values fall back to the defaults.
//
// Example:
//
//	client := graph.NewGraphClient(graph.NewGraphClientParams{
//		AI:                aiClient,
//		ParallelDocuments: 3,
//		DocumentTimeout:   3 * time.Minute,
//	})
//	batch := client.ExtractDocuments(ctx, "EV battery market", docs)
func NewGraphClient(params NewGraphClientParams) *GraphClient {
	g := &GraphClient{
		ai:                 params.AI,
		normalizer:         text.NewNormalizer(),
		parallelDocuments:  params.ParallelDocuments,
		parallelAiRequests: params.ParallelAiRequests,
		documentTimeout:    params.DocumentTimeout,
		callTimeout:        params.CallTimeout,
		maxRetries:         params.MaxRetries,
		retryDelay:         params.RetryDelay,
		relationshipMining: !params.DisableRelationshipMining,
		enhancement:        !params.DisableEnhancement,
	}
	if params.Normalizer != nil {
		g.normalizer = *params.Normalizer
	}
	if g.parallelDocuments <= 0 {
		g.parallelDocuments = defaultParallelDocuments
	}
	if g.parallelAiRequests <= 0 {
		g.parallelAiRequests = defaultParallelAiRequests
	}
	if g.documentTimeout <= 0 {
		g.documentTimeout = defaultDocumentTimeout
	}
	if g.callTimeout <= 0 {
		g.callTimeout = defaultCallTimeout
	}
	if g.maxRetries <= 0 {
		g.maxRetries = defaultMaxRetries
	}
	if g.retryDelay <= 0 {
		g.retryDelay = time.Second
	}
	return g
}
