package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yt110010111/market-analysis-LLM/internal/util"
	"github.com/yt110010111/market-analysis-LLM/pkg/ai"
	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
	"github.com/yt110010111/market-analysis-LLM/pkg/text"

	"golang.org/x/sync/errgroup"
)

const (
	passAChunkRunes    = 3500
	passATemperature   = 0.1
	passBMinEntities   = 3
	passBChunks        = 3
	passBAnchors       = 20
	passBChunkRunes    = 3000
	passCMaxEntities   = 10
	passCTextRunes     = 4000
	passCTemperature   = 0.2
	summaryTopTypes    = 3
	extractionMaxToken = 4096
)

// DocumentResult is the raw extraction output for one document.
type DocumentResult struct {
	Title         string                `json:"title"`
	URL           string                `json:"url"`
	Entities      []common.Entity       `json:"entities"`
	Relationships []common.Relationship `json:"relationships"`
	Summary       string                `json:"summary"`
	Chunks        int                   `json:"chunks"`
	EmptyInput    bool                  `json:"empty_input,omitempty"`
	Degraded      bool                  `json:"degraded,omitempty"`
	Duration      time.Duration         `json:"duration"`
	Err           error                 `json:"-"`
}

type chunkResult struct {
	entities      []common.Entity
	relationships []common.Relationship
	err           error
}

// ExtractDocument runs the extraction passes over one document. It never
// returns an error: failures degrade to fewer (or rule-based) results and
// are reported through the DocumentResult fields.
func (g *GraphClient) ExtractDocument(ctx context.Context, query string, doc common.Document) DocumentResult {
	start := time.Now()
	res := DocumentResult{Title: doc.Title, URL: doc.URL}
	src := doc.Source()

	chunks := g.normalizer.Prepare(doc.Text)
	res.Chunks = len(chunks)
	if len(chunks) == 0 {
		logger.Warn("[Extract] Document has no usable text", "title", doc.Title, "url", doc.URL)
		res.EmptyInput = true
		res.Summary = documentSummary(doc.Title, nil, nil)
		res.Duration = time.Since(start)
		return res
	}

	// Pass A
	results := g.runChunks(ctx, chunks, func(ctx context.Context, idx int, chunk string) chunkResult {
		return g.extractChunk(ctx, query, doc.Title, idx, chunk, src)
	})

	var entities []common.Entity
	var relationships []common.Relationship
	completionFailures := 0
	for _, r := range results {
		if r.err != nil && (ai.IsCompletionError(r.err) || errors.Is(r.err, context.DeadlineExceeded) || errors.Is(r.err, context.Canceled)) {
			completionFailures++
		}
		entities = append(entities, r.entities...)
		relationships = append(relationships, r.relationships...)
	}

	if completionFailures == len(results) {
		logger.Warn("[Extract] Model unavailable for every chunk, using rule-based extraction",
			"title", doc.Title, "chunks", len(chunks))
		fb := FallbackExtract(doc)
		res.Entities = fb.Entities
		res.Relationships = fb.Relationships
		res.Degraded = true
		res.Summary = documentSummary(doc.Title, res.Entities, res.Relationships)
		res.Duration = time.Since(start)
		return res
	}

	// Pass B
	if g.relationshipMining && len(entities) > passBMinEntities && ctx.Err() == nil {
		anchors := uniqueNames(entities, passBAnchors)
		mined := g.runChunks(ctx, chunks[:min(passBChunks, len(chunks))], func(ctx context.Context, _ int, chunk string) chunkResult {
			return g.mineChunk(ctx, query, anchors, chunk, src)
		})
		for _, r := range mined {
			entities = append(entities, r.entities...)
			relationships = append(relationships, r.relationships...)
		}
	}

	// Pass C
	if g.enhancement && ctx.Err() == nil {
		entities = g.enhance(ctx, doc, chunks, entities)
	}

	res.Entities = entities
	res.Relationships = relationships
	res.Summary = documentSummary(doc.Title, entities, relationships)
	res.Duration = time.Since(start)

	logger.Debug("[Extract] Document processed",
		"title", doc.Title,
		"chunks", len(chunks),
		"entities", len(entities),
		"relationships", len(relationships),
		"duration", res.Duration,
	)
	return res
}

// runChunks applies fn to every chunk with at most parallelAiRequests in
// flight and returns the results in chunk order.
func (g *GraphClient) runChunks(
	ctx context.Context,
	chunks []string,
	fn func(ctx context.Context, idx int, chunk string) chunkResult,
) []chunkResult {
	out := make([]chunkResult, len(chunks))

	eg := errgroup.Group{}
	eg.SetLimit(g.parallelAiRequests)
	for i, chunk := range chunks {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i] = chunkResult{err: err}
				return nil
			}
			out[i] = fn(ctx, i+1, chunk)
			return nil
		})
	}
	_ = eg.Wait()

	return out
}

// complete issues one structured call with the client's timeout and retry
// policy. Only transport and upstream failures are retried.
func (g *GraphClient) complete(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	temperature float64,
) error {
	policy := util.RetryPolicy{
		MaxTries:  g.maxRetries,
		Delay:     g.retryDelay,
		MaxDelay:  10 * time.Second,
		Retryable: retryable,
	}
	return util.RetryErrWithPolicy(ctx, policy, func(ctx context.Context) error {
		return ai.CompleteJSON(ctx, g.ai, name, description, prompt, out,
			ai.WithSystemPrompts(ai.ResearchSystemPrompt),
			ai.WithTemperature(temperature),
			ai.WithMaxTokens(extractionMaxToken),
			ai.WithTimeout(g.callTimeout),
		)
	})
}

func retryable(err error) bool {
	var ce *ai.CompletionError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Kind {
	case ai.FailureTransport:
		return true
	case ai.FailureUpstream:
		return ce.Status == 0 || ce.Status == 429 || ce.Status >= 500
	}
	return false
}

func (g *GraphClient) extractChunk(
	ctx context.Context,
	query string,
	title string,
	idx int,
	chunk string,
	src common.Source,
) chunkResult {
	prompt := fmt.Sprintf(ai.ExtractPrompt,
		query,
		title,
		idx,
		strings.Join(common.EntityTypes, ", "),
		strings.Join(common.RelationTypes, ", "),
		text.Truncate(chunk, passAChunkRunes),
	)

	var payload extractionPayload
	if err := g.complete(ctx, "extract_entities_and_relationships",
		"Entities and relationships found in a document section.", prompt, &payload, passATemperature); err != nil {
		logger.Warn("[Extract] Chunk extraction failed", "title", title, "chunk", idx, "err", err)
		return chunkResult{err: err}
	}

	return chunkResult{
		entities:      toEntities(payload.Entities, src),
		relationships: toRelationships(payload.Relationships, src),
	}
}

func (g *GraphClient) mineChunk(
	ctx context.Context,
	query string,
	anchors []string,
	chunk string,
	src common.Source,
) chunkResult {
	prompt := fmt.Sprintf(ai.RelationshipPrompt,
		query,
		strings.Join(anchors, ", "),
		strings.Join(common.RelationTypes, ", "),
		text.Truncate(chunk, passBChunkRunes),
	)

	var payload miningPayload
	if err := g.complete(ctx, "mine_relationships",
		"Relationships between known entities.", prompt, &payload, passATemperature); err != nil {
		logger.Debug("[Extract] Relationship mining skipped", "err", err)
		return chunkResult{err: err}
	}

	rels := make([]extractedRelationship, 0, len(payload.Relationships))
	for _, r := range payload.Relationships {
		rels = append(rels, r.extractedRelationship)
	}
	return chunkResult{
		entities:      toEntities(payload.Entities, src),
		relationships: toRelationships(rels, src),
	}
}

// enhance asks for extended descriptions of the high-importance entities
// and returns a new slice with the results merged by exact name.
func (g *GraphClient) enhance(
	ctx context.Context,
	doc common.Document,
	chunks []string,
	entities []common.Entity,
) []common.Entity {
	var important []string
	seen := make(map[string]struct{})
	for _, e := range entities {
		if e.Importance != common.ImportanceHigh {
			continue
		}
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		important = append(important, e.Name)
		if len(important) == passCMaxEntities {
			break
		}
	}
	if len(important) == 0 {
		return entities
	}

	prompt := fmt.Sprintf(ai.EnhancePrompt,
		strings.Join(important, ", "),
		doc.Title,
		text.Truncate(strings.Join(chunks, "\n\n"), passCTextRunes),
	)

	var payload enhancementPayload
	if err := g.complete(ctx, "enhance_entities",
		"Extended context for important entities.", prompt, &payload, passCTemperature); err != nil {
		logger.Debug("[Extract] Context enrichment skipped", "title", doc.Title, "err", err)
		return entities
	}

	return mergeEnhancements(entities, payload.EnhancedEntities)
}

func mergeEnhancements(entities []common.Entity, enhanced []enhancedEntity) []common.Entity {
	byName := make(map[string]enhancedEntity, len(enhanced))
	for _, e := range enhanced {
		byName[strings.TrimSpace(e.Name)] = e
	}

	out := make([]common.Entity, len(entities))
	for i, e := range entities {
		if en, ok := byName[e.Name]; ok {
			e.Description = common.LongerText(e.Description, strings.TrimSpace(en.ExtendedDescription))
			e.KeyFacts = appendFacts(append([]string(nil), e.KeyFacts...), en.KeyFacts...)
		}
		out[i] = e
	}
	return out
}

func appendFacts(facts []string, add ...string) []string {
	seen := make(map[string]struct{}, len(facts)+len(add))
	for _, f := range facts {
		seen[f] = struct{}{}
	}
	for _, f := range add {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		facts = append(facts, f)
	}
	return facts
}

func uniqueNames(entities []common.Entity, limit int) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, e := range entities {
		k := e.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		names = append(names, e.Name)
		if len(names) == limit {
			break
		}
	}
	return names
}
