package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/yt110010111/market-analysis-LLM/pkg/ai"
	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/graph"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
	"github.com/yt110010111/market-analysis-LLM/pkg/text"
)

const (
	evaluateTopEntities  = 10
	evaluateTemperature  = 0.1
	evaluateMaxTokens    = 1024
	evaluateDescriptions = 100
)

type verdictPayload struct {
	IsSufficient   bool     `json:"is_sufficient"`
	Confidence     float64  `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	CoverageScore  float64  `json:"coverage_score" jsonschema:"minimum=0,maximum=100"`
	MissingAspects []string `json:"missing_aspects"`
	Reason         string   `json:"reason"`
}

// Evaluator decides whether a knowledge graph is sufficient for a report.
type Evaluator struct {
	ai  ai.CompletionClient
	cfg Config
}

func NewEvaluator(client ai.CompletionClient, cfg Config) *Evaluator {
	return &Evaluator{ai: client, cfg: cfg.withDefaults()}
}

// Evaluate asks the model for a verdict on the graph. Any completion or
// parse failure yields the Fallback verdict instead.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	query string,
	entities []common.Entity,
	rels []common.Relationship,
	iteration int,
) common.Verdict {
	prompt := fmt.Sprintf(ai.EvaluatePrompt,
		query,
		iteration,
		len(entities),
		len(rels),
		graph.FormatCounts(graph.TopCounts(graph.EntityTypeHistogram(entities), 0)),
		graph.FormatCounts(graph.TopCounts(graph.RelationTypeHistogram(rels), 0)),
		formatTopEntities(entities, evaluateTopEntities),
	)

	var payload verdictPayload
	err := ai.CompleteJSON(ctx, e.ai, "sufficiency_verdict", "Whether the graph is sufficient for a report.", prompt, &payload,
		ai.WithSystemPrompts(ai.ResearchSystemPrompt),
		ai.WithTemperature(evaluateTemperature),
		ai.WithMaxTokens(evaluateMaxTokens),
		ai.WithTimeout(e.cfg.CallTimeout),
	)
	if err != nil {
		logger.Warn("[Research] Evaluation failed, using fallback", "iteration", iteration, "err", Classify(err))
		return e.Fallback(len(entities), len(rels))
	}

	v := common.Verdict{
		IsSufficient:   payload.IsSufficient,
		Confidence:     clamp(payload.Confidence, 0, 1),
		CoverageScore:  clamp(payload.CoverageScore, 0, 100),
		MissingAspects: cleanAspects(payload.MissingAspects),
		Reason:         strings.TrimSpace(payload.Reason),
	}
	logger.Info("[Research] Evaluation",
		"iteration", iteration,
		"sufficient", v.IsSufficient,
		"confidence", v.Confidence,
		"coverage", v.CoverageScore,
		"missing", v.MissingAspects,
	)
	return v
}

// Fallback judges the graph by counts alone: sufficient when both the
// entity and the relationship minimum are reached.
func (e *Evaluator) Fallback(entityCount, relCount int) common.Verdict {
	sufficient := entityCount >= e.cfg.MinEntities && relCount >= e.cfg.MinRelationships
	coverage := 50*float64(entityCount)/float64(e.cfg.MinEntities) +
		50*float64(relCount)/float64(e.cfg.MinRelationships)

	v := common.Verdict{
		IsSufficient:  sufficient,
		Confidence:    e.cfg.FallbackConfidence,
		CoverageScore: min(100, coverage),
		Fallback:      true,
		Reason:        fmt.Sprintf("%d entities and %d relationships", entityCount, relCount),
	}
	if !sufficient {
		v.MissingAspects = []string{"need more data"}
	}
	return v
}

// CoverageCheck reports whether stored data can answer a query without any
// search: either count reaching its minimum is enough.
func (e *Evaluator) CoverageCheck(entityCount, relCount int) bool {
	return entityCount >= e.cfg.CoverageMinEntities || relCount >= e.cfg.CoverageMinRelationships
}

func formatTopEntities(entities []common.Entity, n int) string {
	if len(entities) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, e := range entities[:min(n, len(entities))] {
		fmt.Fprintf(&b, "- %s (%s, %s): %s\n", e.Name, e.Type, e.Importance, text.Truncate(e.Description, evaluateDescriptions))
	}
	return b.String()
}

func cleanAspects(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
