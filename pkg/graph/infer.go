package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/yt110010111/market-analysis-LLM/pkg/ai"
	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
)

const (
	expansionMinHigh     = 5
	expansionSeeds       = 5
	expansionTemperature = 0.3
	inferenceMinEntities = 5
	inferenceMinRels     = 3
	inferenceNames       = 15
	inferenceEdges       = 10
	inferenceTemperature = 0.3
)

// ExpandEntities asks the model for plausible related entities that the
// documents did not mention. It only runs when at least five entities are
// rated high importance. Accepted suggestions are tagged Inferred and merged
// through DedupeEntities. Any failure returns entities unchanged.
func (g *GraphClient) ExpandEntities(ctx context.Context, query string, entities []common.Entity) []common.Entity {
	var seeds []string
	for _, e := range entities {
		if e.Importance == common.ImportanceHigh {
			seeds = append(seeds, e.Name)
		}
	}
	if len(seeds) < expansionMinHigh {
		return entities
	}
	seeds = seeds[:expansionSeeds]

	prompt := fmt.Sprintf(ai.ExpandEntitiesPrompt,
		query,
		strings.Join(seeds, ", "),
		strings.Join(common.EntityTypes, ", "),
	)

	var payload expansionPayload
	if err := g.complete(ctx, "expand_entities", "Related entities not yet mentioned.", prompt, &payload, expansionTemperature); err != nil {
		logger.Warn("[Extract] Entity expansion failed", "err", err)
		return entities
	}

	added := make([]common.Entity, 0, len(payload.InferredEntities))
	for _, e := range payload.InferredEntities {
		name := strings.TrimSpace(e.Name)
		if !validName(name) || !acceptedConfidence(e.Confidence) {
			continue
		}
		added = append(added, common.Entity{
			Name:        name,
			Type:        normalizeType(e.Type),
			Description: strings.TrimSpace(e.Description),
			Importance:  common.ImportanceLow,
			Inferred:    true,
		})
	}

	merged := DedupeEntities(append(append([]common.Entity(nil), entities...), added...))
	logger.Debug("[Extract] Entity expansion", "suggested", len(payload.InferredEntities),
		"accepted", len(added), "entities", len(merged))
	return merged
}

// InferRelationships asks the model for edges implied by the existing ones.
// It only runs with at least five entities and three relationships. Only
// medium and high confidence edges between known entities are kept; they are
// tagged Inferred and pass the same suppression as extracted edges. Any
// failure returns rels unchanged.
func (g *GraphClient) InferRelationships(
	ctx context.Context,
	query string,
	entities []common.Entity,
	rels []common.Relationship,
) []common.Relationship {
	if len(entities) < inferenceMinEntities || len(rels) < inferenceMinRels {
		return rels
	}

	known := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		known[e.Key()] = struct{}{}
	}

	names := make([]string, 0, inferenceNames)
	for _, e := range entities[:min(inferenceNames, len(entities))] {
		names = append(names, e.Name)
	}
	var edges strings.Builder
	for _, r := range rels[:min(inferenceEdges, len(rels))] {
		fmt.Fprintf(&edges, "- (%s, %s, %s)\n", r.Source, r.Relation, r.Target)
	}

	prompt := fmt.Sprintf(ai.InferRelationshipsPrompt, query, strings.Join(names, ", "), edges.String())

	var payload inferencePayload
	if err := g.complete(ctx, "infer_relationships", "Implied relationships.", prompt, &payload, inferenceTemperature); err != nil {
		logger.Warn("[Extract] Relationship inference failed", "err", err)
		return rels
	}

	added := make([]common.Relationship, 0, len(payload.InferredRelationships))
	for _, r := range payload.InferredRelationships {
		if !acceptedConfidence(r.Confidence) {
			continue
		}
		if _, ok := known[common.NormalizeKey(r.Source)]; !ok {
			continue
		}
		if _, ok := known[common.NormalizeKey(r.Target)]; !ok {
			continue
		}
		rel, ok := toRelationship(extractedRelationship{
			Source:      r.Source,
			Target:      r.Target,
			Relation:    r.Relation,
			Description: r.Description,
			Strength:    string(common.StrengthWeak),
		}, common.Source{})
		if !ok {
			continue
		}
		rel.Inferred = true
		added = append(added, rel)
	}

	merged := DedupeRelationships(append(append([]common.Relationship(nil), rels...), added...))
	logger.Debug("[Extract] Relationship inference", "suggested", len(payload.InferredRelationships),
		"accepted", len(added), "relationships", len(merged))
	return merged
}
