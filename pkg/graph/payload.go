package graph

import (
	"strings"
	"unicode/utf8"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
)

// The payload types mirror what the model is asked to return. They are
// converted to common types at the parse boundary, where every missing
// field gets its default.

type extractedEntity struct {
	Name        string `json:"name" jsonschema_description:"Entity name as written in the text"`
	Type        string `json:"type" jsonschema_description:"One of the provided entity types"`
	Description string `json:"description" jsonschema_description:"Background, role and relevance to the topic"`
	Importance  string `json:"importance" jsonschema:"enum=high,enum=medium,enum=low"`
}

type extractedRelationship struct {
	Source      string `json:"source" jsonschema_description:"Name of the source entity"`
	Target      string `json:"target" jsonschema_description:"Name of the target entity"`
	Relation    string `json:"relation" jsonschema_description:"Relation type"`
	Description string `json:"description" jsonschema_description:"How and why the entities are related"`
	Strength    string `json:"strength" jsonschema:"enum=strong,enum=medium,enum=weak"`
}

type extractionPayload struct {
	Entities      []extractedEntity       `json:"entities"`
	Relationships []extractedRelationship `json:"relationships"`
}

type minedRelationship struct {
	extractedRelationship
	Evidence string `json:"evidence" jsonschema_description:"Text supporting the relationship"`
}

type miningPayload struct {
	Relationships []minedRelationship `json:"relationships"`
	Entities      []extractedEntity   `json:"entities"`
}

type enhancedEntity struct {
	Name                string   `json:"name"`
	ExtendedDescription string   `json:"extended_description"`
	KeyFacts            []string `json:"key_facts"`
}

type enhancementPayload struct {
	EnhancedEntities []enhancedEntity `json:"enhanced_entities"`
}

type inferredEntity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Confidence  string `json:"confidence" jsonschema:"enum=high,enum=medium,enum=low"`
	Reasoning   string `json:"reasoning"`
}

type expansionPayload struct {
	InferredEntities []inferredEntity `json:"inferred_entities"`
}

type inferredRelationship struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Relation    string `json:"relation"`
	Description string `json:"description"`
	Confidence  string `json:"confidence" jsonschema:"enum=high,enum=medium,enum=low"`
}

type inferencePayload struct {
	InferredRelationships []inferredRelationship `json:"inferred_relationships"`
}

var knownTypes = func() map[string]struct{} {
	m := make(map[string]struct{}, len(common.EntityTypes))
	for _, t := range common.EntityTypes {
		m[t] = struct{}{}
	}
	return m
}()

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if _, ok := knownTypes[t]; ok {
		return t
	}
	return common.TypeUnclassified
}

func normalizeRelation(r string) string {
	r = strings.ToLower(strings.TrimSpace(r))
	return strings.Join(strings.Fields(r), "_")
}

func acceptedConfidence(c string) bool {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "high", "medium":
		return true
	}
	return false
}

func validName(name string) bool {
	return utf8.RuneCountInString(name) >= 2
}

func toEntities(in []extractedEntity, src common.Source) []common.Entity {
	out := make([]common.Entity, 0, len(in))
	for _, e := range in {
		name := strings.TrimSpace(e.Name)
		if !validName(name) {
			continue
		}
		out = append(out, common.Entity{
			Name:        name,
			Type:        normalizeType(e.Type),
			Description: strings.TrimSpace(e.Description),
			Importance:  common.ParseImportance(e.Importance),
			Sources:     sourcesOf(src),
		})
	}
	return out
}

func toRelationship(r extractedRelationship, src common.Source) (common.Relationship, bool) {
	source := strings.TrimSpace(r.Source)
	target := strings.TrimSpace(r.Target)
	relation := normalizeRelation(r.Relation)
	if source == "" || target == "" || relation == "" {
		return common.Relationship{}, false
	}
	return common.Relationship{
		Source:      source,
		Target:      target,
		Relation:    relation,
		Description: strings.TrimSpace(r.Description),
		Strength:    common.ParseStrength(r.Strength),
		Sources:     sourcesOf(src),
	}, true
}

func toRelationships(in []extractedRelationship, src common.Source) []common.Relationship {
	out := make([]common.Relationship, 0, len(in))
	for _, r := range in {
		if rel, ok := toRelationship(r, src); ok {
			out = append(out, rel)
		}
	}
	return out
}

func sourcesOf(src common.Source) []common.Source {
	if src.Key() == "" {
		return nil
	}
	return []common.Source{src}
}
