package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
)

// Statistics summarizes an extraction batch.
type Statistics struct {
	TotalEntities      int            `json:"total_entities"`
	TotalRelationships int            `json:"total_relationships"`
	DocumentsProcessed int            `json:"documents_processed"`
	EntityTypes        map[string]int `json:"entity_types"`
	RelationshipTypes  map[string]int `json:"relationship_types"`
}

// ComputeStatistics counts entities and relationships per type.
func ComputeStatistics(entities []common.Entity, rels []common.Relationship, documents int) Statistics {
	return Statistics{
		TotalEntities:      len(entities),
		TotalRelationships: len(rels),
		DocumentsProcessed: documents,
		EntityTypes:        EntityTypeHistogram(entities),
		RelationshipTypes:  RelationTypeHistogram(rels),
	}
}

func EntityTypeHistogram(entities []common.Entity) map[string]int {
	h := make(map[string]int)
	for _, e := range entities {
		t := e.Type
		if t == "" {
			t = common.TypeUnclassified
		}
		h[t]++
	}
	return h
}

func RelationTypeHistogram(rels []common.Relationship) map[string]int {
	h := make(map[string]int)
	for _, r := range rels {
		h[r.Relation]++
	}
	return h
}

// Count is one histogram bucket.
type Count struct {
	Key   string
	Count int
}

// TopCounts returns the n largest buckets of h, ties broken by key.
func TopCounts(h map[string]int, n int) []Count {
	out := make([]Count, 0, len(h))
	for k, v := range h {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// FormatCounts renders buckets as "a(3), b(1)".
func FormatCounts(counts []Count) string {
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s(%d)", c.Key, c.Count))
	}
	return strings.Join(parts, ", ")
}

func documentSummary(title string, entities []common.Entity, rels []common.Relationship) string {
	if len(entities) == 0 {
		return fmt.Sprintf("%s - no information extracted", title)
	}
	top := TopCounts(EntityTypeHistogram(entities), summaryTopTypes)
	return fmt.Sprintf("%s - extracted %d entities and %d relationships, mainly: %s",
		title, len(entities), len(rels), FormatCounts(top))
}
