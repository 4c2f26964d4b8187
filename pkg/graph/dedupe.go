package graph

import (
	"strings"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
)

var reverseRelations = map[string]string{
	"lead":    "led_by",
	"invest":  "invested_by",
	"acquire": "acquired_by",
	"founded": "founded_by",
	"use":     "used_by",
	"develop": "developed_by",
}

func init() {
	for k, v := range reverseRelations {
		reverseRelations[v] = k
	}
}

// ReverseRelation returns the relation that describes the same edge seen
// from the target. Unmapped relations are their own reverse.
func ReverseRelation(rel string) string {
	rel = strings.ToLower(strings.TrimSpace(rel))
	if r, ok := reverseRelations[rel]; ok {
		return r
	}
	return rel
}

// DedupeEntities merges entities sharing a normalized key. The first-seen
// member provides the display name and position; the longest description
// wins, sources are unioned, key facts concatenated, importance promoted
// and the first classified type kept. A merged entity stays inferred only
// when every member was inferred. The input is not modified.
func DedupeEntities(raw []common.Entity) []common.Entity {
	index := make(map[string]int, len(raw))
	out := make([]common.Entity, 0, len(raw))

	for _, e := range raw {
		name := strings.TrimSpace(e.Name)
		if !validName(name) {
			continue
		}
		k := common.NormalizeKey(name)
		if k == "" {
			continue
		}

		i, ok := index[k]
		if !ok {
			e.Name = name
			if e.Type == "" {
				e.Type = common.TypeUnclassified
			}
			if e.Importance == "" {
				e.Importance = common.ImportanceMedium
			}
			e.Sources = common.UnionSources(nil, e.Sources...)
			e.KeyFacts = appendFacts(nil, e.KeyFacts...)
			index[k] = len(out)
			out = append(out, e)
			continue
		}

		cur := &out[i]
		cur.Description = common.LongerText(cur.Description, e.Description)
		cur.Sources = common.UnionSources(cur.Sources, e.Sources...)
		cur.KeyFacts = appendFacts(cur.KeyFacts, e.KeyFacts...)
		cur.Importance = common.MaxImportance(cur.Importance, e.Importance)
		if cur.Type == common.TypeUnclassified && e.Type != "" {
			cur.Type = e.Type
		}
		cur.Inferred = cur.Inferred && e.Inferred
		cur.RelevanceScore = max(cur.RelevanceScore, e.RelevanceScore)
	}

	return out
}

type relKey struct {
	source   string
	relation string
	target   string
}

// DedupeRelationships keeps the first record of every edge. A record is
// suppressed when its key or its mirror (target, reverse(relation), source)
// was already seen; its sources and a longer description are folded into
// the kept edge and strength is promoted. Records with an empty endpoint or
// with both endpoints on the same entity are dropped.
func DedupeRelationships(raw []common.Relationship) []common.Relationship {
	index := make(map[relKey]int, len(raw))
	out := make([]common.Relationship, 0, len(raw))

	for _, r := range raw {
		src := common.NormalizeKey(r.Source)
		tgt := common.NormalizeKey(r.Target)
		rel := strings.ToLower(strings.TrimSpace(r.Relation))
		if src == "" || tgt == "" || src == tgt || rel == "" {
			continue
		}

		key := relKey{src, rel, tgt}
		mirror := relKey{tgt, ReverseRelation(rel), src}

		i, ok := index[key]
		if !ok {
			i, ok = index[mirror]
		}
		if !ok {
			r.Relation = rel
			if r.Strength == "" {
				r.Strength = common.StrengthMedium
			}
			r.Sources = common.UnionSources(nil, r.Sources...)
			index[key] = len(out)
			out = append(out, r)
			continue
		}

		cur := &out[i]
		cur.Description = common.LongerText(cur.Description, r.Description)
		cur.Sources = common.UnionSources(cur.Sources, r.Sources...)
		cur.Strength = common.MaxStrength(cur.Strength, r.Strength)
		cur.Inferred = cur.Inferred && r.Inferred
	}

	return out
}
