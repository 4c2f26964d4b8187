package graph

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
)

// ScoreEntities rates every entity's relevance to query and returns a new
// slice sorted by descending score. Equal scores keep their input order.
func ScoreEntities(entities []common.Entity, rels []common.Relationship, query string) []common.Entity {
	mentions := make(map[string]int)
	for _, r := range rels {
		mentions[common.NormalizeKey(r.Source)]++
		mentions[common.NormalizeKey(r.Target)]++
	}

	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]common.Entity, len(entities))
	for i, e := range entities {
		e.RelevanceScore = scoreEntity(e, q, mentions[e.Key()])
		out[i] = e
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelevanceScore > out[j].RelevanceScore
	})
	return out
}

func scoreEntity(e common.Entity, q string, mentions int) float64 {
	score := 0
	if q != "" && strings.Contains(strings.ToLower(e.Name), q) {
		score += 10
	}
	if q != "" && strings.Contains(strings.ToLower(e.Description), q) {
		score += 5
	}

	switch e.Importance {
	case common.ImportanceHigh:
		score += 8
	case common.ImportanceMedium, "":
		score += 4
	}

	score += min(mentions*2, 10)

	switch n := utf8.RuneCountInString(e.Description); {
	case n > 100:
		score += 3
	case n > 50:
		score += 1
	}

	score += len(e.KeyFacts)
	score += min(len(e.Sources), 5)

	return float64(score)
}
