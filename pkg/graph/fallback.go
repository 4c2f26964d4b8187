package graph

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/text"
)

const fallbackMaxPhrases = 10

var (
	// two or more capitalized words, e.g. "Acme Robotics" or "Jane Lin"
	capitalizedPhraseRe = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9&'-]*(?:\s+[A-Z][a-zA-Z0-9&'-]*)+\b`)

	jobTitles = `CEO|CTO|CFO|COO|CMO|Founder|Co-Founder|Co-founder|President|Chairman|Chairwoman|Chair|Director|Head`

	// "Jane Lin, CEO of Acme Robotics"
	nameTitleOfOrgRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+),\s+(?:the\s+)?(?:` + jobTitles + `)\s+(?:of|at)\s+([A-Z][\w&'-]*(?:\s+[A-Z][\w&'-]*)*)`)
	// "Acme Robotics CEO Jane Lin" or "CEO Jane Lin"
	titleNameRe = regexp.MustCompile(`(?:\b([A-Z][\w&'-]*(?:\s+[A-Z][\w&'-]*)*)\s+)?\b(?:` + jobTitles + `)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)`)
)

var phraseStopwords = map[string]struct{}{
	"The": {}, "This": {}, "That": {}, "These": {}, "In": {}, "On": {}, "At": {},
	"For": {}, "And": {}, "But": {}, "Our": {}, "We": {}, "It": {}, "A": {}, "An": {},
}

// FallbackResult is the output of FallbackExtract.
type FallbackResult struct {
	Entities      []common.Entity
	Relationships []common.Relationship
}

// FallbackExtract derives a minimal graph from a document without a model:
// the title as a concept, up to ten frequent capitalized phrases, and
// people found next to job titles together with "lead" relationships.
func FallbackExtract(doc common.Document) FallbackResult {
	src := doc.Source()
	var res FallbackResult
	seen := make(map[string]struct{})

	add := func(e common.Entity) {
		k := e.Key()
		if k == "" || !validName(e.Name) {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		e.Sources = sourcesOf(src)
		res.Entities = append(res.Entities, e)
	}

	if title := strings.TrimSpace(doc.Title); title != "" {
		add(common.Entity{
			Name:        text.Truncate(title, 120),
			Type:        "concept",
			Description: strings.TrimSpace(doc.Description),
			Importance:  common.ImportanceMedium,
		})
	}

	body := doc.Text

	for _, m := range nameTitleOfOrgRe.FindAllStringSubmatch(body, -1) {
		res.addLeadership(m[1], m[2], m[0], src, add)
	}
	for _, m := range titleNameRe.FindAllStringSubmatch(body, -1) {
		res.addLeadership(m[2], m[1], m[0], src, add)
	}

	for _, p := range rankPhrases(body, fallbackMaxPhrases) {
		add(common.Entity{
			Name:       p,
			Type:       common.TypeUnclassified,
			Importance: common.ImportanceLow,
		})
	}

	return res
}

func (res *FallbackResult) addLeadership(person, org, evidence string, src common.Source, add func(common.Entity)) {
	person = trimLeadingStopwords(strings.TrimSpace(person))
	org = trimLeadingStopwords(strings.TrimSpace(org))
	if person == "" {
		return
	}
	add(common.Entity{
		Name:        person,
		Type:        "person",
		Description: strings.TrimSpace(evidence),
		Importance:  common.ImportanceMedium,
	})
	if org == "" || common.NormalizeKey(org) == common.NormalizeKey(person) {
		return
	}
	add(common.Entity{
		Name:       org,
		Type:       "organization",
		Importance: common.ImportanceMedium,
	})
	res.Relationships = append(res.Relationships, common.Relationship{
		Source:      person,
		Target:      org,
		Relation:    "lead",
		Description: strings.TrimSpace(evidence),
		Strength:    common.StrengthMedium,
		Sources:     sourcesOf(src),
	})
}

func rankPhrases(body string, limit int) []string {
	counts := make(map[string]int)
	var order []string
	for _, sentence := range text.SplitSentences(body) {
		for _, p := range capitalizedPhraseRe.FindAllString(sentence, -1) {
			p = trimLeadingStopwords(p)
			if !strings.Contains(p, " ") {
				continue
			}
			if _, ok := counts[p]; !ok {
				order = append(order, p)
			}
			counts[p]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

func trimLeadingStopwords(p string) string {
	words := strings.Fields(p)
	for len(words) > 0 {
		if _, ok := phraseStopwords[words[0]]; !ok {
			break
		}
		words = words[1:]
	}
	return strings.Join(words, " ")
}
