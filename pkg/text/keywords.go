package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const DefaultMaxKeywords = 5

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "in": {},
	"on": {}, "for": {}, "to": {}, "with": {}, "by": {}, "at": {}, "from": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "as": {}, "about": {},
	"what": {}, "which": {}, "who": {}, "how": {}, "why": {}, "when": {},
	"where": {}, "this": {}, "that": {}, "these": {}, "those": {}, "it": {},
	"its": {}, "vs": {}, "versus": {}, "into": {}, "do": {}, "does": {},
	"的": {}, "了": {}, "和": {}, "與": {}, "与": {}, "是": {}, "在": {},
	"及": {}, "或": {}, "有": {}, "嗎": {}, "吗": {}, "呢": {}, "之": {},
}

// Keywords extracts up to max search terms from a query. Stopwords and
// single-rune tokens are dropped, duplicates are kept once, and max is
// capped at DefaultMaxKeywords.
func Keywords(query string, max int) []string {
	if max <= 0 || max > DefaultMaxKeywords {
		max = DefaultMaxKeywords
	}

	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})

	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= 1 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
		if len(out) == max {
			break
		}
	}
	return out
}
