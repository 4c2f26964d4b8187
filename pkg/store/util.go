package store

import (
	"strings"
)

// DedupeStrings drops empty and repeated values, keeping first-seen order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// LowerKeywords lower-cases and dedupes keywords, dropping blanks.
func LowerKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		out = append(out, strings.ToLower(strings.TrimSpace(k)))
	}
	return DedupeStrings(out)
}

// MatchesAny reports whether any keyword occurs in one of the fields,
// ignoring case. Keywords must already be lower-case.
func MatchesAny(keywords []string, fields ...string) bool {
	for _, f := range fields {
		f = strings.ToLower(f)
		for _, k := range keywords {
			if strings.Contains(f, k) {
				return true
			}
		}
	}
	return false
}
