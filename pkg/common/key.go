package common

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// corporateSuffixes are dropped from the end of a name before comparison.
var corporateSuffixes = map[string]struct{}{
	"inc":         {},
	"ltd":         {},
	"llc":         {},
	"corp":        {},
	"corporation": {},
	"company":     {},
	"co":          {},
}

// NormalizeKey derives the identity key of an entity name. Case,
// punctuation, whitespace and trailing corporate suffixes are ignored, so
// "OpenAI, Inc.", "openai inc" and "OpenAI" share the key "openai".
func NormalizeKey(name string) string {
	name = strings.ToLower(norm.NFKC.String(name))

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r), r == '_', unicode.Is(unicode.Mn, r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for len(tokens) > 1 {
		if _, ok := corporateSuffixes[tokens[len(tokens)-1]]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, "")
}
