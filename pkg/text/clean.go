package text

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMinParagraph is the rune length a line must exceed to survive Clean.
const DefaultMinParagraph = 50

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)cookie\s+policy`),
	regexp.MustCompile(`(?i)privacy\s+policy`),
	regexp.MustCompile(`(?i)terms\s+of\s+(service|use)`),
	regexp.MustCompile(`(?i)subscribe.*newsletter`),
	regexp.MustCompile(`(?i)related\s+articles`),
	regexp.MustCompile(`(?i)all\s+rights\s+reserved`),
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Clean strips boilerplate from fetched page text using DefaultMinParagraph.
func Clean(raw string) string {
	return CleanWith(raw, DefaultMinParagraph)
}

// CleanWith drops lines that look like site chrome or are not longer than
// minParagraph runes and joins the survivors with blank lines. When nothing
// survives the whitespace-collapsed input is returned instead.
func CleanWith(raw string, minParagraph int) string {
	var kept []string
	for line := range strings.SplitSeq(raw, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= minParagraph {
			continue
		}
		if isNoise(line) {
			continue
		}
		kept = append(kept, line)
	}

	if len(kept) == 0 {
		return CollapseWhitespace(raw)
	}
	return strings.Join(kept, "\n\n")
}

func isNoise(line string) bool {
	for _, re := range noisePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// CollapseWhitespace replaces every whitespace run with a single space.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
