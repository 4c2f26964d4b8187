package text

import (
	"strings"
	"unicode"
)

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '」', '』', '”':
		return true
	}
	return false
}

// SplitSentences splits text into sentences. Blank lines always end a
// sentence; single line breaks inside a sentence are joined with a space.
// A period following a digit and followed by a space ("1. ") is treated as
// a list marker, not a terminator.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for line := range strings.SplitSeq(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}

		for _, part := range splitLine(trimmed) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(part)

			last := []rune(strings.TrimRightFunc(part, isCloser))
			if len(last) > 0 && isTerminator(last[len(last)-1]) {
				flush()
			}
		}
	}
	flush()

	return sentences
}

func splitLine(line string) []string {
	runes := []rune(line)
	var parts []string
	var current strings.Builder

	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if !isTerminator(runes[i]) {
			continue
		}

		if runes[i] == '.' && i > 0 && unicode.IsDigit(runes[i-1]) &&
			(i+1 == len(runes) || runes[i+1] == ' ') && isListMarker(runes[:i]) {
			continue
		}
		// decimals and abbreviations like "3.5" or "e.g" continue the sentence
		if runes[i] == '.' && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) && !isCloser(runes[i+1]) {
			continue
		}

		j := i + 1
		for j < len(runes) && (isTerminator(runes[j]) || isCloser(runes[j])) {
			current.WriteRune(runes[j])
			j++
		}

		if s := strings.TrimSpace(current.String()); s != "" {
			parts = append(parts, s)
		}
		current.Reset()
		i = j - 1
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		parts = append(parts, s)
	}
	return parts
}

// isListMarker reports whether prefix (everything before a '.') is only
// whitespace followed by digits, as in "12".
func isListMarker(prefix []rune) bool {
	s := strings.TrimSpace(string(prefix))
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
