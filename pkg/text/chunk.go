package text

import "strings"

const (
	DefaultChunkSize    = 4000
	DefaultChunkOverlap = 500
	DefaultMaxChunks    = 5

	// a break point is only taken when it lies past this share of the window
	breakThreshold = 0.7
)

func isBreak(r rune) bool {
	switch r {
	case '.', '\n', '。', '!', '?', '！', '？':
		return true
	}
	return false
}

// Chunk splits text into windows of at most size runes, overlapping by
// overlap runes. A window ends after the last sentence break inside it when
// that break lies beyond 70% of the window. Text no longer than size is
// returned as a single verbatim chunk. Empty chunks are never emitted.
func Chunk(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(start+size, len(runes))

		if end < len(runes) {
			cut := -1
			for i := end - 1; i >= start; i-- {
				if isBreak(runes[i]) {
					cut = i - start
					break
				}
			}
			if float64(cut) > float64(size)*breakThreshold {
				end = start + cut + 1
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}
