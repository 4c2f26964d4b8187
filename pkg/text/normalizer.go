package text

// Normalizer turns fetched page text into a bounded list of chunks ready
// for extraction.
type Normalizer struct {
	ChunkSize    int
	ChunkOverlap int
	MaxChunks    int
	MinParagraph int
}

// NewNormalizer returns a Normalizer with the default sizes.
func NewNormalizer() Normalizer {
	return Normalizer{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		MaxChunks:    DefaultMaxChunks,
		MinParagraph: DefaultMinParagraph,
	}
}

// Prepare cleans raw and chunks it, keeping at most MaxChunks chunks.
func (n Normalizer) Prepare(raw string) []string {
	minParagraph := n.MinParagraph
	if minParagraph <= 0 {
		minParagraph = DefaultMinParagraph
	}
	size := n.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	chunks := Chunk(CleanWith(raw, minParagraph), size, n.ChunkOverlap)
	if n.MaxChunks > 0 && len(chunks) > n.MaxChunks {
		chunks = chunks[:n.MaxChunks]
	}
	return chunks
}
