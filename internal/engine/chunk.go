package engine

import "strings"

// Chunking for retrieval. Transcripts are cut into overlapping pieces
// so a query can match mid-transcript content; separator-aware cuts
// keep sentences intact where possible.

const (
	chunkSize        = 800
	chunkOverlap     = 150
	bigChunkSize     = 1200
	bigChunkOverlap  = 200
	bigChunkDocChars = 20000
)

// chunkSeparators in descending preference. A cut snaps back to the
// best separator found in the second half of the window.
var chunkSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " "}

// Chunk is one retrieval unit of a transcript.
type Chunk struct {
	Text        string
	Position    int
	TotalChunks int
}

// ChunkParams returns the chunk size and overlap for a document of the
// given length. Longer documents get bigger chunks to keep the index small.
func ChunkParams(docLen int) (size, overlap int) {
	if docLen > bigChunkDocChars {
		return bigChunkSize, bigChunkOverlap
	}
	return chunkSize, chunkOverlap
}

// SplitChunks cuts text into overlapping chunks sized for its length.
// Consecutive chunks share at least the overlap region. Whitespace-only
// input yields no chunks.
func SplitChunks(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	size, overlap := ChunkParams(len(text))

	var texts []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			texts = append(texts, text[start:])
			break
		}
		end = snapToSeparator(text, start, end)
		texts = append(texts, text[start:end])

		next := snapRuneStart(text, end-overlap)
		if next <= start {
			next = end
		}
		start = next
	}

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Text: t, Position: i, TotalChunks: len(texts)}
	}
	return chunks
}

// snapToSeparator moves a cut point backwards to the nearest natural
// boundary, but never into the first half of the window. Without a
// separator the cut still lands on a rune boundary.
func snapToSeparator(text string, start, end int) int {
	window := text[start:end]
	min := len(window) / 2
	for _, sep := range chunkSeparators {
		idx := strings.LastIndex(window, sep)
		if idx > min {
			return start + idx + len(sep)
		}
	}
	return snapRuneStart(text, end)
}
