package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Ephemeral in-memory vector index. Built per request, searched once,
// discarded. No persistence and no locking needed: an Index is never
// shared after construction.

// Index holds embedded chunks for one transcript.
type Index struct {
	embedder Embedder
	chunks   []Chunk
	vectors  [][]float64
}

// BuildIndex embeds all chunks and returns a searchable index.
func BuildIndex(ctx context.Context, embedder Embedder, chunks []Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("index: no chunks to embed")
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return &Index{embedder: embedder, chunks: chunks, vectors: vectors}, nil
}

// Search embeds the query and returns the k most similar chunks in
// descending similarity order. k larger than the index returns everything.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	qv, err := ix.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(qv) == 0 {
		return nil, fmt.Errorf("search: no query vector")
	}

	type scored struct {
		chunk Chunk
		score float64
	}
	results := make([]scored, 0, len(ix.chunks))
	for i, c := range ix.chunks {
		results = append(results, scored{chunk: c, score: cosineSimilarity(qv[0], ix.vectors[i])})
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].score > results[b].score })

	if k > len(results) {
		k = len(results)
	}
	top := make([]Chunk, k)
	for i := 0; i < k; i++ {
		top[i] = results[i].chunk
	}
	return top, nil
}

// cosineSimilarity returns 0 for mismatched or zero-magnitude vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
