package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

// keywordEmbedder maps each text to a vector of keyword counts,
// giving deterministic similarity without a network call.
type keywordEmbedder struct {
	keywords []string
}

func (e *keywordEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v := make([]float64, len(e.keywords))
		lower := strings.ToLower(text)
		for j, kw := range e.keywords {
			v[j] = float64(strings.Count(lower, kw))
		}
		out[i] = v
	}
	return out, nil
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedTexts(context.Context, []string) ([][]float64, error) {
	return nil, errors.New("embeddings offline")
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1}, []float64{1, 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIndexSearchRanking(t *testing.T) {
	emb := &keywordEmbedder{keywords: []string{"cats", "dogs", "birds"}}
	chunks := []Chunk{
		{Text: "dogs dogs dogs everywhere", Position: 0, TotalChunks: 3},
		{Text: "cats cats and more cats", Position: 1, TotalChunks: 3},
		{Text: "birds singing about birds", Position: 2, TotalChunks: 3},
	}

	ix, err := BuildIndex(context.Background(), emb, chunks)
	if err != nil {
		t.Fatal(err)
	}

	top, err := ix.Search(context.Background(), "tell me about cats", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d results, want 2", len(top))
	}
	if top[0].Position != 1 {
		t.Errorf("best match Position = %d, want the cats chunk", top[0].Position)
	}
}

func TestIndexSearchKLargerThanIndex(t *testing.T) {
	emb := &keywordEmbedder{keywords: []string{"cats"}}
	ix, err := BuildIndex(context.Background(), emb, []Chunk{{Text: "cats"}, {Text: "cats again"}})
	if err != nil {
		t.Fatal(err)
	}
	top, err := ix.Search(context.Background(), "cats", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d results, want all 2", len(top))
	}
}

func TestBuildIndexErrors(t *testing.T) {
	if _, err := BuildIndex(context.Background(), failingEmbedder{}, []Chunk{{Text: "x"}}); err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if _, err := BuildIndex(context.Background(), failingEmbedder{}, nil); err == nil {
		t.Fatal("expected error for empty chunk list")
	}
}
