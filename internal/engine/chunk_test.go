package engine

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitChunksEmpty(t *testing.T) {
	if got := SplitChunks("   "); got != nil {
		t.Fatalf("SplitChunks(blank) = %v, want nil", got)
	}
}

func TestSplitChunksShortText(t *testing.T) {
	chunks := SplitChunks("a short transcript about nothing much")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Position != 0 || chunks[0].TotalChunks != 1 {
		t.Fatalf("chunk metadata = %+v", chunks[0])
	}
}

func TestChunkParams(t *testing.T) {
	tests := []struct {
		docLen      int
		wantSize    int
		wantOverlap int
	}{
		{100, 800, 150},
		{20000, 800, 150},
		{20001, 1200, 200},
		{100000, 1200, 200},
	}
	for _, tt := range tests {
		size, overlap := ChunkParams(tt.docLen)
		if size != tt.wantSize || overlap != tt.wantOverlap {
			t.Errorf("ChunkParams(%d) = %d, %d; want %d, %d",
				tt.docLen, size, overlap, tt.wantSize, tt.wantOverlap)
		}
	}
}

func TestSplitChunksProperties(t *testing.T) {
	sentence := "The quick brown fox jumps over the lazy dog. "
	text := strings.Repeat(sentence, 120) // ~5400 chars

	chunks := SplitChunks(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}

	size, overlap := ChunkParams(len(text))
	for i, c := range chunks {
		if c.Position != i {
			t.Errorf("chunk %d has Position %d", i, c.Position)
		}
		if c.TotalChunks != len(chunks) {
			t.Errorf("chunk %d has TotalChunks %d, want %d", i, c.TotalChunks, len(chunks))
		}
		if len(c.Text) > size {
			t.Errorf("chunk %d is %d chars, max %d", i, len(c.Text), size)
		}
	}

	// Consecutive chunks share the overlap region.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		if len(prev) < overlap {
			continue
		}
		tail := prev[len(prev)-overlap:]
		if !strings.HasPrefix(chunks[i].Text, tail) {
			t.Errorf("chunk %d does not start with the last %d chars of chunk %d", i, overlap, i-1)
		}
	}

	// No content lost: stripping the overlap prefix from each
	// subsequent chunk reconstructs the original text.
	var sb strings.Builder
	sb.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		sb.WriteString(chunks[i].Text[overlap:])
	}
	if sb.String() != text {
		t.Error("reassembled chunks do not match the original text")
	}
}

func TestSplitChunksRuneSafe(t *testing.T) {
	// Multi-byte text with none of the cut separators forces the
	// character-split fallback, which must not cut mid-rune.
	text := strings.Repeat("日本語の動画文字起こし", 100) // 3-byte runes, 3000 bytes

	chunks := SplitChunks(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
	}
}

func TestSplitChunksSeparatorAware(t *testing.T) {
	sentence := "Words and more words fill this sentence up nicely. "
	text := strings.Repeat(sentence, 60)

	chunks := SplitChunks(text)
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c.Text, ". ") {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, c.Text[len(c.Text)-20:])
		}
	}
}
