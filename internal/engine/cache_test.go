package engine

import (
	"testing"
	"time"
)

func TestTranscriptCache(t *testing.T) {
	c := NewTranscriptCache()

	if _, ok := c.Get("abc"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("abc", "some transcript")
	got, ok := c.Get("abc")
	if !ok || got != "some transcript" {
		t.Fatalf("Get = %q, %v; want transcript, true", got, ok)
	}
}

func TestResultCacheTTL(t *testing.T) {
	c := NewResultCache(300 * time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := ResultKey("vid1", "what is this about")
	c.Set(key, "an answer")

	if got, ok := c.Get(key); !ok || got != "an answer" {
		t.Fatalf("fresh entry: Get = %q, %v", got, ok)
	}

	now = now.Add(299 * time.Second)
	if _, ok := c.Get(key); !ok {
		t.Fatal("entry expired before TTL")
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get(key); ok {
		t.Fatal("entry served past TTL")
	}

	// Expired entries stay stored until a sweep runs.
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestResultCacheOverwrite(t *testing.T) {
	c := NewResultCache(time.Minute)
	key := ResultKey("vid1", "q")
	c.Set(key, "first")
	c.Set(key, "second")
	if got, _ := c.Get(key); got != "second" {
		t.Fatalf("Get = %q, want second", got)
	}
}

func TestResultKey(t *testing.T) {
	if got := ResultKey("dQw4w9WgXcQ", "what happens"); got != "dQw4w9WgXcQ:what happens" {
		t.Fatalf("ResultKey = %q", got)
	}
}
