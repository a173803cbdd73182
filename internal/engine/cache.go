package engine

import (
	"log/slog"
	"sync"
	"time"
)

// Two independent in-memory caches back the pipeline: transcripts by
// video id, and generated answers by "videoId:query". Both are owned by
// the orchestrator and injected, never ambient package state. Nothing
// survives a restart on purpose.

// TranscriptCache memoizes successfully fetched transcripts by video id.
// Entries are immutable for the process lifetime; there is no
// invalidation path. Failed fetches are never stored, so transient
// blocking is retried on the next request.
type TranscriptCache struct {
	m sync.Map // videoID → string
}

func NewTranscriptCache() *TranscriptCache {
	return &TranscriptCache{}
}

func (c *TranscriptCache) Get(videoID string) (string, bool) {
	v, ok := c.m.Load(videoID)
	if !ok {
		IncrCacheMisses()
		return "", false
	}
	IncrTranscriptCacheHit()
	return v.(string), true
}

func (c *TranscriptCache) Set(videoID, transcript string) {
	c.m.Store(videoID, transcript)
}

// CachedResult is a generated answer with its creation time.
type CachedResult struct {
	Answer    string
	CreatedAt time.Time
}

// ResultCache holds background-generated answers keyed by "videoId:query".
// Entries past TTL are treated as absent on read; they are only physically
// removed by the optional cleanup sweep.
type ResultCache struct {
	m   sync.Map // key → CachedResult
	ttl time.Duration
	now func() time.Time // injectable for tests
}

func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{ttl: ttl, now: time.Now}
}

// ResultKey builds the composite cache key for one unit of work.
func ResultKey(videoID, query string) string {
	return videoID + ":" + query
}

func (c *ResultCache) Set(key, answer string) {
	c.m.Store(key, CachedResult{Answer: answer, CreatedAt: c.now()})
}

// Get returns the cached answer if present and within TTL.
// An expired entry is a miss, not an error, and is left in place.
func (c *ResultCache) Get(key string) (string, bool) {
	v, ok := c.m.Load(key)
	if !ok {
		IncrCacheMisses()
		return "", false
	}
	res := v.(CachedResult)
	if c.now().Sub(res.CreatedAt) >= c.ttl {
		IncrCacheMisses()
		return "", false
	}
	IncrResultCacheHit()
	return res.Answer, true
}

// Len counts stored entries, expired ones included.
func (c *ResultCache) Len() int {
	n := 0
	c.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// StartCleanup launches a sweep that removes expired entries every
// interval, bounding memory in long-running processes. Read-side TTL
// behavior is identical with or without the sweep.
func (c *ResultCache) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			removed := 0
			now := c.now()
			c.m.Range(func(key, val any) bool {
				if res, ok := val.(CachedResult); ok && now.Sub(res.CreatedAt) >= c.ttl {
					c.m.Delete(key)
					removed++
				}
				return true
			})
			if removed > 0 {
				slog.Debug("result cache sweep", slog.Int("removed", removed))
			}
		}
	}()
}
