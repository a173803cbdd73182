package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	QueryRequests      atomic.Int64
	TranscriptFetches  atomic.Int64
	TranscriptErrors   atomic.Int64
	ProxyFetches       atomic.Int64
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	Translations       atomic.Int64
	EmbeddingRequests  atomic.Int64
	BackgroundJobs     atomic.Int64
	TranscriptCacheHit atomic.Int64
	ResultCacheHit     atomic.Int64
	CacheMisses        atomic.Int64
}

func IncrQueryRequests()      { metrics.QueryRequests.Add(1) }
func IncrTranscriptFetches()  { metrics.TranscriptFetches.Add(1) }
func IncrTranscriptErrors()   { metrics.TranscriptErrors.Add(1) }
func IncrProxyFetches()       { metrics.ProxyFetches.Add(1) }
func IncrLLMCalls()           { metrics.LLMCalls.Add(1) }
func IncrLLMErrors()          { metrics.LLMErrors.Add(1) }
func IncrTranslations()       { metrics.Translations.Add(1) }
func IncrEmbeddingRequests()  { metrics.EmbeddingRequests.Add(1) }
func IncrBackgroundJobs()     { metrics.BackgroundJobs.Add(1) }
func IncrTranscriptCacheHit() { metrics.TranscriptCacheHit.Add(1) }
func IncrResultCacheHit()     { metrics.ResultCacheHit.Add(1) }
func IncrCacheMisses()        { metrics.CacheMisses.Add(1) }

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"query_requests":        metrics.QueryRequests.Load(),
		"transcript_fetches":    metrics.TranscriptFetches.Load(),
		"transcript_errors":     metrics.TranscriptErrors.Load(),
		"proxy_fetches":         metrics.ProxyFetches.Load(),
		"llm_calls":             metrics.LLMCalls.Load(),
		"llm_errors":            metrics.LLMErrors.Load(),
		"translations":          metrics.Translations.Load(),
		"embedding_requests":    metrics.EmbeddingRequests.Load(),
		"background_jobs":       metrics.BackgroundJobs.Load(),
		"transcript_cache_hits": metrics.TranscriptCacheHit.Load(),
		"result_cache_hits":     metrics.ResultCacheHit.Load(),
		"cache_misses":          metrics.CacheMisses.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for the HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"query_requests",
		"transcript_fetches", "transcript_errors", "proxy_fetches",
		"llm_calls", "llm_errors",
		"translations", "embedding_requests",
		"background_jobs",
		"transcript_cache_hits", "result_cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// TrackOperation returns a done func that warns when the operation ran
// longer than 5s. Defer it at the start of the operation.
func TrackOperation(name string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		if elapsed > 5*time.Second {
			slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
		}
	}
}
