package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Orchestrator runs the full question-answering flow for one request:
// result cache → transcript cache → fetch → process → chunk → embed →
// retrieve → answer. Long transcripts are answered in the background
// while the caller gets a deferral message and polls CheckResult.

const (
	topKShort = 5
	topKLong  = 8
)

// TranscriptFetcher is the acquisition seam; production uses *Fetcher.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) Transcript
}

type Orchestrator struct {
	Fetcher   TranscriptFetcher
	Processor *Processor
	Answerer  *AnswerGenerator
	Embedder  Embedder

	Transcripts *TranscriptCache
	Results     *ResultCache

	// LongTranscriptChars routes processed transcripts above this
	// length to the background worker.
	LongTranscriptChars int

	wg sync.WaitGroup
}

// NewOrchestrator wires an Orchestrator from config and components.
func NewOrchestrator(cfg Config, fetcher TranscriptFetcher, proc *Processor, ans *AnswerGenerator, emb Embedder) *Orchestrator {
	return &Orchestrator{
		Fetcher:             fetcher,
		Processor:           proc,
		Answerer:            ans,
		Embedder:            emb,
		Transcripts:         NewTranscriptCache(),
		Results:             NewResultCache(cfg.ResultTTL),
		LongTranscriptChars: cfg.LongTranscriptChars,
	}
}

// Query answers a question about a video. It always returns displayable
// text: an answer, a deferral for long videos, or a failure message.
func (o *Orchestrator) Query(ctx context.Context, videoID, query string) string {
	IncrQueryRequests()
	done := TrackOperation("query")
	defer done()

	key := ResultKey(videoID, query)
	if answer, ok := o.Results.Get(key); ok {
		return answer
	}

	transcript, ok := o.Transcripts.Get(videoID)
	if !ok {
		fetched := o.Fetcher.Fetch(ctx, videoID)
		if !fetched.OK() {
			return UnanalyzableMessage(fetched.FailureMessage())
		}
		var outcome ProcessOutcome
		transcript, outcome = o.Processor.Process(ctx, fetched.Text)
		o.Transcripts.Set(videoID, transcript)
		slog.Info("transcript ready",
			slog.String("id", videoID),
			slog.Int("chars", len(transcript)),
			slog.String("lang", outcome.DetectedLang),
			slog.Bool("translated", outcome.Translated),
			slog.Bool("improved", outcome.Improved))
	}

	if len(transcript) > o.LongTranscriptChars {
		IncrBackgroundJobs()
		o.wg.Add(1)
		// A fresh context, not derived from the request: the handler's
		// ctx is recycled by the HTTP layer once the deferral returns,
		// and outbound calls read values from their context.
		bgCtx := context.Background()
		go func() {
			defer o.wg.Done()
			answer := o.answer(bgCtx, transcript, query, true)
			o.Results.Set(key, answer)
			slog.Info("background answer stored", slog.String("key", key))
		}()
		return DeferredMessage
	}

	answer := o.answer(ctx, transcript, query, false)
	o.Results.Set(key, answer)
	return answer
}

// CheckResult reports whether a deferred answer is ready.
func (o *Orchestrator) CheckResult(videoID, query string) (string, bool) {
	return o.Results.Get(ResultKey(videoID, query))
}

// Wait blocks until all background answer jobs finish. Used on shutdown.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// answer runs the retrieval pipeline over a processed transcript.
// Stage failures come back as user-facing text, never as an error.
func (o *Orchestrator) answer(ctx context.Context, transcript, query string, long bool) string {
	chunks := SplitChunks(transcript)
	if len(chunks) == 0 {
		return UnanalyzableMessage("the transcript is empty")
	}

	index, err := BuildIndex(ctx, o.Embedder, chunks)
	if err != nil {
		slog.Error("index build failed", slog.Any("error", err))
		return ProcessingFailureMessage(err)
	}

	k := topKShort
	if long {
		k = topKLong
	}
	top, err := index.Search(ctx, query, k)
	if err != nil {
		slog.Error("retrieval failed", slog.Any("error", err))
		return ProcessingFailureMessage(err)
	}

	return o.Answerer.Generate(ctx, top, query)
}
