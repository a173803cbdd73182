// go_ytchat — YouTube video question-answering service.
//
// POST /query answers a question about a video from its transcript.
// Long videos are processed in the background; GET /check_result polls
// for the finished answer. See internal/engine/ for the pipeline.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"

	"github.com/anatolykoptev/go_ytchat/internal/engine"
	"github.com/anatolykoptev/go_ytchat/internal/webserver"
)

func main() {
	port := env.Str("PORT", "8000")

	cfg := engine.Config{
		LLMAPIKey:      env.Str("LLM_API_KEY", ""),
		LLMAPIBase:     env.Str("LLM_API_BASE", "https://api.groq.com/openai/v1"),
		LLMModel:       env.Str("LLM_MODEL", "llama3-70b-8192"),
		LLMTemperature: env.Float("LLM_TEMPERATURE", 0.1),
		LLMMaxTokens:   env.Int("LLM_MAX_TOKENS", 4096),

		EmbedAPIKey:  env.Str("EMBED_API_KEY", env.Str("OPENAI_API_KEY", "")),
		EmbedAPIBase: env.Str("EMBED_API_BASE", ""),
		EmbedModel:   env.Str("EMBED_MODEL", "text-embedding-3-small"),

		ProxyUsername: env.Str("PROXY_USERNAME", ""),
		ProxyPassword: env.Str("PROXY_PASSWORD", ""),

		LongTranscriptChars:  env.Int("LONG_TRANSCRIPT_CHARS", engine.DefaultLongTranscriptChars),
		ResultTTL:            env.Duration("RESULT_TTL", engine.DefaultResultTTL),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 0),
	}
	cfg.Normalize()

	if cfg.LLMAPIKey == "" {
		slog.Error("LLM_API_KEY is required")
		os.Exit(1)
	}

	client := llm.NewClient(cfg.LLMAPIBase, cfg.LLMAPIKey, cfg.LLMModel,
		llm.WithMaxTokens(cfg.LLMMaxTokens),
		llm.WithTemperature(cfg.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	)
	complete := func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		if maxTokens > 0 {
			return client.Complete(ctx, "", prompt, llm.WithChatMaxTokens(maxTokens))
		}
		return client.Complete(ctx, "", prompt)
	}

	rateLLM := engine.NewRateLimitedLLM(complete, env.Duration("LLM_MIN_INTERVAL", time.Second))
	fetcher := engine.NewFetcher(cfg)
	translate := engine.NewGoogleTranslator(cfg.HTTPClient)
	processor := engine.NewProcessor(cfg, rateLLM, translate)
	embedder := engine.NewOpenAIEmbedder(cfg.EmbedAPIBase, cfg.EmbedAPIKey, cfg.EmbedModel)
	answerer := &engine.AnswerGenerator{LLM: rateLLM}

	orch := engine.NewOrchestrator(cfg, fetcher, processor, answerer, embedder)
	if cfg.CacheCleanupInterval > 0 {
		orch.Results.StartCleanup(cfg.CacheCleanupInterval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting go_ytchat",
		slog.String("port", port),
		slog.String("model", cfg.LLMModel),
		slog.Bool("proxy", cfg.ProxyUsername != ""),
	)

	srv := webserver.New(orch)
	if err := srv.Listen(ctx, ":"+port); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
