package engine

import (
	"context"
	"log/slog"
	"strings"
)

// AnswerGenerator turns retrieved chunks and a query into a final
// answer. It tries a grounded prompt first, retries refusals with a
// looser prompt, and converts failures into an apology so the caller
// always gets renderable text.
type AnswerGenerator struct {
	LLM *RateLimitedLLM
}

// BuildContext joins retrieved chunks into prompt context, preserving
// retrieval order.
func BuildContext(chunks []Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n")
}

// Generate answers the query from the retrieved chunks. Never returns
// an error; failures come back as an apology string.
func (g *AnswerGenerator) Generate(ctx context.Context, chunks []Chunk, query string) string {
	contextText := BuildContext(chunks)

	answer, err := g.LLM.Invoke(ctx, groundedPrompt(contextText, query), 0)
	if err != nil {
		slog.Error("grounded answer failed", slog.Any("error", err))
		return ApologyMessage(err)
	}

	if isRefusal(answer) {
		slog.Info("grounded prompt refused, retrying with fallback prompt")
		fallback, err := g.LLM.Invoke(ctx, fallbackPrompt(contextText, query), 0)
		if err != nil {
			slog.Error("fallback answer failed", slog.Any("error", err))
			return ApologyMessage(err)
		}
		return strings.TrimSpace(fallback)
	}
	return strings.TrimSpace(answer)
}
