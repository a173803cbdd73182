package webserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_ytchat/internal/engine"
)

type stubFetcher struct {
	text string
}

func (f stubFetcher) Fetch(context.Context, string) engine.Transcript {
	return engine.Transcript{Text: f.text}
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, float64(len(texts[i]))}
	}
	return out, nil
}

func testServer(t *testing.T, answer string) *Server {
	t.Helper()
	cfg := engine.Config{}
	cfg.Normalize()

	llm := engine.NewRateLimitedLLM(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return answer, nil
	}, time.Microsecond)

	orch := engine.NewOrchestrator(cfg,
		stubFetcher{text: "a video about boats and the sea"},
		&engine.Processor{SkipImproveChars: cfg.LongTranscriptChars},
		&engine.AnswerGenerator{LLM: llm},
		stubEmbedder{},
	)
	return New(orch)
}

func TestHandleQuery(t *testing.T) {
	s := testServer(t, "It is about boats.")

	req := httptest.NewRequest("POST", "/query",
		strings.NewReader(`{"videoId":"abc123","query":"what is it about"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.app.Test(req, 10000)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var body QueryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "It is about boats.", body.Answer)
}

func TestHandleQueryValidation(t *testing.T) {
	s := testServer(t, "unused")

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"missing videoId", `{"query":"q"}`},
		{"missing query", `{"videoId":"abc"}`},
		{"empty body", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/query", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := s.app.Test(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, 400, resp.StatusCode)
		})
	}
}

func TestHandleCheckResult(t *testing.T) {
	s := testServer(t, "deferred answer")

	resp, err := s.app.Test(httptest.NewRequest("GET", "/check_result?videoId=abc&query=q", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var body CheckResultResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Found)
	assert.Empty(t, body.Answer)
}

func TestHandleCheckResultValidation(t *testing.T) {
	s := testServer(t, "unused")

	resp, err := s.app.Test(httptest.NewRequest("GET", "/check_result?videoId=abc", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t, "unused")

	resp, err := s.app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "go_ytchat", body["service"])
}

func TestHandleRoot(t *testing.T) {
	s := testServer(t, "unused")

	resp, err := s.app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["message"])
	assert.NotEmpty(t, body["version"])
}

func TestHandleMetrics(t *testing.T) {
	s := testServer(t, "unused")

	resp, err := s.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}
