package webserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/anatolykoptev/go_ytchat/internal/engine"
)

// HTTP front for the question-answering engine. Thin by design: all
// behavior lives in the orchestrator, handlers only translate JSON.

const version = "1.0.0"

// QueryRequest is the POST /query body.
type QueryRequest struct {
	VideoID string `json:"videoId"`
	Query   string `json:"query"`
}

// QueryResponse is the POST /query reply. Deferrals and failure
// messages travel in the same field as real answers.
type QueryResponse struct {
	Answer string `json:"answer"`
}

// CheckResultResponse is the GET /check_result reply.
type CheckResultResponse struct {
	Found  bool   `json:"found"`
	Answer string `json:"answer,omitempty"`
}

// Server exposes the orchestrator over HTTP.
type Server struct {
	app  *fiber.App
	orch *engine.Orchestrator
}

// New builds a Server around the given orchestrator.
func New(orch *engine.Orchestrator) *Server {
	s := &Server{orch: orch}
	s.app = newApp(s)
	return s
}

// newApp assembles the fiber application. Split out so tests can drive
// handlers through app.Test without binding a port.
func newApp(s *Server) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "go_ytchat",
		// Synchronous answers can spend minutes in LLM retries.
		WriteTimeout: 600 * time.Second,
		ReadTimeout:  30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Post("/query", s.handleQuery)
	app.Get("/check_result", s.handleCheckResult)
	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)
	app.Get("/", s.handleRoot)

	return app
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}
	if req.VideoID == "" || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "videoId and query are required",
		})
	}

	slog.Info("query received", slog.String("videoId", req.VideoID))
	answer := s.orch.Query(c.Context(), req.VideoID, req.Query)
	return c.JSON(QueryResponse{Answer: answer})
}

func (s *Server) handleCheckResult(c *fiber.Ctx) error {
	videoID := c.Query("videoId")
	query := c.Query("query")
	if videoID == "" || query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "videoId and query are required",
		})
	}

	answer, found := s.orch.CheckResult(videoID, query)
	if !found {
		return c.JSON(CheckResultResponse{Found: false})
	}
	return c.JSON(CheckResultResponse{Found: true, Answer: answer})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "go_ytchat",
	})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(engine.FormatMetrics())
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "YouTube video Q&A service",
		"version": version,
	})
}

// Listen serves until the context is canceled, then drains in-flight
// background jobs before returning.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("shutdown failed", slog.Any("error", err))
		}
		s.orch.Wait()
		return nil
	}
}
