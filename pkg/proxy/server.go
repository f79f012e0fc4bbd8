// Package proxy is the backend that holds the long-lived API key.
//
// The companion never sees the key. It asks this server for a short-lived
// realtime credential, for a screenshot answer, and for free-form answers:
//
//	GET  /api/session    mint an ephemeral realtime session
//	POST /api/vision     {"image": "<base64 png>"} -> {"answer": "..."}
//	POST /api/responses  Responses API body, relayed as-is
//	GET  /api/health     liveness, optional upstream check
package proxy

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-companion/pkg/inference"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.With("component", "proxy.server")
		}
	}
}

// WithRealtimeModel sets the model requested for realtime sessions.
func WithRealtimeModel(model string) Option {
	return func(s *Server) { s.realtimeModel = model }
}

// WithVisionPrompt overrides the instruction sent with screenshots.
func WithVisionPrompt(prompt string) Option {
	return func(s *Server) { s.visionPrompt = prompt }
}

// Server is the backend proxy HTTP server.
type Server struct {
	app      *fiber.App
	upstream inference.Upstream
	logger   *slog.Logger

	realtimeModel string
	visionPrompt  string
}

// NewServer creates the proxy around an upstream client.
func NewServer(upstream inference.Upstream, opts ...Option) *Server {
	s := &Server{
		upstream:      upstream,
		logger:        slog.Default().With("component", "proxy.server"),
		realtimeModel: "gpt-realtime-mini",
		visionPrompt:  inference.DefaultVisionPrompt,
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "Companion Backend",
		DisableStartupMessage: true,
		BodyLimit:             32 * 1024 * 1024, // full-screen PNGs
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/session", s.handleSession)
	api.Post("/vision", s.handleVision)
	api.Post("/responses", s.handleResponses)
	api.Get("/health", s.handleHealth)

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("backend proxy listening", "addr", addr)
	return s.app.Listen(addr)
}

// Run serves on addr and shuts down when ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Listen(addr) }()

	select {
	case <-ctx.Done():
		s.logger.Info("backend proxy shutting down")
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
