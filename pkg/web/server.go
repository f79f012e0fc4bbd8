// Package web serves a local dashboard for an external overlay: the
// companion's status, its transcript and the derived Q&A pairs, over REST
// and live websockets.
package web

import (
	"context"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-companion/pkg/hub"
	"github.com/teslashibe/go-companion/pkg/transcript"
)

// Status is the companion state shown on the dashboard.
type Status struct {
	Connection       string `json:"connection"`
	Listening        bool   `json:"listening"`
	Device           string `json:"device"`
	DeviceLabel      string `json:"device_label,omitempty"`
	ContentProtected bool   `json:"content_protected"`
	Scenario         string `json:"scenario"`
	Agent            string `json:"agent"`
	Vision           string `json:"vision"`
	QALoading        bool   `json:"qa_loading"`
}

// Source provides snapshots for new clients and REST reads.
type Source interface {
	Status() Status
	Transcript() []transcript.Item
}

// TranscriptEvent is one frame on /ws/transcript. The first frame is a
// snapshot carrying Items; later frames carry a single Change.
type TranscriptEvent struct {
	Kind  string            `json:"kind"`
	Items []transcript.Item `json:"items,omitempty"`
	Item  *transcript.Item  `json:"item,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.With("component", "web.server")
			s.hubLogger = l
		}
	}
}

// Server is the dashboard server.
type Server struct {
	app       *fiber.App
	addr      string
	source    Source
	logger    *slog.Logger
	hubLogger *slog.Logger

	statusHub     *hub.Hub
	transcriptHub *hub.Hub
}

// NewServer creates a dashboard for src listening on addr.
func NewServer(addr string, src Source, opts ...Option) *Server {
	s := &Server{
		addr:      addr,
		source:    src,
		logger:    slog.Default().With("component", "web.server"),
		hubLogger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.statusHub = hub.New("status", hub.WithLogger(s.hubLogger))
	s.transcriptHub = hub.New("transcript", hub.WithLogger(s.hubLogger))

	app := fiber.New(fiber.Config{
		AppName:               "Companion Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/transcript", s.handleTranscript)
	api.Get("/qa", s.handleQA)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/transcript", websocket.New(s.handleTranscriptWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hubs and serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.statusHub.Run(hubCtx)
	go s.transcriptHub.Run(hubCtx)

	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	select {
	case <-ctx.Done():
		return s.app.Shutdown()
	case err := <-errCh:
		return err
	}
}

// PublishStatus pushes st to every status client.
func (s *Server) PublishStatus(st Status) {
	if err := s.statusHub.BroadcastJSON(st); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}

// PublishChange pushes one transcript mutation to every transcript client.
func (s *Server) PublishChange(c transcript.Change) {
	ev := TranscriptEvent{Kind: string(c.Kind)}
	if c.Kind != transcript.ChangeReset {
		item := c.Item
		ev.Item = &item
	}
	if err := s.transcriptHub.BroadcastJSON(ev); err != nil {
		s.logger.Warn("encode transcript change", "error", err)
	}
}

// StatusClients returns the number of live status websockets.
func (s *Server) StatusClients() int {
	return s.statusHub.ClientCount()
}

// TranscriptClients returns the number of live transcript websockets.
func (s *Server) TranscriptClients() int {
	return s.transcriptHub.ClientCount()
}
