// Package companion wires the companion client together: session,
// transcript, devices, vision, Q&A, dashboard and the terminal UI.
package companion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teslashibe/go-companion/internal/config"
	"github.com/teslashibe/go-companion/pkg/agents"
	"github.com/teslashibe/go-companion/pkg/audioio"
	"github.com/teslashibe/go-companion/pkg/backend"
	"github.com/teslashibe/go-companion/pkg/devices"
	"github.com/teslashibe/go-companion/pkg/host"
	"github.com/teslashibe/go-companion/pkg/prefs"
	"github.com/teslashibe/go-companion/pkg/qa"
	"github.com/teslashibe/go-companion/pkg/realtime"
	"github.com/teslashibe/go-companion/pkg/session"
	"github.com/teslashibe/go-companion/pkg/transcript"
	"github.com/teslashibe/go-companion/pkg/ui"
	"github.com/teslashibe/go-companion/pkg/vision"
	"github.com/teslashibe/go-companion/pkg/web"
)

// Option configures an App. Options replace the components Init would
// otherwise build from config.
type Option func(*App)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTransport uses t instead of the configured transport.
func WithTransport(t realtime.Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithPrefs uses s instead of opening the configured store.
func WithPrefs(s prefs.Store) Option {
	return func(a *App) { a.prefs = s }
}

// WithLister uses l to enumerate microphones.
func WithLister(l devices.Lister) Option {
	return func(a *App) { a.lister = l }
}

// WithCapturer uses c for screen capture.
func WithCapturer(c vision.Capturer) Option {
	return func(a *App) { a.capturer = c }
}

// WithSourceFactory uses f to open microphones.
func WithSourceFactory(f audioio.SourceFactory) Option {
	return func(a *App) { a.sources = f }
}

// WithHeadless runs without the terminal UI and starts listening as soon
// as Run is called.
func WithHeadless(headless bool) Option {
	return func(a *App) { a.headless = headless }
}

// App is the companion client.
type App struct {
	config   *config.Config
	logger   *slog.Logger
	headless bool

	prefs      prefs.Store
	agents     *agents.Registry
	backend    *backend.Client
	transport  realtime.Transport
	transcript *transcript.Log
	session    *session.Orchestrator
	lister     devices.Lister
	devices    *devices.Registry
	sources    audioio.SourceFactory
	meter      *audioio.Meter
	capturer   vision.Capturer
	vision     *vision.Flow
	qa         *qa.Panel
	host       *host.TerminalHost
	dashboard  *web.Server

	refresh chan struct{}
	msgs    chan tea.Msg

	mu      sync.Mutex
	program *tea.Program
}

// New creates an App from cfg. Components are built by Init.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("companion: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		config:  cfg,
		logger:  slog.Default(),
		refresh: make(chan struct{}, 1),
		msgs:    make(chan tea.Msg, 16),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "companion.app")
	return a, nil
}

// Init builds and connects every component. Call it once before Run.
func (a *App) Init(ctx context.Context) error {
	cfg := a.config
	base := a.logger

	if a.prefs == nil {
		store, err := prefs.Open(cfg.PrefsBackend, cfg.PrefsPath)
		if err != nil {
			return fmt.Errorf("prefs: %w", err)
		}
		a.prefs = store
	}

	a.agents = agents.NewRegistry()
	if cfg.AgentsFile != "" {
		if err := a.agents.LoadFile(cfg.AgentsFile); err != nil {
			return fmt.Errorf("agents: %w", err)
		}
	}

	a.backend = backend.NewClient(cfg.BackendURL, backend.WithLogger(base))
	a.transcript = transcript.New(transcript.WithLogger(base))

	if a.sources == nil {
		audio := audioio.DefaultConfig()
		audio.Backend = audioio.Backend(cfg.AudioBackend)
		a.sources = audioio.Factory(audio, base)
	}
	a.meter = audioio.NewMeter(a.sources, audioio.WithMeterLogger(base))

	if a.transport == nil {
		t, err := a.newTransport()
		if err != nil {
			return err
		}
		a.transport = t
	}

	a.session = session.New(a.transport, a.backend,
		session.WithLogger(base),
		session.WithTranscript(a.transcript),
		session.WithPrefs(a.prefs),
		session.WithMeter(a.meter),
		session.WithRegistry(a.agents),
		session.WithAgentKey(cfg.AgentConfig),
		session.WithReconnectDelay(cfg.ReconnectDelay),
		session.WithGuardrails(realtime.ModerationGuardrail(agents.GeneralAICompanyName, a.backend, cfg.QAModel)),
	)
	if _, err := a.session.LoadCustomPrompt(ctx); err != nil {
		a.logger.Warn("custom prompt not loaded", "error", err)
	}

	if a.lister == nil {
		if cfg.AudioBackend == string(audioio.BackendMock) {
			a.lister = devices.NewMockLister(devices.Device{ID: "default", Label: "Mock Microphone"})
		} else {
			a.lister = &devices.ALSALister{}
		}
	}
	a.devices = devices.NewRegistry(a.lister, devices.WithLogger(base))
	if _, err := a.devices.Enumerate(ctx); err != nil {
		a.logger.Warn("microphone enumeration failed", "error", err)
	}
	a.syncDevice()

	if a.capturer == nil {
		a.capturer = vision.NewCommandCapturer(cfg.CaptureCommand, base)
	}
	a.host = host.NewTerminal(host.WithLogger(base), host.WithCapturer(a.capturer))
	a.vision = vision.NewFlow(a.capturer, a.backend, a.transcript,
		vision.WithLogger(base),
		vision.WithNotifier(vision.NotifierFunc(a.alert)),
	)
	a.qa = qa.NewPanel(a.backend, qa.WithModel(cfg.QAModel), qa.WithLogger(base))

	if cfg.DashboardAddr != "" {
		a.dashboard = web.NewServer(cfg.DashboardAddr, a, web.WithLogger(base))
	}

	a.wire()
	a.logger.Info("companion initialized",
		"transport", cfg.Transport,
		"backend", cfg.BackendURL,
		"scenario", a.session.AgentKey(),
		"device", a.devices.Selected(),
	)
	return nil
}

func (a *App) newTransport() (realtime.Transport, error) {
	opts := []realtime.Option{
		realtime.WithBaseURL(a.config.OpenAIBaseURL),
		realtime.WithModel(a.config.RealtimeModel),
		realtime.WithSourceFactory(a.sources),
		realtime.WithLogger(a.logger),
	}
	switch a.config.Transport {
	case config.TransportWebSocket:
		return realtime.NewWebSocketTransport(opts...), nil
	case config.TransportWebRTC:
		return realtime.NewWebRTCTransport(opts...), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", a.config.Transport)
	}
}

// wire connects component callbacks to the UI and the dashboard.
func (a *App) wire() {
	a.session.OnChange(a.changed)
	a.session.OnError(func(err error) { a.post(ui.ErrorMsg{Err: err}) })
	a.transcript.Subscribe(func(c transcript.Change) {
		if a.dashboard != nil {
			a.dashboard.PublishChange(c)
		}
		a.notify()
	})
	a.devices.OnChange(func() {
		a.syncDevice()
		a.changed()
	})
	a.meter.OnLevel(func(audioio.Reading) { a.notify() })
	a.vision.OnStateChange(func(vision.State) { a.changed() })
	a.qa.OnChange(a.changed)
	a.host.OnProtectionChange(func(bool) { a.changed() })
}

// syncDevice hands the registry's selection to the session. The registry
// may auto-select after a late successful enumeration.
func (a *App) syncDevice() {
	if id := a.devices.Selected(); id != "" && id != a.session.Device() {
		a.session.SelectDevice(id)
	}
}

// changed refreshes the UI and pushes status to the dashboard.
func (a *App) changed() {
	if a.dashboard != nil {
		a.dashboard.PublishStatus(a.Status())
	}
	a.notify()
}

// notify asks the UI for a redraw. Bursts collapse into one refresh.
func (a *App) notify() {
	select {
	case a.refresh <- struct{}{}:
	default:
	}
}

func (a *App) post(msg tea.Msg) {
	select {
	case a.msgs <- msg:
	default:
		a.logger.Warn("ui message dropped", "type", fmt.Sprintf("%T", msg))
	}
}

func (a *App) alert(message string) {
	a.post(ui.AlertMsg{Message: message})
}

// forward delivers refreshes and messages to the program until ctx ends.
func (a *App) forward(ctx context.Context, p *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.refresh:
			p.Send(ui.RefreshMsg{})
		case msg := <-a.msgs:
			p.Send(msg)
		}
	}
}

// Run starts background work and the UI. It blocks until ctx is done or
// the user quits.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.devices.Watch(ctx, a.config.DevicePoll)

	errCh := make(chan error, 1)
	if a.dashboard != nil {
		go func() {
			if err := a.dashboard.Run(ctx); err != nil {
				a.logger.Error("dashboard stopped", "error", err)
				errCh <- err
			}
		}()
	}

	if a.headless {
		if err := a.session.StartListening(ctx); err != nil {
			a.logger.Error("start listening failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		}
	}

	model := ui.New(ctx, a)
	p := ui.NewProgram(ctx, model)
	a.mu.Lock()
	a.program = p
	a.mu.Unlock()
	go a.forward(ctx, p)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Shutdown stops every component. Safe to call after a failed Init.
func (a *App) Shutdown() {
	if a.session != nil {
		a.session.Disconnect()
	}
	if a.qa != nil {
		a.qa.Close()
	}
	if a.meter != nil {
		a.meter.Stop()
	}
	if a.prefs != nil {
		if err := a.prefs.Close(); err != nil {
			a.logger.Warn("close prefs", "error", err)
		}
	}
	a.logger.Info("companion stopped")
}

// Session returns the orchestrator.
func (a *App) Session() *session.Orchestrator { return a.session }

// Devices returns the device registry.
func (a *App) Devices() *devices.Registry { return a.devices }

// Log returns the transcript log.
func (a *App) Log() *transcript.Log { return a.transcript }
