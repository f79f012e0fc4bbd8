package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-companion/internal/httpc"
	"github.com/teslashibe/go-companion/pkg/audioio"
)

// DefaultBaseURL is the OpenAI API base.
const DefaultBaseURL = "https://api.openai.com/v1"

// DefaultModel is the realtime model used when none is configured.
const DefaultModel = "gpt-realtime-mini"

// ErrConnectAborted is returned by Connect when Disconnect ran while the
// connection was being established.
var ErrConnectAborted = errors.New("realtime: connect aborted by disconnect")

// Option configures a transport.
type Option func(*options)

type options struct {
	baseURL    string
	model      string
	sources    audioio.SourceFactory
	httpClient *http.Client
	logger     *slog.Logger
}

func defaultOptions() options {
	return options{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: httpc.Client,
		logger:     slog.Default(),
	}
}

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) {
		if url != "" {
			o.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithModel sets the default realtime model.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithSourceFactory sets how microphone sources are opened. Without one the
// session runs without microphone audio.
func WithSourceFactory(f audioio.SourceFactory) Option {
	return func(o *options) { o.sources = f }
}

// WithHTTPClient sets the client used for the SDP exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// base holds the status and callback plumbing shared by both transports.
type base struct {
	logger *slog.Logger

	mu       sync.RWMutex
	status   Status
	attempt  uint64
	onStatus func(Status)
	onEvent  func(Event)

	muted atomic.Bool
}

// Status returns the connection status.
func (b *base) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// OnStatusChange sets the status callback.
func (b *base) OnStatusChange(fn func(Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStatus = fn
}

// OnEvent sets the event callback.
func (b *base) OnEvent(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onEvent = fn
}

// Mute stops or resumes microphone audio.
func (b *base) Mute(muted bool) error {
	b.muted.Store(muted)
	b.logger.Debug("microphone mute", "muted", muted)
	return nil
}

// beginConnect moves DISCONNECTED to CONNECTING and returns the attempt id.
func (b *base) beginConnect() (uint64, error) {
	b.mu.Lock()
	if b.status != StatusDisconnected {
		b.mu.Unlock()
		return 0, ErrAlreadyConnected
	}
	b.status = StatusConnecting
	b.attempt++
	id := b.attempt
	fn := b.onStatus
	b.mu.Unlock()

	if fn != nil {
		fn(StatusConnecting)
	}
	return id, nil
}

// finishConnect marks attempt connected unless it was superseded.
func (b *base) finishConnect(id uint64) bool {
	b.mu.Lock()
	if b.attempt != id || b.status != StatusConnecting {
		b.mu.Unlock()
		return false
	}
	b.status = StatusConnected
	fn := b.onStatus
	b.mu.Unlock()

	if fn != nil {
		fn(StatusConnected)
	}
	return true
}

// reset moves to DISCONNECTED and invalidates any attempt in flight.
func (b *base) reset() {
	b.mu.Lock()
	b.attempt++
	changed := b.status != StatusDisconnected
	b.status = StatusDisconnected
	fn := b.onStatus
	b.mu.Unlock()

	b.muted.Store(false)
	if changed && fn != nil {
		fn(StatusDisconnected)
	}
}

// failConnect returns attempt id to DISCONNECTED if it is still current.
func (b *base) failConnect(id uint64) {
	b.mu.Lock()
	if b.attempt != id {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.reset()
}

func (b *base) emit(e Event) {
	b.mu.RLock()
	fn := b.onEvent
	b.mu.RUnlock()
	if fn != nil {
		fn(e)
	}
}

func validateConnect(opts ConnectOptions) error {
	if opts.Credential == nil || opts.Credential.AccessToken == "" {
		return ErrNoCredential
	}
	if len(opts.Agents) == 0 {
		return ErrNoAgents
	}
	return nil
}

// openMic opens and starts the capture device when a factory is set.
func openMic(ctx context.Context, f audioio.SourceFactory, deviceID string) (audioio.Source, error) {
	if f == nil {
		return nil, nil
	}
	src, err := f(deviceID)
	if err != nil {
		return nil, &TransportError{Op: "microphone", Err: err}
	}
	if err := src.Start(ctx); err != nil {
		src.Close()
		return nil, &TransportError{Op: "microphone", Err: err}
	}
	return src, nil
}

// pumpMic forwards unmuted chunks to send until the source ends or send fails.
func pumpMic(ctx context.Context, src audioio.Source, muted *atomic.Bool, send func([]int16, int) error, logger *slog.Logger) {
	for {
		chunk, err := src.Read(ctx)
		if err != nil {
			return
		}
		if muted.Load() {
			continue
		}
		samples := chunk.Samples
		if chunk.Channels == 2 {
			samples = audioio.StereoToMono(samples)
		}
		if err := send(samples, chunk.SampleRate); err != nil {
			if !errors.Is(err, ErrNotConnected) {
				logger.Debug("microphone send stopped", "error", err)
			}
			return
		}
	}
}
