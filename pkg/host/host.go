// Package host models the window-shell capabilities of the companion:
// window height, screen-capture exclusion and screenshots.
package host

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/teslashibe/go-companion/pkg/vision"
)

// ErrNotTerminal is returned by WindowHeight when the output is not a TTY.
var ErrNotTerminal = errors.New("host: output is not a terminal")

// Host is what the companion needs from the window around it.
type Host interface {
	WindowHeight(ctx context.Context) (int, error)
	SetContentProtection(enabled bool) error
	ContentProtected() bool
	CaptureScreenshot(ctx context.Context) ([]byte, error)
}

// Option configures a TerminalHost.
type Option func(*TerminalHost)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *TerminalHost) {
		if l != nil {
			h.logger = l.With("component", "host.terminal")
		}
	}
}

// WithFile sets the terminal whose size is reported. Defaults to stdout.
func WithFile(f *os.File) Option {
	return func(h *TerminalHost) { h.fd = int(f.Fd()) }
}

// WithCapturer sets the screenshot source.
func WithCapturer(c vision.Capturer) Option {
	return func(h *TerminalHost) { h.capturer = c }
}

// TerminalHost implements Host for a terminal session. Terminals cannot
// exclude themselves from screen capture, so the protection flag is only
// tracked and reported.
type TerminalHost struct {
	fd       int
	capturer vision.Capturer
	logger   *slog.Logger

	mu        sync.Mutex
	protected bool
	onChange  func(bool)
}

// NewTerminal creates a host with content protection on.
func NewTerminal(opts ...Option) *TerminalHost {
	h := &TerminalHost{
		fd:        int(os.Stdout.Fd()),
		logger:    slog.Default().With("component", "host.terminal"),
		protected: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.capturer == nil {
		h.capturer = vision.NewCommandCapturer(os.Getenv("CAPTURE_COMMAND"), h.logger)
	}
	return h
}

// WindowHeight returns the terminal height in rows.
func (h *TerminalHost) WindowHeight(ctx context.Context) (int, error) {
	if !term.IsTerminal(h.fd) {
		return 0, ErrNotTerminal
	}
	_, rows, err := term.GetSize(h.fd)
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// OnProtectionChange registers a callback for protection toggles.
func (h *TerminalHost) OnProtectionChange(fn func(bool)) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// SetContentProtection records whether the window should be hidden from
// screen capture.
func (h *TerminalHost) SetContentProtection(enabled bool) error {
	h.mu.Lock()
	if h.protected == enabled {
		h.mu.Unlock()
		return nil
	}
	h.protected = enabled
	cb := h.onChange
	h.mu.Unlock()

	h.logger.Info("content protection changed", "enabled", enabled)
	if cb != nil {
		cb(enabled)
	}
	return nil
}

// ContentProtected reports the current protection state.
func (h *TerminalHost) ContentProtected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.protected
}

// CaptureScreenshot returns one PNG frame of the desktop.
func (h *TerminalHost) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	stream, err := h.capturer.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.Stop()

	img, err := stream.Frame(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &vision.CaptureError{Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

var _ Host = (*TerminalHost)(nil)
