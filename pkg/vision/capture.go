package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // some capture tools emit JPEG
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Capturer acquires a screen capture stream.
type Capturer interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields frames of the whole desktop until stopped.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Stop()
}

// FilePlaceholder is replaced with the output path in capture commands.
const FilePlaceholder = "{file}"

// CommandCapturer captures the screen by running a screenshot tool.
type CommandCapturer struct {
	// Command overrides tool detection. It is split on spaces and
	// FilePlaceholder is replaced with the output file. Without a
	// placeholder the tool must write the image to stdout.
	Command string

	Logger *slog.Logger

	lookPath func(string) (string, error)
}

// NewCommandCapturer creates a capturer using command, or the first
// screenshot tool found on PATH when command is empty.
func NewCommandCapturer(command string, logger *slog.Logger) *CommandCapturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandCapturer{
		Command:  command,
		Logger:   logger.With("component", "vision.capture"),
		lookPath: exec.LookPath,
	}
}

// candidates lists screenshot commands for the current platform in order
// of preference.
func candidates() [][]string {
	switch runtime.GOOS {
	case "darwin":
		return [][]string{{"screencapture", "-x", "-t", "png", FilePlaceholder}}
	case "windows":
		return nil
	}
	var out [][]string
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		out = append(out, []string{"grim", FilePlaceholder})
	}
	return append(out,
		[]string{"import", "-window", "root", FilePlaceholder},
		[]string{"gnome-screenshot", "-f", FilePlaceholder},
		[]string{"scrot", "-o", FilePlaceholder},
	)
}

// Resolve returns the argv that Open will run.
func (c *CommandCapturer) Resolve() ([]string, error) {
	if strings.TrimSpace(c.Command) != "" {
		return strings.Fields(c.Command), nil
	}
	look := c.lookPath
	if look == nil {
		look = exec.LookPath
	}
	for _, argv := range candidates() {
		if _, err := look(argv[0]); err == nil {
			return argv, nil
		}
	}
	return nil, ErrNoSource
}

// Open checks a capture tool is available. The screenshot itself is taken
// by the first Frame call.
func (c *CommandCapturer) Open(ctx context.Context) (Stream, error) {
	argv, err := c.Resolve()
	if err != nil {
		return nil, &CaptureError{Op: "open", Err: err}
	}
	c.Logger.Debug("capture stream opened", "tool", argv[0])
	return &commandStream{argv: argv, logger: c.Logger}, nil
}

type commandStream struct {
	argv   []string
	logger *slog.Logger

	mu      sync.Mutex
	stopped bool
	dir     string
}

func (s *commandStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, &CaptureError{Op: "frame", Err: errors.New("stream stopped")}
	}
	if s.dir == "" {
		dir, err := os.MkdirTemp("", "companion-capture-")
		if err != nil {
			s.mu.Unlock()
			return nil, &CaptureError{Op: "frame", Err: err}
		}
		s.dir = dir
	}
	out := filepath.Join(s.dir, "screen.png")
	s.mu.Unlock()

	toFile := false
	args := make([]string, len(s.argv))
	for i, a := range s.argv {
		if strings.Contains(a, FilePlaceholder) {
			toFile = true
			a = strings.ReplaceAll(a, FilePlaceholder, out)
		}
		args[i] = a
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		lower := strings.ToLower(msg)
		denied := strings.Contains(lower, "permission") || strings.Contains(lower, "not authorized")
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &CaptureError{Op: "frame", Denied: denied, Err: err}
	}

	data := stdout.Bytes()
	if toFile {
		var err error
		data, err = os.ReadFile(out)
		if err != nil {
			return nil, &CaptureError{Op: "frame", Err: err}
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &CaptureError{Op: "frame", Err: fmt.Errorf("decode screenshot: %w", err)}
	}
	return img, nil
}

func (s *commandStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.dir != "" {
		os.RemoveAll(s.dir)
	}
	s.logger.Debug("capture stream stopped")
}

var _ Capturer = (*CommandCapturer)(nil)
