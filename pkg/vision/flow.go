// Package vision answers questions about the user's screen.
//
// A Flow captures one frame of the desktop, uploads it to the backend and
// writes the answer into the transcript. Placeholders are written first so
// the user sees the request immediately:
//
//	user:      "Analyzing your screen"
//	assistant: "Analyzing image…"   (replaced by the answer or the error)
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-companion/pkg/backend"
	"github.com/teslashibe/go-companion/pkg/inference"
	"github.com/teslashibe/go-companion/pkg/qa"
	"github.com/teslashibe/go-companion/pkg/transcript"
)

// Placeholder texts.
const (
	QuestionPlaceholder = "Analyzing your screen"
	AnswerPlaceholder   = "Analyzing image…"
)

// DefaultSettleDelay is the pause between opening the stream and reading
// the frame, giving the capture pipeline time to deliver real pixels.
const DefaultSettleDelay = 200 * time.Millisecond

// State is the flow's position in a capture request.
type State string

const (
	StateIdle      State = "IDLE"
	StateCapturing State = "CAPTURING"
	StateUploading State = "UPLOADING"
	StateAnswering State = "ANSWERING"
)

// Uploader sends a base64 PNG to the vision endpoint.
type Uploader interface {
	Vision(ctx context.Context, imageBase64 string) (string, error)
}

// Transcript is the subset of the transcript log the flow writes to.
type Transcript interface {
	AddMessage(id string, role transcript.Role, text string, isUserAction bool)
	UpdateMessage(id, text string, appendText bool)
	MarkDone(id string)
}

// Notifier surfaces a blocking alert to the user.
type Notifier interface {
	Alert(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Alert calls f.
func (f NotifierFunc) Alert(message string) { f(message) }

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l.With("component", "vision.flow")
		}
	}
}

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(f *Flow) { f.settle = d }
}

// WithNotifier sets where failure alerts go.
func WithNotifier(n Notifier) Option {
	return func(f *Flow) { f.notifier = n }
}

// WithRevealInterval reveals the answer word by word at interval. Zero
// writes the whole answer at once.
func WithRevealInterval(d time.Duration) Option {
	return func(f *Flow) { f.reveal = d }
}

// Flow runs screenshot requests one at a time.
type Flow struct {
	capturer Capturer
	uploader Uploader
	log      Transcript
	notifier Notifier
	logger   *slog.Logger
	settle   time.Duration
	reveal   time.Duration

	mu            sync.Mutex
	state         State
	onStateChange func(State)
}

// NewFlow creates a flow writing to log.
func NewFlow(c Capturer, u Uploader, log Transcript, opts ...Option) *Flow {
	f := &Flow{
		capturer: c,
		uploader: u,
		log:      log,
		logger:   slog.Default().With("component", "vision.flow"),
		settle:   DefaultSettleDelay,
		reveal:   qa.DefaultRevealInterval,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OnStateChange registers a callback for state transitions.
func (f *Flow) OnStateChange(fn func(State)) {
	f.mu.Lock()
	f.onStateChange = fn
	f.mu.Unlock()
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Busy reports whether a request is in flight.
func (f *Flow) Busy() bool {
	return f.State() != StateIdle
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	cb := f.onStateChange
	f.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

// Analyze captures the screen and writes the answer to the transcript.
// The flow is back in StateIdle when it returns, whatever the outcome.
func (f *Flow) Analyze(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StateIdle {
		f.mu.Unlock()
		return ErrBusy
	}
	f.state = StateCapturing
	cb := f.onStateChange
	f.mu.Unlock()
	if cb != nil {
		cb(StateCapturing)
	}
	defer f.setState(StateIdle)

	questionID := transcript.NewID()
	answerID := transcript.NewID()
	f.log.AddMessage(questionID, transcript.RoleUser, QuestionPlaceholder, false)
	f.log.MarkDone(questionID)
	f.log.AddMessage(answerID, transcript.RoleAssistant, AnswerPlaceholder, false)

	answer, err := f.run(ctx)
	if err != nil {
		f.logger.Warn("screen analysis failed", "error", err)
		f.log.UpdateMessage(answerID, "Vision API failed: "+reason(err), false)
		f.log.MarkDone(answerID)
		if f.notifier != nil {
			f.notifier.Alert("Screenshot or Vision API failed: " + reason(err))
		}
		return err
	}

	f.setState(StateAnswering)
	if err := f.write(ctx, answerID, answer); err != nil {
		f.log.UpdateMessage(answerID, answer, false)
	}
	f.log.MarkDone(answerID)
	f.logger.Info("screen analyzed", "answer_len", len(answer))
	return nil
}

func (f *Flow) run(ctx context.Context) (string, error) {
	img, err := f.capture(ctx)
	if err != nil {
		return "", err
	}

	b64, err := inference.EncodePNGBase64(img)
	if err != nil {
		return "", &CaptureError{Op: "encode", Err: err}
	}

	f.setState(StateUploading)
	return f.uploader.Vision(ctx, b64)
}

func (f *Flow) capture(ctx context.Context) (image.Image, error) {
	stream, err := f.capturer.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.Stop()

	if f.settle > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.settle):
		}
	}
	return stream.Frame(ctx)
}

// write replaces the placeholder with answer, revealing it word by word.
func (f *Flow) write(ctx context.Context, id, answer string) error {
	if f.reveal <= 0 {
		f.log.UpdateMessage(id, answer, false)
		return nil
	}
	tokens := qa.Tokenize(answer)
	for i := 1; i <= len(tokens); i++ {
		f.log.UpdateMessage(id, strings.Join(tokens[:i], ""), false)
		if i == len(tokens) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.reveal):
		}
	}
	if len(tokens) == 0 {
		f.log.UpdateMessage(id, answer, false)
	}
	return nil
}

// reason is the short failure text shown to the user.
func reason(err error) string {
	var ue *backend.UploadError
	if errors.As(err, &ue) && ue.StatusCode != 0 {
		return fmt.Sprintf("Vision API error (%d)", ue.StatusCode)
	}
	var ce *CaptureError
	if errors.As(err, &ce) && ce.Denied {
		return "screen capture permission denied"
	}
	return err.Error()
}
