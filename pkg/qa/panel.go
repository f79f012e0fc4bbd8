package qa

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-companion/pkg/backend"
)

// ErrorAnswer replaces the answer when the request fails.
const ErrorAnswer = "Error getting answer."

// Defaults for the panel.
const (
	DefaultModel          = "gpt-4o-mini"
	DefaultRevealInterval = 60 * time.Millisecond
)

// Responder sends a Responses API request. *backend.Client implements it.
type Responder interface {
	Respond(ctx context.Context, req backend.ResponsesRequest) (json.RawMessage, error)
}

// Pair is one question with its (possibly partial) answer.
type Pair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Option configures a Panel.
type Option func(*Panel)

// WithModel sets the Responses model.
func WithModel(model string) Option {
	return func(p *Panel) {
		if model != "" {
			p.model = model
		}
	}
}

// WithRevealInterval sets the delay between revealed words.
func WithRevealInterval(d time.Duration) Option {
	return func(p *Panel) { p.interval = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Panel) {
		if l != nil {
			p.logger = l.With("component", "qa.panel")
		}
	}
}

// Panel holds the Q&A conversation.
type Panel struct {
	responder Responder
	model     string
	interval  time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	pairs    []Pair
	loading  bool
	onChange func()
	active   *reveal
}

type reveal struct {
	index  int
	answer string
	cancel context.CancelFunc
}

// NewPanel creates a panel that asks r.
func NewPanel(r Responder, opts ...Option) *Panel {
	p := &Panel{
		responder: r,
		model:     DefaultModel,
		interval:  DefaultRevealInterval,
		logger:    slog.Default().With("component", "qa.panel"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnChange sets a callback run after every change to pairs or loading.
func (p *Panel) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Ask submits a question and blocks until its answer is fully revealed or
// the reveal is cancelled. Blank questions are ignored.
func (p *Panel) Ask(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil
	}

	p.mu.Lock()
	p.finishLocked()
	p.pairs = append(p.pairs, Pair{Question: question})
	index := len(p.pairs) - 1
	p.loading = true
	ctx, cancel := context.WithCancel(ctx)
	r := &reveal{index: index, cancel: cancel}
	p.active = r
	p.mu.Unlock()
	p.notify()
	defer cancel()

	answer := NoAnswer
	raw, err := p.responder.Respond(ctx, backend.ResponsesRequest{
		Model: p.model,
		Input: []backend.InputMessage{{Role: "user", Content: question}},
	})
	if err != nil {
		if ctx.Err() != nil && p.superseded(r) {
			return ctx.Err()
		}
		p.logger.Warn("question failed", "error", err)
		answer = ErrorAnswer
	} else {
		answer = Extract(raw)
	}

	p.mu.Lock()
	if p.active != r {
		p.mu.Unlock()
		return context.Canceled
	}
	r.answer = answer
	p.mu.Unlock()

	tokens := Tokenize(answer)
	for i := 0; i <= len(tokens); i++ {
		if !p.setAnswer(r, strings.Join(tokens[:i], "")) {
			return context.Canceled
		}
		if i == len(tokens) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}

	p.mu.Lock()
	if p.active == r {
		p.active = nil
		p.loading = false
	}
	p.mu.Unlock()
	p.notify()
	return nil
}

func (p *Panel) setAnswer(r *reveal, text string) bool {
	p.mu.Lock()
	if p.active != r {
		p.mu.Unlock()
		return false
	}
	p.pairs[r.index].Answer = text
	p.mu.Unlock()
	p.notify()
	return true
}

func (p *Panel) superseded(r *reveal) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != r
}

// finishLocked cancels the running reveal and shows its full answer.
func (p *Panel) finishLocked() {
	if p.active == nil {
		return
	}
	p.active.cancel()
	if p.active.answer != "" {
		p.pairs[p.active.index].Answer = p.active.answer
	}
	p.active = nil
	p.loading = false
}

// Close cancels any running reveal.
func (p *Panel) Close() {
	p.mu.Lock()
	if p.active != nil {
		p.active.cancel()
		p.active = nil
	}
	p.loading = false
	p.mu.Unlock()
}

// Pairs returns a copy of the conversation.
func (p *Panel) Pairs() []Pair {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Pair(nil), p.pairs...)
}

// Loading reports whether an answer is being fetched or revealed.
func (p *Panel) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

func (p *Panel) notify() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}
