package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/teslashibe/go-companion/pkg/agents"
)

// router decodes server events into Events and runs the client-side
// parts of the agent protocol: handoff tools and output guardrails.
type router struct {
	logger *slog.Logger
	send   func(any) error
	cancel func() error
	emit   func(Event)

	ctx  context.Context
	stop context.CancelFunc

	mu         sync.Mutex
	set        agents.Set
	current    string
	guardrails []OutputGuardrail
}

func newRouter(logger *slog.Logger, opts ConnectOptions, send func(any) error, cancel func() error, emit func(Event)) *router {
	ctx, stop := context.WithCancel(context.Background())
	return &router{
		logger:     logger,
		send:       send,
		cancel:     cancel,
		emit:       emit,
		ctx:        ctx,
		stop:       stop,
		set:        opts.Agents.Clone(),
		guardrails: opts.Guardrails,
	}
}

// start configures the session for the first agent.
func (r *router) start() error {
	r.mu.Lock()
	root := r.set[0]
	r.current = root.Name
	cfg := AgentSession(r.set, root)
	r.mu.Unlock()

	r.logger.Info("starting session", "agent", root.Name, "tools", len(cfg.Tools))
	return r.send(SessionUpdate(cfg))
}

// close cancels pending guardrail checks. It does not wait for them, so
// it is safe to call from an event callback.
func (r *router) close() {
	r.stop()
}

// Agent returns the active agent name.
func (r *router) agent() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *router) handle(data []byte) {
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		r.logger.Warn("failed to parse server event", "error", err)
		return
	}

	switch ev.Type {
	case "session.created":
		r.logger.Debug("session created")

	case "session.updated":
		r.logger.Debug("session updated")

	case "input_audio_buffer.speech_started":
		r.logger.Debug("speech started")

	case "conversation.item.created", "conversation.item.added":
		if ev.Item == nil || ev.Item.Type != "message" {
			return
		}
		r.emit(Event{Kind: EventItemCreated, ItemID: ev.Item.ID, Role: ev.Item.Role, Text: itemText(ev.Item)})

	case "conversation.item.input_audio_transcription.completed":
		r.emit(Event{Kind: EventUserTranscript, ItemID: ev.ItemID, Role: "user", Text: ev.Transcript})

	case "response.audio_transcript.delta", "response.output_audio_transcript.delta",
		"response.text.delta", "response.output_text.delta":
		if ev.Delta == "" {
			return
		}
		r.emit(Event{Kind: EventAssistantDelta, ItemID: ev.ItemID, Role: "assistant", Text: ev.Delta})

	case "response.audio_transcript.done", "response.output_audio_transcript.done":
		r.done(ev.ItemID, ev.Transcript)

	case "response.text.done", "response.output_text.done":
		r.done(ev.ItemID, ev.Text)

	case "response.function_call_arguments.done":
		r.functionCall(ev)

	case "error":
		if ev.Error == nil {
			return
		}
		err := &APIError{Type: ev.Error.Type, Code: ev.Error.Code, Message: ev.Error.Message, EventID: ev.Error.EventID}
		r.logger.Error("server error event", "code", err.Code, "message", err.Message)
		r.emit(Event{Kind: EventError, Err: err})
	}
}

func (r *router) done(itemID, text string) {
	r.emit(Event{Kind: EventAssistantDone, ItemID: itemID, Role: "assistant", Text: text})
	if len(r.guardrails) == 0 || strings.TrimSpace(text) == "" {
		return
	}

	go r.checkGuardrails(itemID, text)
}

func (r *router) checkGuardrails(itemID, text string) {
	for _, g := range r.guardrails {
		res, err := g.Check(r.ctx, text)
		if err != nil {
			if r.ctx.Err() == nil {
				r.logger.Warn("guardrail check failed", "guardrail", g.Name(), "error", err)
			}
			continue
		}
		if !res.Tripped {
			continue
		}
		if r.ctx.Err() != nil {
			return
		}

		r.logger.Warn("guardrail tripped", "guardrail", res.Name, "category", res.Category, "item", itemID)
		if err := r.cancel(); err != nil {
			r.logger.Debug("interrupt after guardrail failed", "error", err)
		}
		r.emit(Event{Kind: EventGuardrailTripped, ItemID: itemID, Role: "assistant", Guardrail: &res})
		return
	}
}

func (r *router) functionCall(ev serverEvent) {
	if target, ok := strings.CutPrefix(ev.Name, "transfer_to_"); ok {
		r.handoff(ev.CallID, target)
		return
	}

	r.logger.Warn("tool call has no handler", "name", ev.Name, "call_id", ev.CallID)
	r.reply(ev.CallID, map[string]string{"error": fmt.Sprintf("tool %q is not available", ev.Name)})
}

func (r *router) handoff(callID, name string) {
	r.mu.Lock()
	agent, ok := r.set.Find(name)
	if ok {
		r.current = agent.Name
	}
	set := r.set
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("handoff to unknown agent", "agent", name)
		r.reply(callID, map[string]string{"error": "unknown agent " + name})
		return
	}

	r.logger.Info("agent handoff", "agent", agent.Name)
	if err := r.send(FunctionCallOutput(callID, mustJSON(map[string]string{"destination_agent": agent.Name}))); err != nil {
		r.logger.Warn("handoff reply failed", "error", err)
		return
	}
	if err := r.send(SessionUpdate(AgentSession(set, agent))); err != nil {
		r.logger.Warn("handoff session update failed", "error", err)
		return
	}
	_ = r.send(ResponseCreate())
	r.emit(Event{Kind: EventHandoff, Agent: agent.Name})
}

func (r *router) reply(callID string, out any) {
	if err := r.send(FunctionCallOutput(callID, mustJSON(out))); err != nil {
		r.logger.Warn("tool reply failed", "error", err)
		return
	}
	_ = r.send(ResponseCreate())
}

func itemText(item *ConversationItem) string {
	var parts []string
	for _, c := range item.Content {
		switch {
		case c.Text != "":
			parts = append(parts, c.Text)
		case c.Transcript != "":
			parts = append(parts, c.Transcript)
		}
	}
	return strings.Join(parts, " ")
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
