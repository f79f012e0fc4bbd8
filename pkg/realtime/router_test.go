package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-companion/internal/log"
	"github.com/teslashibe/go-companion/pkg/agents"
)

type routerHarness struct {
	mu      sync.Mutex
	sent    []any
	events  []Event
	cancels int
	eventCh chan Event
}

func newHarness(t *testing.T, set agents.Set, guardrails ...OutputGuardrail) (*router, *routerHarness) {
	t.Helper()
	h := &routerHarness{eventCh: make(chan Event, 16)}
	r := newRouter(log.Nop(), ConnectOptions{Agents: set, Guardrails: guardrails},
		func(ev any) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.sent = append(h.sent, ev)
			return nil
		},
		func() error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.cancels++
			return nil
		},
		func(e Event) {
			h.mu.Lock()
			h.events = append(h.events, e)
			h.mu.Unlock()
			h.eventCh <- e
		},
	)
	t.Cleanup(r.close)
	return r, h
}

func (h *routerHarness) sentTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var types []string
	for _, ev := range h.sent {
		data, _ := json.Marshal(ev)
		var head struct {
			Type string `json:"type"`
		}
		json.Unmarshal(data, &head)
		types = append(types, head.Type)
	}
	return types
}

func (h *routerHarness) next(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-h.eventCh:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func twoAgents() agents.Set {
	return agents.Set{
		{Name: "greeter", Instructions: "say hi", Handoffs: []string{"billing"}},
		{Name: "billing", Instructions: "talk money", HandoffDescription: "Billing questions"},
	}
}

func TestRouterStart(t *testing.T) {
	r, h := newHarness(t, twoAgents())
	if err := r.start(); err != nil {
		t.Fatal(err)
	}
	if r.agent() != "greeter" {
		t.Errorf("agent = %q", r.agent())
	}

	update, ok := h.sent[0].(SessionUpdateEvent)
	if !ok {
		t.Fatalf("first event = %T", h.sent[0])
	}
	if update.Session.Instructions != "say hi" {
		t.Errorf("instructions = %q", update.Session.Instructions)
	}
	if len(update.Session.Tools) != 1 || update.Session.Tools[0].Name != "transfer_to_billing" {
		t.Errorf("tools = %+v", update.Session.Tools)
	}
	if update.Session.Tools[0].Description != "Billing questions" {
		t.Errorf("handoff description = %q", update.Session.Tools[0].Description)
	}
}

func TestRouterTranscriptEvents(t *testing.T) {
	r, h := newHarness(t, agents.GeneralAI())

	r.handle([]byte(`{"type":"conversation.item.created","item":{"id":"u1","type":"message","role":"user","content":[{"type":"input_audio","transcript":"hello"}]}}`))
	r.handle([]byte(`{"type":"conversation.item.input_audio_transcription.completed","item_id":"u1","transcript":"hello there"}`))
	r.handle([]byte(`{"type":"response.audio_transcript.delta","item_id":"a1","delta":"Hi"}`))
	r.handle([]byte(`{"type":"response.output_text.delta","item_id":"a1","delta":"!"}`))
	r.handle([]byte(`{"type":"response.audio_transcript.delta","item_id":"a1","delta":""}`))
	r.handle([]byte(`{"type":"response.audio_transcript.done","item_id":"a1","transcript":"Hi!"}`))
	r.handle([]byte(`{"type":"conversation.item.created","item":{"id":"f1","type":"function_call"}}`))
	r.handle([]byte(`not json`))

	want := []Event{
		{Kind: EventItemCreated, ItemID: "u1", Role: "user", Text: "hello"},
		{Kind: EventUserTranscript, ItemID: "u1", Role: "user", Text: "hello there"},
		{Kind: EventAssistantDelta, ItemID: "a1", Role: "assistant", Text: "Hi"},
		{Kind: EventAssistantDelta, ItemID: "a1", Role: "assistant", Text: "!"},
		{Kind: EventAssistantDone, ItemID: "a1", Role: "assistant", Text: "Hi!"},
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) != len(want) {
		t.Fatalf("events = %+v", h.events)
	}
	for i, w := range want {
		got := h.events[i]
		if got.Kind != w.Kind || got.ItemID != w.ItemID || got.Role != w.Role || got.Text != w.Text {
			t.Errorf("event %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestRouterHandoff(t *testing.T) {
	r, h := newHarness(t, twoAgents())
	r.start()

	r.handle([]byte(`{"type":"response.function_call_arguments.done","name":"transfer_to_billing","call_id":"call_1","arguments":"{}"}`))

	e := h.next(t)
	if e.Kind != EventHandoff || e.Agent != "billing" {
		t.Fatalf("event = %+v", e)
	}
	if r.agent() != "billing" {
		t.Errorf("agent = %q", r.agent())
	}

	types := h.sentTypes()
	want := []string{"session.update", "conversation.item.create", "session.update", "response.create"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("sent = %v, want %v", types, want)
	}

	h.mu.Lock()
	out := h.sent[1].(ConversationItemCreateEvent)
	update := h.sent[2].(SessionUpdateEvent)
	h.mu.Unlock()
	if out.Item.Type != "function_call_output" || out.Item.CallID != "call_1" || out.Item.Output != `{"destination_agent":"billing"}` {
		t.Errorf("function output = %+v", out.Item)
	}
	if update.Session.Instructions != "talk money" {
		t.Errorf("handoff instructions = %q", update.Session.Instructions)
	}
}

func TestRouterUnknownTool(t *testing.T) {
	r, h := newHarness(t, twoAgents())

	r.handle([]byte(`{"type":"response.function_call_arguments.done","name":"lookup_weather","call_id":"c2"}`))
	r.handle([]byte(`{"type":"response.function_call_arguments.done","name":"transfer_to_nobody","call_id":"c3"}`))

	if got := strings.Join(h.sentTypes(), ","); got != "conversation.item.create,response.create,conversation.item.create,response.create" {
		t.Fatalf("sent = %s", got)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !strings.Contains(h.sent[0].(ConversationItemCreateEvent).Item.Output, "not available") {
		t.Errorf("unknown tool output = %+v", h.sent[0])
	}
	if len(h.events) != 0 {
		t.Errorf("unexpected events %+v", h.events)
	}
}

func TestRouterErrorEvent(t *testing.T) {
	r, h := newHarness(t, agents.GeneralAI())
	r.handle([]byte(`{"type":"error","error":{"type":"invalid_request_error","code":"bad_event","message":"nope","event_id":"e1"}}`))

	e := h.next(t)
	var apiErr *APIError
	if e.Kind != EventError || !errors.As(e.Err, &apiErr) {
		t.Fatalf("event = %+v", e)
	}
	if apiErr.Code != "bad_event" || apiErr.Message != "nope" || apiErr.EventID != "e1" {
		t.Errorf("api error = %+v", apiErr)
	}
}

type fakeGuardrail struct {
	trip  bool
	err   error
	mu    sync.Mutex
	texts []string
}

func (g *fakeGuardrail) Name() string { return "fake" }

func (g *fakeGuardrail) Check(_ context.Context, text string) (GuardrailResult, error) {
	g.mu.Lock()
	g.texts = append(g.texts, text)
	g.mu.Unlock()
	if g.err != nil {
		return GuardrailResult{}, g.err
	}
	res := GuardrailResult{Name: "fake", Category: CategoryNone}
	if g.trip {
		res.Tripped = true
		res.Category = CategoryOffensive
	}
	return res, nil
}

func TestRouterGuardrailTrips(t *testing.T) {
	g := &fakeGuardrail{trip: true}
	r, h := newHarness(t, agents.GeneralAI(), g)

	r.handle([]byte(`{"type":"response.output_text.done","item_id":"a1","text":"something rude"}`))

	if e := h.next(t); e.Kind != EventAssistantDone {
		t.Fatalf("first event = %+v", e)
	}
	e := h.next(t)
	if e.Kind != EventGuardrailTripped || e.ItemID != "a1" || e.Guardrail == nil || e.Guardrail.Category != CategoryOffensive {
		t.Fatalf("trip event = %+v", e)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancels != 1 {
		t.Errorf("cancels = %d, want 1", h.cancels)
	}
}

func TestRouterGuardrailPassesAndFailures(t *testing.T) {
	for _, g := range []*fakeGuardrail{{}, {err: errors.New("classifier down")}} {
		r, h := newHarness(t, agents.GeneralAI(), g)
		r.handle([]byte(`{"type":"response.audio_transcript.done","item_id":"a1","transcript":"fine"}`))
		h.next(t)

		deadline := time.Now().Add(2 * time.Second)
		for {
			g.mu.Lock()
			n := len(g.texts)
			g.mu.Unlock()
			if n == 1 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("guardrail never ran")
			}
			time.Sleep(5 * time.Millisecond)
		}

		select {
		case e := <-h.eventCh:
			t.Errorf("unexpected event %+v", e)
		case <-time.After(50 * time.Millisecond):
		}
		h.mu.Lock()
		if h.cancels != 0 {
			t.Errorf("cancels = %d", h.cancels)
		}
		h.mu.Unlock()
	}
}

func TestRouterSkipsGuardrailOnBlankText(t *testing.T) {
	g := &fakeGuardrail{trip: true}
	r, h := newHarness(t, agents.GeneralAI(), g)
	r.handle([]byte(`{"type":"response.text.done","item_id":"a1","text":"   "}`))
	h.next(t)
	time.Sleep(20 * time.Millisecond)
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.texts) != 0 {
		t.Error("guardrail should not run on blank text")
	}
}
