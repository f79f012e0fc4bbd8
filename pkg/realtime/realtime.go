// Package realtime connects the companion to the OpenAI Realtime API.
//
// Two transports share one contract:
//
//   - WebRTCTransport: Opus microphone track plus the "oai-events" data
//     channel, negotiated with an SDP offer authorized by the ephemeral key.
//   - WebSocketTransport: JSON events over a websocket, microphone audio
//     sent as base64 PCM16 input_audio_buffer.append events.
//
// Both decode server events into the small Event set the session needs and
// handle agent handoffs and output guardrails themselves.
package realtime

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/teslashibe/go-companion/pkg/agents"
)

// Status is the transport connection status.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status as its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transport is a realtime session connection.
type Transport interface {
	// Connect opens the session and returns once events can be sent.
	Connect(ctx context.Context, opts ConnectOptions) error

	// Disconnect closes the session. Safe to call when disconnected.
	Disconnect() error

	// SendEvent sends one client event. It must marshal to a JSON object
	// with a "type" field.
	SendEvent(event any) error

	// Interrupt cancels the in-progress response.
	Interrupt() error

	// Mute stops or resumes sending microphone audio.
	Mute(muted bool) error

	// Status returns the connection status.
	Status() Status

	// OnStatusChange sets the status callback.
	OnStatusChange(fn func(Status))

	// OnEvent sets the event callback.
	OnEvent(fn func(Event))
}

// ConnectOptions configure one session.
type ConnectOptions struct {
	// Credential is the ephemeral key from the backend.
	Credential *oauth2.Token

	// Agents is the ordered agent set. The first agent starts the session.
	Agents agents.Set

	// DeviceID selects the capture device. Empty means the default.
	DeviceID string

	// Guardrails run on every completed assistant message.
	Guardrails []OutputGuardrail

	// Model overrides the transport's realtime model.
	Model string
}

// EventKind identifies an Event.
type EventKind string

const (
	EventUserTranscript   EventKind = "user_transcript"
	EventAssistantDelta   EventKind = "assistant_delta"
	EventAssistantDone    EventKind = "assistant_done"
	EventItemCreated      EventKind = "item_created"
	EventHandoff          EventKind = "handoff"
	EventGuardrailTripped EventKind = "guardrail_tripped"
	EventError            EventKind = "error"
)

// Event is a decoded server event.
type Event struct {
	Kind EventKind

	// ItemID is the conversation item the event belongs to.
	ItemID string

	// Role is "user" or "assistant" for item events.
	Role string

	// Text is the transcript, delta, or final text.
	Text string

	// Agent is the new agent name for handoffs.
	Agent string

	// Guardrail is set for EventGuardrailTripped.
	Guardrail *GuardrailResult

	// Err is set for EventError.
	Err error
}
