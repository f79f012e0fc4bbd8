package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/teslashibe/go-companion/pkg/agents"
)

// TurnDetection configures server voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
	CreateResponse    *bool   `json:"create_response,omitempty"`
}

// ListeningTurnDetection is the VAD used while listening.
func ListeningTurnDetection() *TurnDetection {
	create := true
	return &TurnDetection{
		Type:              "server_vad",
		Threshold:         0.9,
		PrefixPaddingMs:   300,
		SilenceDurationMs: 500,
		CreateResponse:    &create,
	}
}

// AudioTranscription enables input transcription.
type AudioTranscription struct {
	Model string `json:"model"`
}

// ToolDef is a function tool in session.update.
type ToolDef struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SessionConfig is the session object of session.update. Zero fields are
// omitted so partial updates leave the rest of the session alone.
type SessionConfig struct {
	Instructions            string              `json:"instructions,omitempty"`
	Tools                   []ToolDef           `json:"tools,omitempty"`
	ToolChoice              string              `json:"tool_choice,omitempty"`
	TurnDetection           *TurnDetection      `json:"turn_detection,omitempty"`
	InputAudioTranscription *AudioTranscription `json:"input_audio_transcription,omitempty"`
}

// SessionUpdateEvent is the session.update client event.
type SessionUpdateEvent struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

// SessionUpdate builds a session.update event.
func SessionUpdate(cfg SessionConfig) SessionUpdateEvent {
	return SessionUpdateEvent{Type: "session.update", Session: cfg}
}

// ContentPart is one part of a message item.
type ContentPart struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// ConversationItem is a conversation item in client and server events.
type ConversationItem struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
	Name    string        `json:"name,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
}

// ConversationItemCreateEvent is the conversation.item.create client event.
type ConversationItemCreateEvent struct {
	Type string           `json:"type"`
	Item ConversationItem `json:"item"`
}

// UserTextMessage builds a user text message with a caller-chosen id.
func UserTextMessage(id, text string) ConversationItemCreateEvent {
	return ConversationItemCreateEvent{
		Type: "conversation.item.create",
		Item: ConversationItem{
			ID:      id,
			Type:    "message",
			Role:    "user",
			Content: []ContentPart{{Type: "input_text", Text: text}},
		},
	}
}

// FunctionCallOutput returns a tool result to the model.
func FunctionCallOutput(callID, output string) ConversationItemCreateEvent {
	return ConversationItemCreateEvent{
		Type: "conversation.item.create",
		Item: ConversationItem{Type: "function_call_output", CallID: callID, Output: output},
	}
}

// TypedEvent is a client event with no payload.
type TypedEvent struct {
	Type string `json:"type"`
}

// ResponseCreate asks the model to respond.
func ResponseCreate() TypedEvent { return TypedEvent{Type: "response.create"} }

// ResponseCancel cancels the in-progress response.
func ResponseCancel() TypedEvent { return TypedEvent{Type: "response.cancel"} }

// InputAudioAppendEvent carries base64 PCM16 microphone audio.
type InputAudioAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// InputAudioAppend builds an input_audio_buffer.append event.
func InputAudioAppend(pcm16 []byte) InputAudioAppendEvent {
	return InputAudioAppendEvent{Type: "input_audio_buffer.append", Audio: base64.StdEncoding.EncodeToString(pcm16)}
}

// HandoffToolName is the tool name that transfers to agent.
func HandoffToolName(agent string) string {
	return "transfer_to_" + agent
}

// AgentSession builds the session config for agent within set: its
// instructions, its own tools and one transfer tool per handoff target.
func AgentSession(set agents.Set, agent agents.Agent) SessionConfig {
	cfg := SessionConfig{
		Instructions:            agent.Instructions,
		InputAudioTranscription: &AudioTranscription{Model: "gpt-4o-mini-transcribe"},
	}
	for _, t := range agent.Tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		cfg.Tools = append(cfg.Tools, ToolDef{Type: "function", Name: t.Name, Description: t.Description, Parameters: params})
	}
	for _, name := range agent.Handoffs {
		target, ok := set.Find(name)
		if !ok {
			continue
		}
		desc := target.HandoffDescription
		if desc == "" {
			desc = "Hand the conversation to " + target.Name + "."
		}
		cfg.Tools = append(cfg.Tools, ToolDef{
			Type:        "function",
			Name:        HandoffToolName(target.Name),
			Description: desc,
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}, "required": []string{}},
		})
	}
	if len(cfg.Tools) > 0 {
		cfg.ToolChoice = "auto"
	}
	return cfg
}

// encodeEvent marshals a client event and checks it carries a type.
func encodeEvent(event any) ([]byte, error) {
	if raw, ok := event.(json.RawMessage); ok {
		event = []byte(raw)
	}
	var data []byte
	switch v := event.(type) {
	case []byte:
		data = v
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidEvent)
	}
	return data, nil
}

// serverEvent is the union of the server event fields the router reads.
type serverEvent struct {
	Type       string            `json:"type"`
	EventID    string            `json:"event_id"`
	ItemID     string            `json:"item_id"`
	ResponseID string            `json:"response_id"`
	Delta      string            `json:"delta"`
	Transcript string            `json:"transcript"`
	Text       string            `json:"text"`
	Name       string            `json:"name"`
	CallID     string            `json:"call_id"`
	Arguments  string            `json:"arguments"`
	Item       *ConversationItem `json:"item"`
	Error      *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
		EventID string `json:"event_id"`
	} `json:"error"`
}
