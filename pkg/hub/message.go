// Package hub fans messages out to websocket clients using a single
// goroutine that owns the client set.
package hub

// MessageType indicates the websocket frame type.
type MessageType int

const (
	// JSONMessage is a JSON-encoded text frame.
	JSONMessage MessageType = iota
	// BinaryMessage is a raw binary frame.
	BinaryMessage
)

// Message is one frame broadcast to every client.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps binary data.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
