package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when sending without a session.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrAlreadyConnected is returned by Connect on a live transport.
	ErrAlreadyConnected = errors.New("realtime: already connected")

	// ErrNoCredential is returned when Connect has no ephemeral key.
	ErrNoCredential = errors.New("realtime: credential required")

	// ErrNoAgents is returned when Connect has an empty agent set.
	ErrNoAgents = errors.New("realtime: agent set is empty")

	// ErrInvalidEvent is returned for events that do not encode to a typed
	// JSON object.
	ErrInvalidEvent = errors.New("realtime: invalid event")
)

// TransportError is a failure to establish or use the connection.
type TransportError struct {
	// Op is the failed step, e.g. "dial" or "sdp exchange".
	Op string

	// StatusCode is the HTTP status where one exists.
	StatusCode int

	Err error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("realtime: %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("realtime: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is an "error" event from the server.
type APIError struct {
	Type    string
	Code    string
	Message string
	EventID string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("realtime: API error [%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("realtime: API error: %s", e.Message)
}

// IsTransportError reports whether err is a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsNotConnected reports whether err means there is no session.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}
