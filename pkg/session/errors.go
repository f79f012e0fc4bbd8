package session

import "errors"

var (
	// ErrAborted is returned by Connect when Disconnect ran before the
	// connection finished. The half-open session is torn down.
	ErrAborted = errors.New("session: connect aborted by disconnect")

	// ErrConnecting is returned by StartListening while a connect is in
	// flight.
	ErrConnecting = errors.New("session: connect in progress")

	// ErrNoAgents is returned when the resolved scenario is empty.
	ErrNoAgents = errors.New("session: scenario has no agents")
)
