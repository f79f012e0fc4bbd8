package vision

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned by Analyze while another request is running.
	ErrBusy = errors.New("vision: analysis already in progress")

	// ErrNoSource is returned when no capture method is available.
	ErrNoSource = errors.New("vision: no screen capture source available")
)

// CaptureError is a failure to acquire or read the screen.
type CaptureError struct {
	// Op is the failed step: "open", "frame" or "encode".
	Op string

	// Denied is set when the platform refused permission.
	Denied bool

	Err error
}

func (e *CaptureError) Error() string {
	if e.Denied {
		return fmt.Sprintf("vision: screen capture permission denied: %v", e.Err)
	}
	return fmt.Sprintf("vision: capture %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *CaptureError) Unwrap() error {
	return e.Err
}

// IsCaptureError reports whether err is a CaptureError.
func IsCaptureError(err error) bool {
	var ce *CaptureError
	return errors.As(err, &ce)
}
