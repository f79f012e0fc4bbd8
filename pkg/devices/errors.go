package devices

import (
	"errors"
	"fmt"
)

// ErrUnknownDevice is returned by Select for an id not in the last list.
var ErrUnknownDevice = errors.New("devices: unknown device")

// PermissionError means the platform refused access to audio devices.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("devices: microphone permission denied: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *PermissionError) Unwrap() error {
	return e.Err
}

// IsPermissionError reports whether err is a PermissionError.
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
