package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEphemeralKey is returned when the session response has no
	// client_secret.value.
	ErrNoEphemeralKey = errors.New("backend: no ephemeral key provided by the server")

	// ErrNoImage is returned when Vision is called with empty image data.
	ErrNoImage = errors.New("backend: image required")
)

// CredentialError is a failure to obtain a realtime credential.
type CredentialError struct {
	// StatusCode is the backend status, zero for transport failures.
	StatusCode int

	// Body is the raw backend response, if any.
	Body string

	Err error
}

func (e *CredentialError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("backend: session API error %d: %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("backend: fetch ephemeral key: %v", e.Err)
	default:
		return "backend: fetch ephemeral key failed"
	}
}

// Unwrap returns the underlying error.
func (e *CredentialError) Unwrap() error {
	return e.Err
}

// UploadError is a failed request to the vision or responses endpoints.
type UploadError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend: %s API error %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("backend: %s request: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying error.
func (e *UploadError) Unwrap() error {
	return e.Err
}

// IsCredentialError reports whether err is a CredentialError.
func IsCredentialError(err error) bool {
	var ce *CredentialError
	return errors.As(err, &ce)
}

// IsUploadError reports whether err is an UploadError.
func IsUploadError(err error) bool {
	var ue *UploadError
	return errors.As(err, &ue)
}
