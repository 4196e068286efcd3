package driftwire

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the client.
var (
	// ErrMalformedPayload marks bytes that are not a valid envelope. Frames
	// failing to decode are logged and dropped; the connection survives.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrSessionInvalidated marks a session the server declared dead. The
	// connection recovers by clearing its session and re-identifying.
	ErrSessionInvalidated = errors.New("session invalidated")

	// ErrConnectionClosed is returned when an operation is attempted on a
	// connection that has been shut down.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrAlreadyConnected is returned by Connect on a live connection.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrUnimplemented marks send paths the client reserves opcodes for but
	// does not implement (presence updates, voice state, member requests).
	ErrUnimplemented = errors.New("not implemented")
)

// APIError is an application-level error body returned by the REST API.
// The raw payload is preserved so callers can inspect the server's error
// structure directly.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Body)
}

// TransportError is returned after transient network retries are exhausted.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
