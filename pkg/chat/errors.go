package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNoConversation indicates a successful command response without a
	// conversation envelope; the server violated the command's contract.
	ErrNoConversation = errors.New("no conversation in response")

	// ErrNoUploadEndpoint indicates UploadFiles was called without a
	// configured file upload service endpoint.
	ErrNoUploadEndpoint = errors.New("file upload service endpoint not configured")
)

// ServerError is a non-2xx response whose body decoded to {"error": ...}.
// It carries the server's business-level message.
type ServerError struct {
	StatusCode int
	Message    string `json:"error"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (status %d): %s", e.StatusCode, e.Message)
}

// DecodeError is a response body that did not match the expected shape,
// kept separate from ServerError so callers can distinguish protocol drift
// from business errors.
type DecodeError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed server response (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("malformed server response (status %d)", e.StatusCode)
}

func (e *DecodeError) Unwrap() error { return e.Err }
