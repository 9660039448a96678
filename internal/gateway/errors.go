package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBody is returned when a stream response carries no body.
	ErrNoBody = errors.New("no response body")
	// ErrNotStopped is returned when the backend declines a stop request.
	ErrNotStopped = errors.New("failed to stop generation")
)

// TransportError describes a failed call: network failure, non-2xx status,
// or an undecodable response.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: gateway returned status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: gateway returned status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": " + e.Message
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
