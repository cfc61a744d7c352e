package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransportError is returned when a request cannot be completed: the
// connection failed, the request timed out, the body could not be read, or
// the service answered with a non-2xx status.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int // zero when no response was received
	Err        error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

// Unwrap returns the underlying cause
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request failed because a deadline expired.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
