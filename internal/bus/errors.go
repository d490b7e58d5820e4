package bus

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("bus closed")

// ProfileResolutionError means a recipient or endpoint name could not be
// turned into connection details. It is never retried internally.
type ProfileResolutionError struct {
	Name string
	Err  error
}

func (e *ProfileResolutionError) Error() string {
	return fmt.Sprintf("resolve profile %q: %v", e.Name, e.Err)
}

func (e *ProfileResolutionError) Unwrap() error { return e.Err }

// TransportError is a broker level failure: connect, send or receive.
type TransportError struct {
	Op    string
	Topic string
	Err   error
}

func (e *TransportError) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Topic, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HandlerError wraps an error returned (or a panic raised) by a message
// handler. The message it refers to was abandoned.
type HandlerError struct {
	Endpoint      string
	CorrelationID uuid.UUID
	Err           error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %s (correlation %s): %v", e.Endpoint, e.CorrelationID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

func IsProfileResolution(err error) bool {
	var pe *ProfileResolutionError
	return errors.As(err, &pe)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsHandler(err error) bool {
	var he *HandlerError
	return errors.As(err, &he)
}
