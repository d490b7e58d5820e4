package envelope

import (
	"errors"
	"fmt"
)

// ErrNoPayload is returned when reading a payload that was never set.
var ErrNoPayload = errors.New("envelope has no payload")

// SerializationError wraps a payload or envelope that could not be encoded
// or decoded.
type SerializationError struct {
	Op   string
	Type string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Type, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func IsSerialization(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}
