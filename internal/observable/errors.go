package observable

import (
	"errors"
	"fmt"
)

// ErrInvalidValue is returned when an update does not resolve to a keyed mapping.
var ErrInvalidValue = errors.New("invalid value: expected a keyed mapping")

// InvalidValueError carries the type that was rejected.
type InvalidValueError struct {
	Type string
}

func newInvalidValueError(raw any) *InvalidValueError {
	return &InvalidValueError{Type: typeName(raw)}
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s, got %s", ErrInvalidValue.Error(), e.Type)
}

func (e *InvalidValueError) Unwrap() error {
	return ErrInvalidValue
}

// CallbackError describes a subscriber callback that panicked during a
// broadcast. It is handed to the panic handler and never returned to the
// caller of Next, Overwrite or Reset.
type CallbackError struct {
	Key       string
	Recovered any
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("subscriber %q panicked: %v", e.Key, e.Recovered)
}

// Unwrap exposes the recovered value when it was itself an error.
func (e *CallbackError) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}
