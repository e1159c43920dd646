package step

import (
	"errors"
	"fmt"
)

// ErrNilBehavior is reported when a step is given no function to run.
var ErrNilBehavior = errors.New("step: nil behavior")

// PanicError is a recovered panic from inside a step behavior.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// AssertionError is a validation failure raised by [Check].
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	if e.Message == "" {
		return "assertion failed"
	}
	return "assertion failed: " + e.Message
}

// Check returns nil when cond holds and an *AssertionError otherwise.
//
//	if err := step.Check(resp.StatusCode == http.StatusOK, "status %d", resp.StatusCode); err != nil {
//		return err
//	}
func Check(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}
