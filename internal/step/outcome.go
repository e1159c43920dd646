package step

import "time"

// Outcome is the result of one step. Exactly one of three states holds:
// succeeded (Err nil), failed (Err set, Skipped false) or skipped (the context
// ended before the behavior ran). Value is the zero value unless the step
// succeeded.
type Outcome[T any] struct {
	Name     string
	Value    T
	Err      error
	Duration time.Duration
	Skipped  bool
}

// OK reports whether the behavior ran and returned without error.
func (o Outcome[T]) OK() bool {
	return !o.Skipped && o.Err == nil
}

// Failed reports whether the behavior ran and failed.
func (o Outcome[T]) Failed() bool {
	return !o.Skipped && o.Err != nil
}

// Get returns the value and error, for callers that prefer the usual pair.
func (o Outcome[T]) Get() (T, error) {
	return o.Value, o.Err
}
