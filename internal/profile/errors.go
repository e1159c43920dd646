package profile

import "errors"

var (
	// ErrNotFound means no document exists for the profile name.
	ErrNotFound = errors.New("profile not found")
	// ErrInvalid means the document exists but cannot be used.
	ErrInvalid = errors.New("invalid profile")
	// ErrUnknownHost means a user type needs a host the profile does not define.
	ErrUnknownHost = errors.New("unknown host")
)

// Error reports a failure to resolve or use a named profile.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return "profile " + e.Name + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
