package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a load, driver or match id is unknown.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when two concurrent match creations race for the
// same load or driver. Callers may retry after re-reading state.
var ErrConflict = errors.New("active match already exists")

// ValidationError reports invalid input. The caller must fix the request;
// retrying does not help.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StateError reports an operation attempted from a status that does not
// permit it.
type StateError struct {
	Entity string
	Status string
	Op     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s in status %q does not allow %s", e.Entity, e.Status, e.Op)
}

func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
