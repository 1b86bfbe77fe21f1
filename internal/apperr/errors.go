package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnavailable   = errors.New("upstream unavailable")
	ErrNotConfigured = errors.New("not configured")
)

// StatusError is a non-2xx answer from an upstream HTTP service.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.Status, e.Message)
}

// Is maps 404 to ErrNotFound, 409 to ErrConflict, and 429 or any 5xx to
// ErrUnavailable.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == 404
	case ErrConflict:
		return e.Status == 409
	case ErrUnavailable:
		return e.Status == 429 || e.Status >= 500
	}
	return false
}

// Status extracts the upstream HTTP status from err, or 0.
func Status(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
