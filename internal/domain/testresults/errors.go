package testresults

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	// ErrUpstreamStorage means the object store was unreachable or refused the call.
	ErrUpstreamStorage = errors.New("object storage failure")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Invalidf wraps ErrInvalidArgument with a client-facing message.
func Invalidf(format string, args ...any) error { return invalidf(format, args...) }

// Forbiddenf wraps ErrForbidden.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidStatef wraps ErrInvalidState.
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// ConflictTestID is returned when a testId already has a record.
func ConflictTestID(testID string) error {
	return fmt.Errorf("%w: testId %q already exists", ErrConflict, testID)
}

// Upstream wraps an object store error. The cause is kept for logs only.
func Upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

// UpstreamError carries the storage cause behind ErrUpstreamStorage.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUpstreamStorage, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstreamStorage, e.Err} }
