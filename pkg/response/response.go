package response

import (
	"errors"
	"fmt"
)

// Error carries the HTTP status a failure should be answered with.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

// Wrap attaches cause to a sentinel built with NewError so the response keeps
// the sentinel's code and message while errors.Is still sees the cause.
func Wrap(sentinel error, cause error) error {
	var e *Error
	if !errors.As(sentinel, &e) {
		return fmt.Errorf("%w: %w", sentinel, cause)
	}
	return &wrapped{err: e, cause: cause}
}

type wrapped struct {
	err   *Error
	cause error
}

func (w *wrapped) Error() string {
	return w.err.Error()
}

func (w *wrapped) Unwrap() []error {
	return []error{w.err, w.cause}
}
