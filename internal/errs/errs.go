// Package errs contains the error taxonomy shared by the sync layer and its
// backends. Callers classify errors with errors.Is against the sentinels.
package errs

import (
	"errors"
	"fmt"
)

// Sentinels identifying each error kind.
var (
	// ErrNotAuthenticated indicates no active session owner at call time.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotFound indicates the entity is absent from the mirror or the backend.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates locally detectable bad input.
	ErrValidation = errors.New("validation failed")

	// ErrRemoteRejected indicates the backend call itself failed.
	ErrRemoteRejected = errors.New("remote rejected")

	// ErrSubscription indicates the live change feed failed or dropped.
	ErrSubscription = errors.New("subscription failed")

	// ErrPermissionDenied indicates a write against a row owned by another user.
	ErrPermissionDenied = errors.New("permission denied")
)

// Error carries an error kind together with the operation and the field
// (for validation) that produced it.
type Error struct {
	Kind  error  // one of the sentinels above
	Op    string // e.g. "tasks.update"
	Field string // set for validation errors
	Msg   string
	Err   error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field != "" {
		msg = e.Field + " " + msg
	}
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation builds a field-level validation error.
func Validation(field, msg string) *Error {
	return &Error{Kind: ErrValidation, Field: field, Msg: msg}
}

// Remote wraps a backend failure. The backend message is kept verbatim.
func Remote(op string, err error) *Error {
	return &Error{Kind: ErrRemoteRejected, Op: op, Err: err}
}

// NotFound reports a missing entity id.
func NotFound(op, id string) *Error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf("%s not found", id)}
}

// NotAuthenticated reports a call made without a session owner.
func NotAuthenticated(op string) *Error {
	return &Error{Kind: ErrNotAuthenticated, Op: op, Msg: "user not authenticated"}
}

// WithOp returns a copy of err annotated with op, when err is an *Error
// without one. Other errors are returned unchanged.
func WithOp(op string, err error) error {
	var e *Error
	if errors.As(err, &e) && e.Op == "" {
		cp := *e
		cp.Op = op
		return &cp
	}
	return err
}

// FieldOf returns the offending field of a validation error, or "".
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
