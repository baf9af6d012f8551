package errors

import "fmt"

// Kind classifies an error for the presentation layer. Components never
// panic across their boundary; every failure resolves to one of these.
type Kind int

const (
	ErrInternal Kind = iota
	// ErrTransient covers recoverable I/O failures (election fetch,
	// candidate list, notification snapshot). Previous state is retained
	// and the operation may be retried by re-entering the view.
	ErrTransient
	// ErrAuth covers 401 responses and expired or malformed tokens.
	// Fatal and external: the session guard forces logout, never retried.
	ErrAuth
	// ErrValidation covers input rejected before any request is sent.
	ErrValidation
	// ErrBusiness covers requests the server declined by domain rule
	// (already voted, election closed).
	ErrBusiness
)

// Error is an application-level error with a kind for classification
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Constructor functions for common error types

func Transient(msg string, err error) *Error {
	return &Error{Kind: ErrTransient, Message: msg, Err: err}
}

func Transientf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrTransient, Message: fmt.Sprintf(format, args...)}
}

func Auth(msg string) *Error {
	return &Error{Kind: ErrAuth, Message: msg}
}

func Authf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrAuth, Message: fmt.Sprintf(format, args...)}
}

func Validation(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func Business(msg string) *Error {
	return &Error{Kind: ErrBusiness, Message: msg}
}

func Businessf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrBusiness, Message: fmt.Sprintf(format, args...)}
}

func Internal(err error) *Error {
	return &Error{Kind: ErrInternal, Message: "internal error", Err: err}
}

// Wrap wraps an error with additional context
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
