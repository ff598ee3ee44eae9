// Package errors defines the coded error type shared by the discovery
// services. Every failure carries a machine-readable code that maps to
// an HTTP status and a localized visitor message, so handlers never
// leak internal error text.
package errors

import "errors"

// Error is a coded domain failure. Message is the internal description
// that reaches logs; visitor-facing text is rendered from the code's
// locale template, fed by Metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// Is matches by domain code so errors.Is sees through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a coded error carrying template metadata for the
// localized message.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a coded error over an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the domain code from an error chain, or CodeUnknown
// when no coded error is present.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeUnknown
}

// HTTPStatus resolves the HTTP status for any error by its domain code.
func HTTPStatus(err error) int {
	return CodeOf(err).HTTPStatus()
}
