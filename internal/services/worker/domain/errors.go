package domain

import "errors"

// permanentError wraps failures that will not heal on retry, such as a
// job wired without its store.
type permanentError struct {
	err error
}

func (e permanentError) Error() string {
	if e.err == nil {
		return "permanent error"
	}
	return e.err.Error()
}

func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable. The maintenance loop lets a
// permanent failure wait out its full cadence instead of retrying it on
// the next tick.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err carries the Permanent marker.
func IsPermanent(err error) bool {
	var marker permanentError
	return errors.As(err, &marker)
}
