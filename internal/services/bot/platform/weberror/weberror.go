// Package weberror shapes domain failures into the JSON envelope the
// discovery API returns. Every error body carries a coarse kind for
// clients that only branch on failure class, the stable domain code as
// key, and a visitor-facing message localized for the request.
package weberror

import (
	stderrors "errors"
	"net/http"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
	errorsi18n "github.com/instaagents/discovery/internal/platform/errors/i18n"
)

// Kind classifies application failures for consistent HTTP mapping.
type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindInvalidInput Kind = "invalid_input"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindRateLimited  Kind = "rate_limited"
	KindUnavailable  Kind = "unavailable"
)

// Body is the wire form of one API failure.
type Body struct {
	Kind    Kind   `json:"kind"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// Envelope wraps the failure under the error field.
type Envelope struct {
	Error Body `json:"error"`
}

// KindForStatus maps an HTTP status onto a wire kind.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindInvalidInput
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusServiceUnavailable:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// ForError resolves the HTTP status and response envelope for a failure.
// The message is rendered from the locale catalog keyed by the domain
// code, so internal error text never reaches visitors.
func ForError(err error, locale string) (int, Envelope) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()

	var metadata map[string]string
	var domainErr *apperrors.Error
	if stderrors.As(err, &domainErr) {
		metadata = domainErr.Metadata
	}

	message := errorsi18n.GetCatalog(locale).Format(code, metadata)
	return status, Envelope{Error: Body{
		Kind:    KindForStatus(status),
		Key:     string(code),
		Message: message,
	}}
}
