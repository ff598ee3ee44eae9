// Package llm adapts chat completion providers behind a single Invoker
// interface. Adapters classify transport and status failures into stable
// provider error codes so handlers can map them to HTTP statuses.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v5"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
)

// Chat roles accepted by provider APIs.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// defaultMaxAttempts bounds retries for rate-limited or unavailable providers.
const defaultMaxAttempts = 3

// Message is one prior turn of provider chat input.
type Message struct {
	Role    string
	Content string
}

// Request is a provider-neutral completion request.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Invoker executes one model completion and returns the reply text.
type Invoker interface {
	Invoke(ctx context.Context, request Request) (string, error)
}

func validateRequest(request Request) error {
	if len(request.Messages) == 0 {
		return apperrors.New(apperrors.CodeProviderRejected, "completion request requires at least one message")
	}
	for _, msg := range request.Messages {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			return apperrors.New(apperrors.CodeProviderRejected, "completion message role is invalid")
		}
		if strings.TrimSpace(msg.Content) == "" {
			return apperrors.New(apperrors.CodeProviderRejected, "completion message content is required")
		}
	}
	return nil
}

// classifyStatus maps a provider HTTP status to a retryable or permanent
// provider error. The response body is included for operators; credential
// material never appears in it.
func classifyStatus(statusCode int, body string) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return apperrors.WithMetadata(apperrors.CodeProviderRateLimited,
			"provider rate limited", map[string]string{"Status": http.StatusText(statusCode)})
	case statusCode >= 500:
		return apperrors.New(apperrors.CodeProviderUnavailable,
			"provider unavailable: status "+http.StatusText(statusCode))
	default:
		return apperrors.New(apperrors.CodeProviderRejected,
			"provider rejected request: "+strings.TrimSpace(body))
	}
}

// isRetryable reports whether another attempt may succeed.
func isRetryable(err error) bool {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeProviderUnavailable, apperrors.CodeProviderRateLimited:
		return true
	default:
		return false
	}
}

// invokeWithRetry runs one completion attempt with exponential backoff on
// retryable provider failures.
func invokeWithRetry(ctx context.Context, maxAttempts int, attempt func(ctx context.Context) (string, error)) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return backoff.Retry(ctx, func() (string, error) {
		text, err := attempt(ctx)
		if err != nil && !isRetryable(err) {
			return "", backoff.Permanent(err)
		}
		return text, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(uint(maxAttempts)))
}

// wrapTransportError folds context cancellation and network failures into
// provider unavailability.
func wrapTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.CodeProviderUnavailable, "provider request canceled", err)
	}
	return apperrors.Wrap(apperrors.CodeProviderUnavailable, "provider request failed", err)
}
