package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
)

const anthropicAPIVersion = "2023-06-01"

// AnthropicConfig configures the Anthropic messages endpoint and HTTP behavior.
type AnthropicConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxAttempts int
	HTTPClient  *http.Client
}

type anthropicInvoker struct {
	cfg AnthropicConfig
}

// NewAnthropicInvoker builds an Invoker backed by the Anthropic messages API.
func NewAnthropicInvoker(cfg AnthropicConfig) Invoker {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	return &anthropicInvoker{cfg: cfg}
}

func (a *anthropicInvoker) Invoke(ctx context.Context, request Request) (string, error) {
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return "", apperrors.New(apperrors.CodeProviderRejected, "anthropic api key is required")
	}
	if strings.TrimSpace(a.cfg.Model) == "" {
		return "", apperrors.New(apperrors.CodeProviderRejected, "anthropic model is required")
	}
	if err := validateRequest(request); err != nil {
		return "", err
	}
	return invokeWithRetry(ctx, a.cfg.MaxAttempts, func(ctx context.Context) (string, error) {
		return a.invokeOnce(ctx, request)
	})
}

func (a *anthropicInvoker) invokeOnce(ctx context.Context, request Request) (string, error) {
	type anthropicMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	payload := struct {
		Model       string             `json:"model"`
		MaxTokens   int                `json:"max_tokens"`
		Temperature float64            `json:"temperature"`
		System      string             `json:"system,omitempty"`
		Messages    []anthropicMessage `json:"messages"`
	}{
		Model:       a.cfg.Model,
		MaxTokens:   request.MaxTokens,
		Temperature: request.Temperature,
		System:      request.System,
	}
	for _, msg := range request.Messages {
		payload.Messages = append(payload.Messages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeProviderRejected, "marshal completion request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.cfg.BaseURL, "/")+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeProviderRejected, "build completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	// Credential material is sent only as a header and is never echoed in
	// errors or response payloads.
	req.Header.Set("x-api-key", a.cfg.APIKey)

	res, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", wrapTransportError(err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		errorBody, readErr := io.ReadAll(io.LimitReader(res.Body, 4096))
		if readErr != nil {
			return "", apperrors.Wrap(apperrors.CodeProviderUnavailable, "read completion error body", readErr)
		}
		return "", classifyStatus(res.StatusCode, string(errorBody))
	}

	var decoded struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return "", apperrors.Wrap(apperrors.CodeProviderMalformed, "decode completion response", err)
	}
	var reply strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(reply.String())
	if text == "" {
		return "", apperrors.New(apperrors.CodeProviderMalformed, "completion response missing text content")
	}
	return text, nil
}
