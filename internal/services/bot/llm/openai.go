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

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxAttempts int
	HTTPClient  *http.Client
}

type openAIInvoker struct {
	cfg OpenAIConfig
}

// NewOpenAIInvoker builds an Invoker backed by a chat completions API.
func NewOpenAIInvoker(cfg OpenAIConfig) Invoker {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	return &openAIInvoker{cfg: cfg}
}

func (o *openAIInvoker) Invoke(ctx context.Context, request Request) (string, error) {
	if strings.TrimSpace(o.cfg.APIKey) == "" {
		return "", apperrors.New(apperrors.CodeProviderRejected, "openai api key is required")
	}
	if strings.TrimSpace(o.cfg.Model) == "" {
		return "", apperrors.New(apperrors.CodeProviderRejected, "openai model is required")
	}
	if err := validateRequest(request); err != nil {
		return "", err
	}
	return invokeWithRetry(ctx, o.cfg.MaxAttempts, func(ctx context.Context) (string, error) {
		return o.invokeOnce(ctx, request)
	})
}

func (o *openAIInvoker) invokeOnce(ctx context.Context, request Request) (string, error) {
	type chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	payload := struct {
		Model       string        `json:"model"`
		MaxTokens   int           `json:"max_tokens,omitempty"`
		Temperature float64       `json:"temperature"`
		Messages    []chatMessage `json:"messages"`
	}{
		Model:       o.cfg.Model,
		MaxTokens:   request.MaxTokens,
		Temperature: request.Temperature,
	}
	if strings.TrimSpace(request.System) != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: request.System})
	}
	for _, msg := range request.Messages {
		payload.Messages = append(payload.Messages, chatMessage{Role: msg.Role, Content: msg.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeProviderRejected, "marshal completion request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(o.cfg.BaseURL, "/")+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeProviderRejected, "build completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Credential material is sent only as an Authorization header and is
	// never echoed in errors or response payloads.
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	res, err := o.cfg.HTTPClient.Do(req)
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
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return "", apperrors.Wrap(apperrors.CodeProviderMalformed, "decode completion response", err)
	}
	if len(decoded.Choices) == 0 {
		return "", apperrors.New(apperrors.CodeProviderMalformed, "completion response missing choices")
	}
	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if text == "" {
		return "", apperrors.New(apperrors.CodeProviderMalformed, "completion response missing text content")
	}
	return text, nil
}
