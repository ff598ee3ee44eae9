package llm

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
)

func TestNewOpenAIInvokerDefaults(t *testing.T) {
	invoker := NewOpenAIInvoker(OpenAIConfig{})
	typed, ok := invoker.(*openAIInvoker)
	if !ok {
		t.Fatalf("invoker type = %T, want *openAIInvoker", invoker)
	}
	if typed.cfg.HTTPClient == nil {
		t.Fatal("expected non-nil HTTP client")
	}
	if typed.cfg.BaseURL != "https://api.openai.com" {
		t.Fatalf("base_url = %q", typed.cfg.BaseURL)
	}
}

func TestOpenAIInvokeSuccess(t *testing.T) {
	invoker := &openAIInvoker{cfg: OpenAIConfig{
		BaseURL: "https://provider.example.com",
		APIKey:  "sk-2",
		Model:   "gpt-4o",
		HTTPClient: &http.Client{
			Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
				if req.URL.String() != "https://provider.example.com/v1/chat/completions" {
					t.Fatalf("url = %q", req.URL.String())
				}
				if req.Header.Get("Authorization") != "Bearer sk-2" {
					t.Fatalf("authorization = %q", req.Header.Get("Authorization"))
				}
				body, err := io.ReadAll(req.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				if !strings.Contains(string(body), `{"role":"system","content":"be brief"}`) {
					t.Fatalf("request body = %s", string(body))
				}
				if !strings.Contains(string(body), `"model":"gpt-4o"`) {
					t.Fatalf("request body = %s", string(body))
				}
				return response(http.StatusOK, `{"choices":[{"message":{"content":"Hello from the model"}}]}`), nil
			}),
		},
	}}

	got, err := invoker.Invoke(context.Background(), Request{
		System:      "be brief",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		MaxTokens:   100,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got != "Hello from the model" {
		t.Fatalf("reply = %q", got)
	}
}

func TestOpenAIInvokeValidation(t *testing.T) {
	client := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			t.Fatalf("round trip should not execute for validation failure: %v", req.URL)
			return nil, nil
		}),
	}

	tests := []struct {
		name    string
		cfg     OpenAIConfig
		request Request
	}{
		{
			name:    "missing api key",
			cfg:     OpenAIConfig{BaseURL: "https://provider.example.com", Model: "gpt-4o", HTTPClient: client},
			request: Request{Messages: []Message{{Role: RoleUser, Content: "hello"}}},
		},
		{
			name:    "missing model",
			cfg:     OpenAIConfig{BaseURL: "https://provider.example.com", APIKey: "sk-2", HTTPClient: client},
			request: Request{Messages: []Message{{Role: RoleUser, Content: "hello"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoker := &openAIInvoker{cfg: tt.cfg}
			if _, err := invoker.Invoke(context.Background(), tt.request); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestOpenAIInvokeMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "{bad json"},
		{name: "missing choices", body: `{"choices":[]}`},
		{name: "blank content", body: `{"choices":[{"message":{"content":"  "}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoker := &openAIInvoker{cfg: OpenAIConfig{
				BaseURL:     "https://provider.example.com",
				APIKey:      "sk-2",
				Model:       "gpt-4o",
				MaxAttempts: 1,
				HTTPClient: &http.Client{
					Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
						return response(http.StatusOK, tt.body), nil
					}),
				},
			}}

			_, err := invoker.Invoke(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
			if apperrors.CodeOf(err) != apperrors.CodeProviderMalformed {
				t.Fatalf("error code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeProviderMalformed)
			}
		})
	}
}

func TestOpenAIInvokeRateLimitedRetries(t *testing.T) {
	attempts := 0
	invoker := &openAIInvoker{cfg: OpenAIConfig{
		BaseURL:     "https://provider.example.com",
		APIKey:      "sk-2",
		Model:       "gpt-4o",
		MaxAttempts: 3,
		HTTPClient: &http.Client{
			Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
				attempts++
				if attempts < 3 {
					return response(http.StatusTooManyRequests, "slow down"), nil
				}
				return response(http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`), nil
			}),
		},
	}}

	got, err := invoker.Invoke(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got != "ok" {
		t.Fatalf("reply = %q", got)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}
