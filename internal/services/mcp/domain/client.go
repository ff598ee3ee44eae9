package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/instaagents/discovery/internal/platform/timeouts"
	"github.com/instaagents/discovery/internal/services/bot/agent"
)

// healthRetryDelay sets the initial wait time between readiness probes.
const healthRetryDelay = 500 * time.Millisecond

// healthRetryMaxDelay caps the backoff between readiness probes.
const healthRetryMaxDelay = 10 * time.Second

// maxErrorBodyBytes caps how much of an error response body is read.
const maxErrorBodyBytes = 64 << 10

// ChatRequest is the POST /chat request body.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	Source         string `json:"source,omitempty"`
	Locale         string `json:"locale,omitempty"`
}

// ChatResponse is the POST /chat response body.
type ChatResponse struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
	Stage          string `json:"stage"`
	CalendlyShown  bool   `json:"calendly_shown"`
}

// ConversationMessage is one transcript entry of a conversation detail.
type ConversationMessage struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationState is the gathered discovery state of a conversation detail.
type ConversationState struct {
	BusinessInfo   agent.BusinessInfo `json:"business_info"`
	IdentifiedTask string             `json:"identified_task,omitempty"`
	Proposal       *agent.Proposal    `json:"proposal,omitempty"`
	Tier           string             `json:"tier,omitempty"`
	QuestionsAsked int                `json:"questions_asked"`
	CalendlyShown  bool               `json:"calendly_shown"`
}

// ConversationDetail is the GET /conversation/{id} response body.
type ConversationDetail struct {
	ConversationID string                `json:"conversation_id"`
	Source         string                `json:"source"`
	Locale         string                `json:"locale"`
	Stage          string                `json:"stage"`
	State          ConversationState     `json:"state"`
	Messages       []ConversationMessage `json:"messages"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	AbandonedAt    *time.Time            `json:"abandoned_at,omitempty"`
}

// ConversationSummary is one entry of the GET /conversations response body.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	Source         string    `json:"source"`
	Stage          string    `json:"stage"`
	Tier           string    `json:"tier,omitempty"`
	MessageCount   int       `json:"message_count"`
	HasProposal    bool      `json:"has_proposal"`
	CalendlyShown  bool      `json:"calendly_shown"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ConversationPage is the GET /conversations response body.
type ConversationPage struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

// ListQuery narrows and pages the admin conversation listing.
type ListQuery struct {
	Limit  int
	Offset int
	Source string
	Filter string
}

// ConversationAPI is the discovery API surface the MCP tools call.
type ConversationAPI interface {
	SendChat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Conversation(ctx context.Context, conversationID string) (ConversationDetail, error)
	Conversations(ctx context.Context, query ListQuery) (ConversationPage, error)
}

// APIError reports a non-2xx discovery API response.
type APIError struct {
	StatusCode int
	Key        string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e == nil:
		return "discovery api error"
	case e.Message != "":
		return fmt.Sprintf("discovery api status %d: %s", e.StatusCode, e.Message)
	case e.Key != "":
		return fmt.Sprintf("discovery api status %d (%s)", e.StatusCode, e.Key)
	default:
		return fmt.Sprintf("discovery api status %d", e.StatusCode)
	}
}

// ClientConfig holds the discovery API connection settings.
type ClientConfig struct {
	// BaseURL is the discovery API root, for example http://localhost:8085.
	BaseURL string
	// AdminToken authorizes the admin listing endpoints when set. It is sent
	// as a bearer token with each request.
	AdminToken string
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// Client calls the discovery HTTP API.
type Client struct {
	baseURL    string
	adminToken string
	http       *http.Client
}

// NewClient builds a discovery API client from the config. Chat calls block
// on the language model, so the default timeout follows the provider budget
// rather than the usual API one.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("discovery api base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse discovery api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("discovery api base url %q needs a scheme and host", base)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.ProviderRequest}
	}
	return &Client{
		baseURL:    base,
		adminToken: strings.TrimSpace(cfg.AdminToken),
		http:       httpClient,
	}, nil
}

// SendChat posts a visitor message and returns the assistant reply. An empty
// conversation ID starts a new conversation.
func (c *Client) SendChat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var resp ChatResponse
	if err := c.call(ctx, http.MethodPost, "/chat", nil, req, &resp); err != nil {
		return ChatResponse{}, err
	}
	return resp, nil
}

// Conversation fetches the transcript and gathered state for one conversation.
func (c *Client) Conversation(ctx context.Context, conversationID string) (ConversationDetail, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return ConversationDetail{}, errors.New("conversation id is required")
	}
	var resp ConversationDetail
	if err := c.call(ctx, http.MethodGet, "/conversation/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return ConversationDetail{}, err
	}
	return resp, nil
}

// Conversations lists conversation summaries through the admin endpoint.
func (c *Client) Conversations(ctx context.Context, query ListQuery) (ConversationPage, error) {
	if c == nil || c.adminToken == "" {
		return ConversationPage{}, errors.New("admin token is required to list conversations")
	}

	values := url.Values{}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		values.Set("offset", strconv.Itoa(query.Offset))
	}
	if source := strings.TrimSpace(query.Source); source != "" {
		values.Set("source", source)
	}
	if filter := strings.TrimSpace(query.Filter); filter != "" {
		values.Set("filter", filter)
	}

	var resp ConversationPage
	if err := c.call(ctx, http.MethodGet, "/conversations", values, nil, &resp); err != nil {
		return ConversationPage{}, err
	}
	return resp, nil
}

// CheckHealth performs a single readiness probe against the API.
func (c *Client) CheckHealth(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, http.MethodGet, "/health", nil, nil, &body); err != nil {
		return err
	}
	if body.Status != "healthy" {
		return fmt.Errorf("discovery api reported %q", body.Status)
	}
	return nil
}

// WaitForHealth probes the API until it reports healthy or the context ends.
func (c *Client) WaitForHealth(ctx context.Context) error {
	if c == nil {
		return errors.New("discovery client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = healthRetryDelay
	policy.MaxInterval = healthRetryMaxDelay

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		probeCtx, cancel := context.WithTimeout(ctx, timeouts.APIRequest)
		defer cancel()
		if err := c.CheckHealth(probeCtx); err != nil {
			log.Printf("discovery api not ready: %v", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(policy))
	if err != nil {
		return fmt.Errorf("wait for discovery api: %w", err)
	}
	return nil
}

// call issues one API request and decodes the JSON response into out.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if c == nil {
		return errors.New("discovery client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call discovery api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeAPIError reads the error envelope the discovery API wraps failures in.
// Bodies that are not the envelope, such as the unhealthy health report, keep
// the bare status code.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return apiErr
	}

	var envelope struct {
		Error struct {
			Key     string `json:"key"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Key = envelope.Error.Key
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

var _ ConversationAPI = (*Client)(nil)
