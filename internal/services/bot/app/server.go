// Package server hosts the discovery HTTP API: the visitor chat endpoint,
// the embeddable widget, the widget WebSocket transport, the operator
// listing endpoints, and the health and metrics surfaces.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/instaagents/discovery/internal/platform/timeouts"
	"github.com/instaagents/discovery/internal/services/bot/adminauth"
	"github.com/instaagents/discovery/internal/services/bot/agent"
	"github.com/instaagents/discovery/internal/services/bot/llm"
	"github.com/instaagents/discovery/internal/services/bot/storage/sqlite"
)

// Supported model providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Default model per provider when none is configured.
const (
	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultOpenAIModel    = "gpt-4o"
)

// Config carries everything the discovery server needs to run.
type Config struct {
	// HTTPAddr is the listen address, e.g. ":8080".
	HTTPAddr string
	// DatabasePath is the SQLite file backing all conversation state.
	DatabasePath string

	// Provider selects the model provider, anthropic by default.
	Provider string
	// ProviderAPIKey authenticates against the provider. When empty the
	// server still starts but reports the agent check unhealthy.
	ProviderAPIKey string
	// ProviderBaseURL overrides the provider endpoint, for tests.
	ProviderBaseURL string
	// ProviderModel overrides the per-provider default model.
	ProviderModel string

	// CalendlyURL is the booking link offered at the end of discovery.
	CalendlyURL string

	// AdminAuth enables the operator endpoints. When nil they answer 503.
	AdminAuth *adminauth.Config

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	// Logger receives request and failure logs, log.Default() when nil.
	Logger *log.Logger
}

// Server is the assembled discovery service.
type Server struct {
	cfg        Config
	logger     *log.Logger
	store      *sqlite.Store
	service    *chatService
	adminAuth  *adminauth.Config
	agentReady bool

	handler    http.Handler
	httpServer *http.Server
}

// New builds a server from config: opens the SQLite store, constructs the
// provider invoker and dialogue engine, and wires the HTTP surface. The
// caller owns Close.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		return nil, fmt.Errorf("nil context")
	}
	cfg.HTTPAddr = strings.TrimSpace(cfg.HTTPAddr)
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http listen address is required")
	}
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	invoker, err := newInvoker(cfg)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	engine := agent.NewEngine(invoker, agent.Config{CalendlyURL: cfg.CalendlyURL})

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		adminAuth:  cfg.AdminAuth,
		agentReady: strings.TrimSpace(cfg.ProviderAPIKey) != "",
	}
	s.service = newChatService(engine, Stores{
		Conversations: store,
		Messages:      store,
		Leads:         store,
	})
	s.handler = newHandler(s)
	s.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s, nil
}

// newInvoker builds the provider client. Invokers validate credentials
// lazily, so a missing API key surfaces per request and via the health
// check rather than at startup.
func newInvoker(cfg Config) (llm.Invoker, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderAnthropic
	}
	model := strings.TrimSpace(cfg.ProviderModel)
	client := &http.Client{Timeout: timeouts.ProviderRequest}

	switch provider {
	case ProviderAnthropic:
		if model == "" {
			model = defaultAnthropicModel
		}
		return llm.NewAnthropicInvoker(llm.AnthropicConfig{
			BaseURL:    cfg.ProviderBaseURL,
			APIKey:     cfg.ProviderAPIKey,
			Model:      model,
			HTTPClient: client,
		}), nil
	case ProviderOpenAI:
		if model == "" {
			model = defaultOpenAIModel
		}
		return llm.NewOpenAIInvoker(llm.OpenAIConfig{
			BaseURL:    cfg.ProviderBaseURL,
			APIKey:     cfg.ProviderAPIKey,
			Model:      model,
			HTTPClient: client,
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}
}

// Run builds a server from config and serves until ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	s, err := New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create discovery server: %w", err)
	}
	defer s.Close()

	if err := s.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve discovery api: %w", err)
	}
	return nil
}

// Handler exposes the HTTP surface for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is canceled or the listener fails, then
// drains in-flight requests within the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()
	s.logger.Printf("discovery api listening addr=%s", s.cfg.HTTPAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Close releases server resources. Safe on a nil or partly built server.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
		s.store = nil
	}
	return nil
}
