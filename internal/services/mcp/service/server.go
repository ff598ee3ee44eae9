package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/instaagents/discovery/internal/platform/branding"
	"github.com/instaagents/discovery/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"

	// TransportStdio serves the MCP protocol over stdin and stdout.
	TransportStdio = "stdio"
)

// serverName identifies this MCP server to clients.
var serverName = branding.AppName + " MCP"

// Config holds the MCP service settings.
type Config struct {
	// APIBaseURL locates the discovery chat API, for example http://localhost:8085.
	APIBaseURL string
	// AdminToken authorizes the conversation listing tool when set.
	AdminToken string
	// Transport selects the protocol transport. Only stdio is supported.
	Transport string
}

// Server bundles the MCP protocol server with its discovery API client.
type Server struct {
	mcpServer *mcp.Server
	client    *domain.Client
}

// NewServer builds an MCP server backed by a discovery API client.
func NewServer(cfg Config) (*Server, error) {
	client, err := domain.NewClient(domain.ClientConfig{
		BaseURL:    cfg.APIBaseURL,
		AdminToken: cfg.AdminToken,
	})
	if err != nil {
		return nil, err
	}
	server := newServer(client)
	server.client = client
	return server, nil
}

// newServer assembles the protocol server and registers the discovery tools.
func newServer(client domain.ConversationAPI) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerTools(mcpServer, client)
	return &Server{mcpServer: mcpServer}
}

// registerTools attaches the discovery tools to the protocol server.
func registerTools(server *mcp.Server, client domain.ConversationAPI) {
	mcp.AddTool(server, domain.StartConversationTool(), domain.StartConversationHandler(client))
	mcp.AddTool(server, domain.SendMessageTool(), domain.SendMessageHandler(client))
	mcp.AddTool(server, domain.GetConversationTool(), domain.GetConversationHandler(client))
	mcp.AddTool(server, domain.ListConversationsTool(), domain.ListConversationsHandler(client))
}

// Run is the service entrypoint for MCP and blocks until context cancellation.
// The discovery API is probed before serving so tools never race the chat
// service during startup.
func Run(ctx context.Context, cfg Config) error {
	transport := cfg.Transport
	if transport == "" {
		transport = TransportStdio
	}
	if transport != TransportStdio {
		return fmt.Errorf("transport %q is not supported", transport)
	}

	server, err := NewServer(cfg)
	if err != nil {
		return err
	}
	if err := server.waitForAPI(ctx); err != nil {
		return err
	}
	return server.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// waitForAPI blocks until the discovery API reports healthy.
func (s *Server) waitForAPI(ctx context.Context) error {
	if s == nil || s.client == nil {
		return errors.New("discovery client is not configured")
	}
	if err := s.client.WaitForHealth(ctx); err != nil {
		return err
	}
	log.Printf("discovery api is ready")
	return nil
}

// serveWithTransport starts the MCP server using the provided transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return errors.New("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
