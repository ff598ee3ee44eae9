package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StartConversationInput represents the MCP tool input for opening a conversation.
type StartConversationInput struct {
	Message string `json:"message" jsonschema:"opening visitor message"`
	Source  string `json:"source,omitempty" jsonschema:"traffic source (widget, email, api), defaults to api"`
	Locale  string `json:"locale,omitempty" jsonschema:"BCP 47 reply language tag, for example en-US or pt-BR"`
}

// StartConversationResult represents the MCP tool output for opening a conversation.
type StartConversationResult struct {
	ConversationID string `json:"conversation_id" jsonschema:"conversation identifier for follow-up messages"`
	Response       string `json:"response" jsonschema:"assistant reply to show the visitor"`
	Stage          string `json:"stage" jsonschema:"discovery stage after the reply (understand, identify, scope, propose, recommend, complete)"`
	CalendlyShown  bool   `json:"calendly_shown" jsonschema:"whether the reply contains the demo booking link"`
}

// StartConversationTool defines the MCP tool schema for opening a conversation.
func StartConversationTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "start_conversation",
		Description: "Starts a discovery conversation with an opening visitor message and returns the first assistant reply.",
	}
}

// StartConversationHandler executes a conversation start request.
func StartConversationHandler(client ConversationAPI) mcp.ToolHandlerFor[StartConversationInput, StartConversationResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input StartConversationInput) (*mcp.CallToolResult, StartConversationResult, error) {
		if client == nil {
			return nil, StartConversationResult{}, fmt.Errorf("discovery client is not configured")
		}
		if strings.TrimSpace(input.Message) == "" {
			return nil, StartConversationResult{}, fmt.Errorf("message is required")
		}

		response, err := client.SendChat(ctx, ChatRequest{
			Message: input.Message,
			Source:  input.Source,
			Locale:  input.Locale,
		})
		if err != nil {
			return nil, StartConversationResult{}, fmt.Errorf("conversation start failed: %w", err)
		}

		return nil, StartConversationResult{
			ConversationID: response.ConversationID,
			Response:       response.Response,
			Stage:          response.Stage,
			CalendlyShown:  response.CalendlyShown,
		}, nil
	}
}

// SendMessageInput represents the MCP tool input for continuing a conversation.
type SendMessageInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"conversation identifier"`
	Message        string `json:"message" jsonschema:"visitor message to send"`
	Locale         string `json:"locale,omitempty" jsonschema:"optional BCP 47 reply language override"`
}

// SendMessageResult represents the MCP tool output for continuing a conversation.
type SendMessageResult struct {
	ConversationID string `json:"conversation_id" jsonschema:"conversation identifier"`
	Response       string `json:"response" jsonschema:"assistant reply to show the visitor"`
	Stage          string `json:"stage" jsonschema:"discovery stage after the reply (understand, identify, scope, propose, recommend, complete)"`
	CalendlyShown  bool   `json:"calendly_shown" jsonschema:"whether the reply contains the demo booking link"`
}

// SendMessageTool defines the MCP tool schema for continuing a conversation.
func SendMessageTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "send_message",
		Description: "Sends a visitor message to an existing conversation and returns the assistant reply.",
	}
}

// SendMessageHandler executes a message send request.
func SendMessageHandler(client ConversationAPI) mcp.ToolHandlerFor[SendMessageInput, SendMessageResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SendMessageInput) (*mcp.CallToolResult, SendMessageResult, error) {
		if client == nil {
			return nil, SendMessageResult{}, fmt.Errorf("discovery client is not configured")
		}
		if strings.TrimSpace(input.ConversationID) == "" {
			return nil, SendMessageResult{}, fmt.Errorf("conversation_id is required")
		}
		if strings.TrimSpace(input.Message) == "" {
			return nil, SendMessageResult{}, fmt.Errorf("message is required")
		}

		response, err := client.SendChat(ctx, ChatRequest{
			ConversationID: input.ConversationID,
			Message:        input.Message,
			Locale:         input.Locale,
		})
		if err != nil {
			return nil, SendMessageResult{}, fmt.Errorf("send message failed: %w", err)
		}

		return nil, SendMessageResult{
			ConversationID: response.ConversationID,
			Response:       response.Response,
			Stage:          response.Stage,
			CalendlyShown:  response.CalendlyShown,
		}, nil
	}
}
