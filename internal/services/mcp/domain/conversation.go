package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GetConversationInput represents the MCP tool input for fetching a conversation.
type GetConversationInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"conversation identifier"`
}

// ConversationTurn is one transcript entry of a conversation result.
type ConversationTurn struct {
	Role      string `json:"role" jsonschema:"message author (visitor or assistant)"`
	Content   string `json:"content" jsonschema:"message text"`
	CreatedAt string `json:"created_at" jsonschema:"RFC3339 timestamp when the message was stored"`
}

// ProposalSummary describes the MVP automation proposed to the visitor.
type ProposalSummary struct {
	AgentName     string   `json:"agent_name" jsonschema:"proposed agent name"`
	Description   string   `json:"description" jsonschema:"what the agent will handle"`
	TimeSaved     string   `json:"time_saved" jsonschema:"estimated hours reclaimed per week"`
	Integrations  []string `json:"integrations" jsonschema:"systems the agent connects to"`
	SuccessMetric string   `json:"success_metric" jsonschema:"how success is measured"`
	DeliveryTime  string   `json:"delivery_time" jsonschema:"expected delivery window"`
}

// GetConversationResult represents the MCP tool output for fetching a conversation.
type GetConversationResult struct {
	ConversationID   string             `json:"conversation_id" jsonschema:"conversation identifier"`
	Source           string             `json:"source" jsonschema:"traffic source"`
	Locale           string             `json:"locale" jsonschema:"reply language tag"`
	Stage            string             `json:"stage" jsonschema:"current discovery stage"`
	BusinessType     string             `json:"business_type,omitempty" jsonschema:"what the visitor's business does"`
	TeamSize         int                `json:"team_size,omitempty" jsonschema:"reported team size"`
	BiggestChallenge string             `json:"biggest_challenge,omitempty" jsonschema:"biggest operational challenge"`
	TimeWasters      []string           `json:"time_wasters,omitempty" jsonschema:"recurring tasks that drain the team"`
	CurrentTools     []string           `json:"current_tools,omitempty" jsonschema:"tools the business already uses"`
	IdentifiedTask   string             `json:"identified_task,omitempty" jsonschema:"automation target picked during discovery"`
	Proposal         *ProposalSummary   `json:"proposal,omitempty" jsonschema:"proposed MVP automation, once scoped"`
	Tier             string             `json:"tier,omitempty" jsonschema:"recommended pricing tier (starter, growth, enterprise)"`
	QuestionsAsked   int                `json:"questions_asked" jsonschema:"questions asked so far"`
	CalendlyShown    bool               `json:"calendly_shown" jsonschema:"whether the demo booking link was shown"`
	Messages         []ConversationTurn `json:"messages" jsonschema:"transcript in chronological order"`
	CreatedAt        string             `json:"created_at" jsonschema:"RFC3339 timestamp when the conversation started"`
	UpdatedAt        string             `json:"updated_at" jsonschema:"RFC3339 timestamp of the last activity"`
	AbandonedAt      string             `json:"abandoned_at,omitempty" jsonschema:"RFC3339 timestamp when the conversation was marked abandoned, if it was"`
}

// GetConversationTool defines the MCP tool schema for fetching a conversation.
func GetConversationTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_conversation",
		Description: "Fetches the transcript and gathered discovery state for one conversation.",
	}
}

// GetConversationHandler executes a conversation fetch request.
func GetConversationHandler(client ConversationAPI) mcp.ToolHandlerFor[GetConversationInput, GetConversationResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetConversationInput) (*mcp.CallToolResult, GetConversationResult, error) {
		if client == nil {
			return nil, GetConversationResult{}, fmt.Errorf("discovery client is not configured")
		}
		if strings.TrimSpace(input.ConversationID) == "" {
			return nil, GetConversationResult{}, fmt.Errorf("conversation_id is required")
		}

		detail, err := client.Conversation(ctx, input.ConversationID)
		if err != nil {
			return nil, GetConversationResult{}, fmt.Errorf("conversation fetch failed: %w", err)
		}

		result := GetConversationResult{
			ConversationID:   detail.ConversationID,
			Source:           detail.Source,
			Locale:           detail.Locale,
			Stage:            detail.Stage,
			BusinessType:     detail.State.BusinessInfo.BusinessType,
			TeamSize:         detail.State.BusinessInfo.TeamSize,
			BiggestChallenge: detail.State.BusinessInfo.BiggestChallenge,
			TimeWasters:      detail.State.BusinessInfo.TimeWasters,
			CurrentTools:     detail.State.BusinessInfo.CurrentTools,
			IdentifiedTask:   detail.State.IdentifiedTask,
			Tier:             detail.State.Tier,
			QuestionsAsked:   detail.State.QuestionsAsked,
			CalendlyShown:    detail.State.CalendlyShown,
			CreatedAt:        formatTimestamp(detail.CreatedAt),
			UpdatedAt:        formatTimestamp(detail.UpdatedAt),
		}
		if detail.State.Proposal != nil {
			result.Proposal = &ProposalSummary{
				AgentName:     detail.State.Proposal.AgentName,
				Description:   detail.State.Proposal.Description,
				TimeSaved:     detail.State.Proposal.TimeSaved,
				Integrations:  detail.State.Proposal.Integrations,
				SuccessMetric: detail.State.Proposal.SuccessMetric,
				DeliveryTime:  detail.State.Proposal.DeliveryTime,
			}
		}
		if detail.AbandonedAt != nil {
			result.AbandonedAt = formatTimestamp(*detail.AbandonedAt)
		}
		for _, message := range detail.Messages {
			result.Messages = append(result.Messages, ConversationTurn{
				Role:      message.Role,
				Content:   message.Content,
				CreatedAt: formatTimestamp(message.CreatedAt),
			})
		}

		return nil, result, nil
	}
}

// ListConversationsInput represents the MCP tool input for listing conversations.
type ListConversationsInput struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"page size, 1 to 100 (default 50)"`
	Offset int    `json:"offset,omitempty" jsonschema:"rows to skip before the page"`
	Source string `json:"source,omitempty" jsonschema:"restrict to one traffic source (widget, email, api)"`
	Filter string `json:"filter,omitempty" jsonschema:"AIP-160 filter, for example stage = \"complete\" AND calendly_shown = true"`
}

// ConversationOverview is one entry of the conversation listing result.
type ConversationOverview struct {
	ConversationID string `json:"conversation_id" jsonschema:"conversation identifier"`
	Source         string `json:"source" jsonschema:"traffic source"`
	Stage          string `json:"stage" jsonschema:"current discovery stage"`
	Tier           string `json:"tier,omitempty" jsonschema:"recommended pricing tier, once recommended"`
	MessageCount   int    `json:"message_count" jsonschema:"stored message count"`
	HasProposal    bool   `json:"has_proposal" jsonschema:"whether an MVP proposal was generated"`
	CalendlyShown  bool   `json:"calendly_shown" jsonschema:"whether the demo booking link was shown"`
	CreatedAt      string `json:"created_at" jsonschema:"RFC3339 timestamp when the conversation started"`
	UpdatedAt      string `json:"updated_at" jsonschema:"RFC3339 timestamp of the last activity"`
}

// ListConversationsResult represents the MCP tool output for listing conversations.
type ListConversationsResult struct {
	Conversations []ConversationOverview `json:"conversations" jsonschema:"conversation summaries, newest first"`
	Total         int                    `json:"total" jsonschema:"total rows matching the filter"`
	Limit         int                    `json:"limit" jsonschema:"page size applied"`
	Offset        int                    `json:"offset" jsonschema:"rows skipped"`
}

// ListConversationsTool defines the MCP tool schema for listing conversations.
func ListConversationsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_conversations",
		Description: "Lists conversation summaries for review. Requires the server to be configured with an admin token.",
	}
}

// ListConversationsHandler executes a conversation list request.
func ListConversationsHandler(client ConversationAPI) mcp.ToolHandlerFor[ListConversationsInput, ListConversationsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListConversationsInput) (*mcp.CallToolResult, ListConversationsResult, error) {
		if client == nil {
			return nil, ListConversationsResult{}, fmt.Errorf("discovery client is not configured")
		}

		page, err := client.Conversations(ctx, ListQuery{
			Limit:  input.Limit,
			Offset: input.Offset,
			Source: input.Source,
			Filter: input.Filter,
		})
		if err != nil {
			return nil, ListConversationsResult{}, fmt.Errorf("conversation list failed: %w", err)
		}

		result := ListConversationsResult{
			Total:  page.Total,
			Limit:  page.Limit,
			Offset: page.Offset,
		}
		for _, summary := range page.Conversations {
			result.Conversations = append(result.Conversations, ConversationOverview{
				ConversationID: summary.ConversationID,
				Source:         summary.Source,
				Stage:          summary.Stage,
				Tier:           summary.Tier,
				MessageCount:   summary.MessageCount,
				HasProposal:    summary.HasProposal,
				CalendlyShown:  summary.CalendlyShown,
				CreatedAt:      formatTimestamp(summary.CreatedAt),
				UpdatedAt:      formatTimestamp(summary.UpdatedAt),
			})
		}

		return nil, result, nil
	}
}

// formatTimestamp renders an API timestamp for MCP clients.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
