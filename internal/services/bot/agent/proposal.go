package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/instaagents/discovery/internal/services/bot/llm"
)

// generateProposal asks the model for an MVP proposal from the gathered
// context. A provider failure surfaces as an error; a reply that cannot be
// parsed falls back to the canned proposal.
func (e *Engine) generateProposal(ctx context.Context, conv Conversation) (Proposal, error) {
	reply, err := e.invoker.Invoke(ctx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: proposalPrompt(conv.BusinessInfo, conv.IdentifiedTask)}},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return Proposal{}, err
	}
	proposal, ok := parseProposal(reply)
	if !ok {
		return fallbackProposal(), nil
	}
	return proposal, nil
}

// parseProposal decodes a model reply into a Proposal, tolerating markdown
// code fences. The delivery window defaults when the model omits it.
func parseProposal(reply string) (Proposal, bool) {
	var proposal Proposal
	if err := json.Unmarshal([]byte(stripCodeFences(reply)), &proposal); err != nil {
		return Proposal{}, false
	}
	if strings.TrimSpace(proposal.AgentName) == "" {
		return Proposal{}, false
	}
	if strings.TrimSpace(proposal.DeliveryTime) == "" {
		proposal.DeliveryTime = DefaultDeliveryWindow
	}
	return proposal, true
}

// fallbackProposal is pitched when the model's proposal cannot be used.
func fallbackProposal() Proposal {
	return Proposal{
		AgentName:     "Process Automation Assistant",
		Description:   "Automates your most time-consuming task with AI-powered intelligence.",
		TimeSaved:     "10+ hours/week",
		Integrations:  []string{"Email", "Spreadsheets"},
		SuccessMetric: "90% reduction in manual processing time",
		DeliveryTime:  DefaultDeliveryWindow,
	}
}
