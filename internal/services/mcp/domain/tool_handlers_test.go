package domain

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/instaagents/discovery/internal/services/bot/agent"
)

type fakeDiscoveryAPI struct {
	chatResp ChatResponse
	chatErr  error
	chatReqs []ChatRequest

	detail    ConversationDetail
	detailErr error
	detailIDs []string

	page    ConversationPage
	pageErr error
	queries []ListQuery
}

func (f *fakeDiscoveryAPI) SendChat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	f.chatReqs = append(f.chatReqs, req)
	if f.chatErr != nil {
		return ChatResponse{}, f.chatErr
	}
	return f.chatResp, nil
}

func (f *fakeDiscoveryAPI) Conversation(_ context.Context, conversationID string) (ConversationDetail, error) {
	f.detailIDs = append(f.detailIDs, conversationID)
	if f.detailErr != nil {
		return ConversationDetail{}, f.detailErr
	}
	return f.detail, nil
}

func (f *fakeDiscoveryAPI) Conversations(_ context.Context, query ListQuery) (ConversationPage, error) {
	f.queries = append(f.queries, query)
	if f.pageErr != nil {
		return ConversationPage{}, f.pageErr
	}
	return f.page, nil
}

func TestStartConversationHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := &fakeDiscoveryAPI{
			chatResp: ChatResponse{
				ConversationID: "conv-1",
				Response:       "What does your business do and what's your biggest operational challenge?",
				Stage:          "understand",
			},
		}
		handler := StartConversationHandler(client)
		_, result, err := handler(context.Background(), nil, StartConversationInput{
			Message: "hi there",
			Source:  "api",
			Locale:  "en-US",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.ConversationID != "conv-1" {
			t.Errorf("expected conversation id %q, got %q", "conv-1", result.ConversationID)
		}
		if result.Stage != "understand" {
			t.Errorf("expected stage understand, got %q", result.Stage)
		}
		if len(client.chatReqs) != 1 {
			t.Fatalf("expected 1 chat request, got %d", len(client.chatReqs))
		}
		req := client.chatReqs[0]
		if req.ConversationID != "" {
			t.Errorf("expected empty conversation id on start, got %q", req.ConversationID)
		}
		if req.Message != "hi there" || req.Source != "api" || req.Locale != "en-US" {
			t.Errorf("unexpected chat request: %+v", req)
		}
	})

	t.Run("empty message", func(t *testing.T) {
		handler := StartConversationHandler(&fakeDiscoveryAPI{})
		_, _, err := handler(context.Background(), nil, StartConversationInput{Message: "   "})
		if err == nil {
			t.Fatal("expected error for empty message")
		}
	})

	t.Run("api error", func(t *testing.T) {
		client := &fakeDiscoveryAPI{chatErr: fmt.Errorf("connection refused")}
		handler := StartConversationHandler(client)
		_, _, err := handler(context.Background(), nil, StartConversationInput{Message: "hi"})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("nil client", func(t *testing.T) {
		handler := StartConversationHandler(nil)
		_, _, err := handler(context.Background(), nil, StartConversationInput{Message: "hi"})
		if err == nil {
			t.Fatal("expected error for nil client")
		}
	})
}

func TestSendMessageHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := &fakeDiscoveryAPI{
			chatResp: ChatResponse{
				ConversationID: "conv-1",
				Response:       "Perfect! The next step is to book a 30-minute demo.",
				Stage:          "complete",
				CalendlyShown:  true,
			},
		}
		handler := SendMessageHandler(client)
		_, result, err := handler(context.Background(), nil, SendMessageInput{
			ConversationID: "conv-1",
			Message:        "sounds great",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.CalendlyShown {
			t.Error("expected calendly_shown to be true")
		}
		if len(client.chatReqs) != 1 {
			t.Fatalf("expected 1 chat request, got %d", len(client.chatReqs))
		}
		if client.chatReqs[0].ConversationID != "conv-1" {
			t.Errorf("expected conversation id conv-1, got %q", client.chatReqs[0].ConversationID)
		}
	})

	t.Run("missing conversation_id", func(t *testing.T) {
		handler := SendMessageHandler(&fakeDiscoveryAPI{})
		_, _, err := handler(context.Background(), nil, SendMessageInput{Message: "hi"})
		if err == nil {
			t.Fatal("expected error for missing conversation_id")
		}
	})

	t.Run("missing message", func(t *testing.T) {
		handler := SendMessageHandler(&fakeDiscoveryAPI{})
		_, _, err := handler(context.Background(), nil, SendMessageInput{ConversationID: "conv-1"})
		if err == nil {
			t.Fatal("expected error for missing message")
		}
	})

	t.Run("api error", func(t *testing.T) {
		client := &fakeDiscoveryAPI{chatErr: fmt.Errorf("boom")}
		handler := SendMessageHandler(client)
		_, _, err := handler(context.Background(), nil, SendMessageInput{ConversationID: "conv-1", Message: "hi"})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestGetConversationHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		updated := created.Add(10 * time.Minute)
		client := &fakeDiscoveryAPI{
			detail: ConversationDetail{
				ConversationID: "conv-1",
				Source:         "widget",
				Locale:         "en-US",
				Stage:          "recommend",
				State: ConversationState{
					BusinessInfo: agent.BusinessInfo{
						BusinessType:     "dental clinic",
						TeamSize:         8,
						BiggestChallenge: "missed appointment calls",
						TimeWasters:      []string{"scheduling"},
					},
					IdentifiedTask: "appointment reminders",
					Proposal: &agent.Proposal{
						AgentName:    "Appointment Recovery Agent",
						Description:  "Chases no-shows automatically",
						TimeSaved:    "10 hours/week",
						Integrations: []string{"Calendly", "Twilio"},
					},
					Tier:           "growth",
					QuestionsAsked: 3,
				},
				Messages: []ConversationMessage{
					{ID: 1, Role: "visitor", Content: "hi", CreatedAt: created},
					{ID: 2, Role: "assistant", Content: "What does your business do?", CreatedAt: created},
				},
				CreatedAt: created,
				UpdatedAt: updated,
			},
		}
		handler := GetConversationHandler(client)
		_, result, err := handler(context.Background(), nil, GetConversationInput{ConversationID: "conv-1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.BusinessType != "dental clinic" {
			t.Errorf("expected business type to carry over, got %q", result.BusinessType)
		}
		if result.Proposal == nil || result.Proposal.AgentName != "Appointment Recovery Agent" {
			t.Errorf("expected proposal to carry over, got %+v", result.Proposal)
		}
		if result.Tier != "growth" {
			t.Errorf("expected tier growth, got %q", result.Tier)
		}
		if len(result.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(result.Messages))
		}
		if result.Messages[0].Role != "visitor" {
			t.Errorf("expected first message from visitor, got %q", result.Messages[0].Role)
		}
		if result.CreatedAt != "2026-03-14T09:00:00Z" {
			t.Errorf("expected RFC3339 created_at, got %q", result.CreatedAt)
		}
		if result.AbandonedAt != "" {
			t.Errorf("expected empty abandoned_at, got %q", result.AbandonedAt)
		}
		if len(client.detailIDs) != 1 || client.detailIDs[0] != "conv-1" {
			t.Errorf("expected one fetch for conv-1, got %v", client.detailIDs)
		}
	})

	t.Run("abandoned conversation", func(t *testing.T) {
		abandoned := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
		client := &fakeDiscoveryAPI{
			detail: ConversationDetail{
				ConversationID: "conv-2",
				Stage:          "understand",
				AbandonedAt:    &abandoned,
			},
		}
		handler := GetConversationHandler(client)
		_, result, err := handler(context.Background(), nil, GetConversationInput{ConversationID: "conv-2"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.AbandonedAt != "2026-03-14T10:00:00Z" {
			t.Errorf("expected abandoned_at timestamp, got %q", result.AbandonedAt)
		}
	})

	t.Run("missing conversation_id", func(t *testing.T) {
		handler := GetConversationHandler(&fakeDiscoveryAPI{})
		_, _, err := handler(context.Background(), nil, GetConversationInput{})
		if err == nil {
			t.Fatal("expected error for missing conversation_id")
		}
	})

	t.Run("api error", func(t *testing.T) {
		client := &fakeDiscoveryAPI{detailErr: fmt.Errorf("not found")}
		handler := GetConversationHandler(client)
		_, _, err := handler(context.Background(), nil, GetConversationInput{ConversationID: "conv-9"})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestListConversationsHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		client := &fakeDiscoveryAPI{
			page: ConversationPage{
				Conversations: []ConversationSummary{
					{
						ConversationID: "conv-1",
						Source:         "widget",
						Stage:          "complete",
						Tier:           "growth",
						MessageCount:   12,
						HasProposal:    true,
						CalendlyShown:  true,
						CreatedAt:      created,
						UpdatedAt:      created,
					},
				},
				Total:  41,
				Limit:  25,
				Offset: 0,
			},
		}
		handler := ListConversationsHandler(client)
		_, result, err := handler(context.Background(), nil, ListConversationsInput{
			Limit:  25,
			Source: "widget",
			Filter: `stage = "complete"`,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Total != 41 {
			t.Errorf("expected total 41, got %d", result.Total)
		}
		if len(result.Conversations) != 1 {
			t.Fatalf("expected 1 conversation, got %d", len(result.Conversations))
		}
		if !result.Conversations[0].HasProposal {
			t.Error("expected has_proposal to carry over")
		}
		if len(client.queries) != 1 {
			t.Fatalf("expected 1 list query, got %d", len(client.queries))
		}
		query := client.queries[0]
		if query.Limit != 25 || query.Source != "widget" || query.Filter != `stage = "complete"` {
			t.Errorf("unexpected list query: %+v", query)
		}
	})

	t.Run("api error", func(t *testing.T) {
		client := &fakeDiscoveryAPI{pageErr: fmt.Errorf("admin token is required to list conversations")}
		handler := ListConversationsHandler(client)
		_, _, err := handler(context.Background(), nil, ListConversationsInput{})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}
