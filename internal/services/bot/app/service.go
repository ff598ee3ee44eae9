package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
	"github.com/instaagents/discovery/internal/services/bot/agent"
	"github.com/instaagents/discovery/internal/services/bot/filter"
	"github.com/instaagents/discovery/internal/services/bot/metrics"
	"github.com/instaagents/discovery/internal/services/bot/storage"
)

const (
	defaultListLimit = 50
	maxAdminListSize = 100

	fallbackBusinessName = "Unknown"
)

// Stores groups the persistence contracts the chat service depends on.
type Stores struct {
	Conversations storage.ConversationStore
	Messages      storage.MessageStore
	Leads         storage.LeadStore
}

// chatService orchestrates one discovery turn end to end: rehydrate the
// conversation, run the dialogue engine, persist both transcript turns,
// and track the funnel counters and lead records.
type chatService struct {
	engine *agent.Engine
	stores Stores
	now    func() time.Time
}

func newChatService(engine *agent.Engine, stores Stores) *chatService {
	return &chatService{
		engine: engine,
		stores: stores,
		now:    time.Now,
	}
}

// ChatInput is one visitor turn request.
type ChatInput struct {
	ConversationID string
	Message        string
	Source         string
	Locale         string
}

// ChatResult is the bot's side of the turn.
type ChatResult struct {
	ConversationID string
	Response       string
	Stage          agent.Stage
	CalendlyShown  bool
}

// HandleChat runs one turn. A blank conversation id starts a fresh
// conversation, which is persisted and counted before the engine runs so
// the funnel sees every visitor who opened a dialogue. The completion
// counter fires on the turn that crosses into the proposal stage; the demo
// counter and the lead snapshot fire on the turn that first shows the
// booking link.
func (s *chatService) HandleChat(ctx context.Context, input ChatInput) (ChatResult, error) {
	if s.engine == nil {
		return ChatResult{}, apperrors.New(apperrors.CodeProviderUnavailable, "dialogue engine is not initialized")
	}
	// Reject unusable messages before a conversation row exists. Provider
	// failures later in the turn still leave the started row behind.
	if _, err := agent.NormalizeVisitorMessage(input.Message); err != nil {
		return ChatResult{}, err
	}

	timer := prometheus.NewTimer(metrics.ResponseTime)
	defer timer.ObserveDuration()

	conv, err := s.loadOrCreateConversation(ctx, input)
	if err != nil {
		return ChatResult{}, err
	}

	previousStage := conv.Stage
	previouslyShown := conv.CalendlyShown

	conv, reply, err := s.engine.Advance(ctx, conv, input.Message)
	if err != nil {
		return ChatResult{}, err
	}

	if err := s.stores.Conversations.UpdateConversation(ctx, conversationRecord(conv)); err != nil {
		return ChatResult{}, wrapStoreError("update conversation", err)
	}
	for _, msg := range conv.Messages[len(conv.Messages)-2:] {
		err := s.stores.Messages.AppendMessage(ctx, storage.MessageRecord{
			ConversationID: conv.ID,
			Role:           string(msg.Role),
			Content:        msg.Content,
			CreatedAt:      msg.CreatedAt,
		})
		if err != nil {
			return ChatResult{}, wrapStoreError("append message", err)
		}
	}

	if conv.Stage == agent.StagePropose && previousStage != agent.StagePropose {
		metrics.ConversationsCompleted.Inc()
	}
	if conv.CalendlyShown && !previouslyShown {
		metrics.DemosBooked.Inc()
		if err := s.recordLead(ctx, conv); err != nil {
			// The visitor already has the booking link; losing the lead
			// row must not fail the turn.
			log.Printf("record lead for conversation %s: %v", conv.ID, err)
		}
	}

	return ChatResult{
		ConversationID: conv.ID,
		Response:       reply,
		Stage:          conv.Stage,
		CalendlyShown:  conv.CalendlyShown,
	}, nil
}

// loadOrCreateConversation resolves the conversation a turn belongs to. New
// conversations are persisted immediately so an engine failure still leaves
// the started row behind, matching the funnel counter.
func (s *chatService) loadOrCreateConversation(ctx context.Context, input ChatInput) (agent.Conversation, error) {
	conversationID := strings.TrimSpace(input.ConversationID)
	if conversationID == "" {
		conv, err := agent.NewConversation(agent.NewConversationInput{
			Source: agent.Source(input.Source),
			Locale: input.Locale,
		}, s.now, nil)
		if err != nil {
			return agent.Conversation{}, err
		}
		if err := s.stores.Conversations.CreateConversation(ctx, conversationRecord(conv)); err != nil {
			return agent.Conversation{}, wrapStoreError("create conversation", err)
		}
		metrics.ConversationsStarted.Inc()
		return conv, nil
	}

	record, err := s.stores.Conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return agent.Conversation{}, wrapStoreError("load conversation", err)
	}
	conv, err := conversationFromRecord(record)
	if err != nil {
		return agent.Conversation{}, err
	}

	messageRecords, err := s.stores.Messages.ListMessages(ctx, conversationID)
	if err != nil {
		return agent.Conversation{}, wrapStoreError("load messages", err)
	}
	for _, msg := range messageRecords {
		role, err := agent.RoleFromLabel(msg.Role)
		if err != nil {
			return agent.Conversation{}, fmt.Errorf("load messages: %w", err)
		}
		conv.Messages = append(conv.Messages, agent.Message{
			Role:      role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	return conv, nil
}

// recordLead snapshots the qualified conversation as a lead row. The
// business name falls back to a placeholder when extraction never produced
// one; the booked flag stays false until an operator confirms the demo.
func (s *chatService) recordLead(ctx context.Context, conv agent.Conversation) error {
	businessName := strings.TrimSpace(conv.BusinessInfo.BusinessType)
	if businessName == "" {
		businessName = fallbackBusinessName
	}

	record := storage.LeadRecord{
		ConversationID: conv.ID,
		BusinessName:   businessName,
		Tier:           string(conv.Tier),
		CreatedAt:      conv.UpdatedAt,
		UpdatedAt:      conv.UpdatedAt,
	}
	if conv.Proposal != nil {
		record.Proposal = encodeJSON(conv.Proposal)
	}
	return s.stores.Leads.UpsertLead(ctx, record)
}

// GetConversation returns the conversation state plus its full transcript.
func (s *chatService) GetConversation(ctx context.Context, conversationID string) (agent.Conversation, []storage.MessageRecord, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return agent.Conversation{}, nil, agent.ErrEmptyConversationID
	}

	record, err := s.stores.Conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return agent.Conversation{}, nil, wrapStoreError("load conversation", err)
	}
	conv, err := conversationFromRecord(record)
	if err != nil {
		return agent.Conversation{}, nil, err
	}

	messageRecords, err := s.stores.Messages.ListMessages(ctx, conversationID)
	if err != nil {
		return agent.Conversation{}, nil, wrapStoreError("load messages", err)
	}
	return conv, messageRecords, nil
}

// ListConversationsInput narrows and pages the operator conversation list.
type ListConversationsInput struct {
	Limit  int
	Offset int
	Source string
	Filter string
}

// ListConversations pages conversation summaries for operators. The filter
// expression, when present, is translated into a guarded SQL condition.
func (s *chatService) ListConversations(ctx context.Context, input ListConversationsInput) (storage.ConversationSummaryPage, error) {
	limit, offset, err := normalizePage(input.Limit, input.Offset)
	if err != nil {
		return storage.ConversationSummaryPage{}, err
	}

	source := strings.TrimSpace(input.Source)
	if source != "" {
		normalized, err := agent.NormalizeSource(agent.Source(source))
		if err != nil {
			return storage.ConversationSummaryPage{}, err
		}
		source = string(normalized)
	}

	condition, err := filter.ParseConversationFilter(input.Filter)
	if err != nil {
		return storage.ConversationSummaryPage{}, err
	}

	page, err := s.stores.Conversations.ListConversations(ctx, storage.ListConversationsInput{
		Limit:       limit,
		Offset:      offset,
		Source:      source,
		Where:       condition.Clause,
		WhereParams: condition.Params,
	})
	if err != nil {
		return storage.ConversationSummaryPage{}, wrapStoreError("list conversations", err)
	}
	return page, nil
}

// ListLeads pages lead rows for operators, newest first.
func (s *chatService) ListLeads(ctx context.Context, limit int, offset int) (storage.LeadPage, error) {
	limit, offset, err := normalizePage(limit, offset)
	if err != nil {
		return storage.LeadPage{}, err
	}

	page, err := s.stores.Leads.ListLeads(ctx, limit, offset)
	if err != nil {
		return storage.LeadPage{}, wrapStoreError("list leads", err)
	}
	return page, nil
}

// normalizePage applies the admin list paging defaults: 50 rows unless
// asked otherwise, never more than 100, negative offsets clamp to zero.
func normalizePage(limit int, offset int) (int, int, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxAdminListSize {
		return 0, 0, apperrors.WithMetadata(
			apperrors.CodePageSizeInvalid,
			fmt.Sprintf("page size exceeds %d", maxAdminListSize),
			map[string]string{"Max": fmt.Sprintf("%d", maxAdminListSize)},
		)
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, nil
}

// conversationRecord flattens the aggregate for persistence. Extraction
// facts and the proposal travel as JSON columns.
func conversationRecord(conv agent.Conversation) storage.ConversationRecord {
	record := storage.ConversationRecord{
		ID:             conv.ID,
		Source:         string(conv.Source),
		Locale:         conv.Locale,
		Stage:          string(conv.Stage),
		BusinessInfo:   encodeJSON(conv.BusinessInfo),
		IdentifiedTask: conv.IdentifiedTask,
		Tier:           string(conv.Tier),
		QuestionsAsked: conv.QuestionsAsked,
		CalendlyShown:  conv.CalendlyShown,
		CreatedAt:      conv.CreatedAt,
		UpdatedAt:      conv.UpdatedAt,
		AbandonedAt:    conv.AbandonedAt,
	}
	if conv.Proposal != nil {
		record.Proposal = encodeJSON(conv.Proposal)
	}
	return record
}

// conversationFromRecord rebuilds the aggregate from its persisted form.
func conversationFromRecord(record storage.ConversationRecord) (agent.Conversation, error) {
	stage, err := agent.StageFromLabel(record.Stage)
	if err != nil {
		return agent.Conversation{}, err
	}
	source, err := agent.NormalizeSource(agent.Source(record.Source))
	if err != nil {
		return agent.Conversation{}, err
	}
	tier, err := agent.TierFromLabel(record.Tier)
	if err != nil {
		return agent.Conversation{}, err
	}

	conv := agent.Conversation{
		ID:             record.ID,
		Source:         source,
		Locale:         record.Locale,
		Stage:          stage,
		IdentifiedTask: record.IdentifiedTask,
		Tier:           tier,
		QuestionsAsked: record.QuestionsAsked,
		CalendlyShown:  record.CalendlyShown,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
		AbandonedAt:    record.AbandonedAt,
	}
	if strings.TrimSpace(record.BusinessInfo) != "" {
		if err := json.Unmarshal([]byte(record.BusinessInfo), &conv.BusinessInfo); err != nil {
			return agent.Conversation{}, fmt.Errorf("decode business info: %w", err)
		}
	}
	if strings.TrimSpace(record.Proposal) != "" {
		var proposal agent.Proposal
		if err := json.Unmarshal([]byte(record.Proposal), &proposal); err != nil {
			return agent.Conversation{}, fmt.Errorf("decode proposal: %w", err)
		}
		conv.Proposal = &proposal
	}
	return conv, nil
}

// wrapStoreError lifts storage sentinels onto domain codes so handlers map
// them to HTTP statuses uniformly.
func wrapStoreError(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeNotFound, op, err)
	}
	return apperrors.Wrap(apperrors.CodeStoreUnavailable, op, err)
}

func encodeJSON(v any) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		log.Printf("encode json column: %v", err)
		return ""
	}
	return string(encoded)
}
