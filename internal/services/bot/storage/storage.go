// Package storage defines the persistence records and store contracts for
// the discovery service.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a record already exists under the same key.
var ErrConflict = errors.New("record conflict")

// ConversationRecord stores one persisted discovery conversation.
type ConversationRecord struct {
	ID     string
	Source string
	Locale string
	Stage  string

	// BusinessInfo holds the JSON-encoded extraction snapshot.
	BusinessInfo   string
	IdentifiedTask string
	// Proposal holds the JSON-encoded proposal, empty until one is pitched.
	Proposal string
	Tier     string

	QuestionsAsked int
	CalendlyShown  bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	AbandonedAt *time.Time
}

// ConversationSummaryRecord is one row of the operator conversation list.
type ConversationSummaryRecord struct {
	ID            string
	Source        string
	Stage         string
	Tier          string
	CalendlyShown bool
	HasProposal   bool
	MessageCount  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ConversationSummaryPage is a paged set of conversation summaries.
type ConversationSummaryPage struct {
	Conversations []ConversationSummaryRecord
	Total         int
}

// ListConversationsInput narrows and pages the conversation list.
//
// Where carries a SQL fragment produced by the filter translator over
// whitelisted columns only; it must never be built from raw user input.
type ListConversationsInput struct {
	Limit       int
	Offset      int
	Source      string
	Where       string
	WhereParams []any
}

// DayCounts aggregates one UTC day of conversation activity.
type DayCounts struct {
	Started     int
	Completed   int
	DemosBooked int
}

// MessageRecord stores one transcript turn.
type MessageRecord struct {
	ID             int64
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// LeadRecord stores one qualified lead keyed by its conversation.
type LeadRecord struct {
	ConversationID string
	BusinessName   string
	// ContactEmail stays empty until an operator fills it in.
	ContactEmail string
	// Proposal holds the JSON-encoded proposal the lead saw.
	Proposal       string
	Tier           string
	CalendlyBooked bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LeadPage is a paged set of leads.
type LeadPage struct {
	Leads []LeadRecord
	Total int
}

// RollupRecord stores one aggregated day of conversation metrics.
type RollupRecord struct {
	// Day is the UTC day in YYYY-MM-DD form.
	Day                    string
	ConversationsStarted   int
	ConversationsCompleted int
	DemosBooked            int
	ComputedAt             time.Time
}

// ConversationStore persists conversation records.
type ConversationStore interface {
	CreateConversation(ctx context.Context, record ConversationRecord) error
	GetConversation(ctx context.Context, conversationID string) (ConversationRecord, error)
	UpdateConversation(ctx context.Context, record ConversationRecord) error
	ListConversations(ctx context.Context, input ListConversationsInput) (ConversationSummaryPage, error)
	// MarkAbandoned closes conversations idle since before the cutoff and
	// returns how many rows it touched. Completed and already-marked rows
	// are skipped.
	MarkAbandoned(ctx context.Context, idleSince time.Time, abandonedAt time.Time) (int, error)
	ConversationDayCounts(ctx context.Context, from time.Time, to time.Time) (DayCounts, error)
}

// MessageStore persists transcript messages.
type MessageStore interface {
	AppendMessage(ctx context.Context, record MessageRecord) error
	ListMessages(ctx context.Context, conversationID string) ([]MessageRecord, error)
}

// LeadStore persists qualified leads.
type LeadStore interface {
	UpsertLead(ctx context.Context, record LeadRecord) error
	GetLead(ctx context.Context, conversationID string) (LeadRecord, error)
	ListLeads(ctx context.Context, limit int, offset int) (LeadPage, error)
}

// RollupStore persists daily metric rollups.
type RollupStore interface {
	UpsertRollup(ctx context.Context, record RollupRecord) error
	GetRollup(ctx context.Context, day string) (RollupRecord, error)
}
