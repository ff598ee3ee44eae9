// Package agent implements the scripted sales-discovery dialogue. A
// conversation walks a fixed stage ladder, gathering business context,
// pitching an MVP agent build and a partnership tier, and closing on a
// demo booking link.
//
// The engine holds no conversation state of its own: every turn rehydrates
// from the persisted conversation and returns the mutated aggregate for the
// caller to save.
package agent

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
	platformi18n "github.com/instaagents/discovery/internal/platform/i18n"
	"github.com/instaagents/discovery/internal/platform/id"
)

// Stage identifies a step of the scripted discovery flow.
type Stage string

const (
	// StageStart marks a conversation that has not produced a turn yet.
	StageStart Stage = "start"
	// StageUnderstand gathers business context with scripted questions.
	StageUnderstand Stage = "understand"
	// StageIdentify asks which single task to automate.
	StageIdentify Stage = "identify"
	// StageScope collects process details for the identified task.
	StageScope Stage = "scope"
	// StagePropose pitches the MVP agent proposal.
	StagePropose Stage = "propose"
	// StageRecommend pitches the partnership tier.
	StageRecommend Stage = "recommend"
	// StageBook drives the visitor to the demo booking link.
	StageBook Stage = "book"
	// StageComplete marks a finished conversation.
	StageComplete Stage = "complete"
)

// Source identifies where a conversation originated.
type Source string

const (
	// SourceWidget marks conversations started from the embedded widget.
	SourceWidget Source = "widget"
	// SourceEmail marks conversations started from an email campaign.
	SourceEmail Source = "email"
	// SourceAPI marks conversations started through the plain API.
	SourceAPI Source = "api"
)

// Tier identifies a partnership pricing tier.
type Tier string

const (
	// TierStarter covers one AI agent system.
	TierStarter Tier = "starter"
	// TierGrowth covers up to three concurrent AI systems.
	TierGrowth Tier = "growth"
	// TierEnterprise covers unlimited concurrent systems.
	TierEnterprise Tier = "enterprise"
)

// Role identifies who authored a transcript message.
type Role string

const (
	// RoleHuman marks visitor messages.
	RoleHuman Role = "human"
	// RoleAssistant marks bot messages.
	RoleAssistant Role = "assistant"
)

// MaxMessageRunes bounds a single visitor message.
const MaxMessageRunes = 4000

// DefaultDeliveryWindow is the delivery estimate pitched with every proposal.
const DefaultDeliveryWindow = "2-3 weeks"

var (
	// ErrEmptyConversationID indicates a missing conversation ID.
	ErrEmptyConversationID = apperrors.New(apperrors.CodeConversationIDEmpty, "conversation id is required")
	// ErrEmptyMessage indicates a missing visitor message.
	ErrEmptyMessage = apperrors.New(apperrors.CodeConversationMessageEmpty, "message is required")
	// ErrInvalidSource indicates an unknown conversation source.
	ErrInvalidSource = apperrors.New(apperrors.CodeConversationInvalidSource, "conversation source is invalid")
	// ErrConversationAbandoned indicates the conversation was closed by the
	// inactivity sweep and no longer accepts turns.
	ErrConversationAbandoned = apperrors.New(apperrors.CodeConversationAbandoned, "conversation was abandoned after inactivity")
)

// BusinessInfo holds facts extracted from the visitor's answers.
type BusinessInfo struct {
	BusinessType     string   `json:"business_type"`
	TeamSize         int      `json:"team_size"`
	BiggestChallenge string   `json:"biggest_challenge"`
	TimeWasters      []string `json:"time_wasters"`
	CurrentTools     []string `json:"current_tools"`
}

// Proposal is the MVP agent build pitched to the visitor.
type Proposal struct {
	AgentName     string   `json:"agent_name"`
	Description   string   `json:"description"`
	TimeSaved     string   `json:"time_saved"`
	Integrations  []string `json:"integrations"`
	SuccessMetric string   `json:"success_metric"`
	DeliveryTime  string   `json:"delivery_time"`
}

// Message is one transcript turn.
type Message struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Conversation is the discovery dialogue aggregate.
type Conversation struct {
	ID     string
	Source Source
	// Locale is the catalog locale the bot replies in. It is fixed at
	// creation time.
	Locale string
	Stage  Stage

	BusinessInfo   BusinessInfo
	IdentifiedTask string
	Proposal       *Proposal
	Tier           Tier

	QuestionsAsked int
	CalendlyShown  bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	AbandonedAt *time.Time

	Messages []Message
}

// TierPrices holds the monthly price in whole dollars for each tier.
type TierPrices struct {
	Starter    int
	Growth     int
	Enterprise int
}

// DefaultTierPrices returns the published partnership prices.
func DefaultTierPrices() TierPrices {
	return TierPrices{Starter: 1250, Growth: 2500, Enterprise: 5000}
}

// For returns the monthly price for a tier.
func (p TierPrices) For(tier Tier) int {
	switch tier {
	case TierGrowth:
		return p.Growth
	case TierEnterprise:
		return p.Enterprise
	default:
		return p.Starter
	}
}

// NewConversationInput carries creation-time conversation attributes.
type NewConversationInput struct {
	Source Source
	Locale string
}

// NewConversation builds a fresh conversation at the start stage with a
// generated ID. A blank source defaults to the API source; the locale is
// coerced onto a supported catalog locale.
func NewConversation(input NewConversationInput, now func() time.Time, idGenerator func() (string, error)) (Conversation, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	source, err := NormalizeSource(input.Source)
	if err != nil {
		return Conversation{}, err
	}

	conversationID, err := idGenerator()
	if err != nil {
		return Conversation{}, fmt.Errorf("generate conversation id: %w", err)
	}

	createdAt := now().UTC()
	return Conversation{
		ID:        conversationID,
		Source:    source,
		Locale:    platformi18n.NormalizeLocale(input.Locale),
		Stage:     StageStart,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// NormalizeSource coerces a source value, defaulting blanks to the API
// source and rejecting unknown values.
func NormalizeSource(source Source) (Source, error) {
	trimmed := Source(strings.ToLower(strings.TrimSpace(string(source))))
	switch trimmed {
	case "":
		return SourceAPI, nil
	case SourceWidget, SourceEmail, SourceAPI:
		return trimmed, nil
	default:
		return "", ErrInvalidSource
	}
}

// NormalizeVisitorMessage trims and bounds one visitor message.
func NormalizeVisitorMessage(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageRunes {
		return "", apperrors.WithMetadata(
			apperrors.CodeConversationMessageLong,
			fmt.Sprintf("message exceeds %d runes", MaxMessageRunes),
			map[string]string{"MaxRunes": strconv.Itoa(MaxMessageRunes)},
		)
	}
	return trimmed, nil
}

// StageFromLabel parses a stored stage label.
func StageFromLabel(value string) (Stage, error) {
	trimmed := Stage(strings.ToLower(strings.TrimSpace(value)))
	switch trimmed {
	case StageStart, StageUnderstand, StageIdentify, StageScope,
		StagePropose, StageRecommend, StageBook, StageComplete:
		return trimmed, nil
	default:
		return "", apperrors.WithMetadata(
			apperrors.CodeConversationInvalidStage,
			fmt.Sprintf("unknown conversation stage: %s", value),
			map[string]string{"Stage": strings.TrimSpace(value)},
		)
	}
}

// TierFromLabel parses a stored tier label. Blank values stay blank so an
// unpitched conversation round-trips.
func TierFromLabel(value string) (Tier, error) {
	trimmed := Tier(strings.ToLower(strings.TrimSpace(value)))
	switch trimmed {
	case "":
		return "", nil
	case TierStarter, TierGrowth, TierEnterprise:
		return trimmed, nil
	default:
		return "", apperrors.WithMetadata(
			apperrors.CodeProposalInvalidTier,
			fmt.Sprintf("unknown partnership tier: %s", value),
			map[string]string{"Tier": strings.TrimSpace(value)},
		)
	}
}

// RoleFromLabel parses a stored transcript role label.
func RoleFromLabel(value string) (Role, error) {
	trimmed := Role(strings.ToLower(strings.TrimSpace(value)))
	switch trimmed {
	case RoleHuman, RoleAssistant:
		return trimmed, nil
	default:
		return "", fmt.Errorf("unknown message role: %s", value)
	}
}

// advanceStage validates a stage move and applies it. Transitions only move
// forward along the script; understand may repeat while questions remain and
// complete absorbs further turns.
func advanceStage(conv Conversation, target Stage) (Conversation, error) {
	if !isStageTransitionAllowed(conv.Stage, target) {
		fromStage := string(conv.Stage)
		toStage := string(target)
		return Conversation{}, apperrors.WithMetadata(
			apperrors.CodeConversationStageSkipped,
			fmt.Sprintf("conversation stage transition not allowed: %s -> %s", fromStage, toStage),
			map[string]string{"FromStage": fromStage, "ToStage": toStage},
		)
	}
	conv.Stage = target
	return conv, nil
}

// isStageTransitionAllowed reports whether a stage move follows the script.
func isStageTransitionAllowed(from, to Stage) bool {
	switch from {
	case StageStart:
		return to == StageUnderstand
	case StageUnderstand:
		return to == StageUnderstand || to == StageIdentify
	case StageIdentify:
		return to == StageScope
	case StageScope:
		return to == StagePropose
	case StagePropose:
		return to == StageRecommend
	case StageRecommend:
		return to == StageBook || to == StageComplete
	case StageBook:
		return to == StageComplete
	case StageComplete:
		return to == StageComplete
	default:
		return false
	}
}
