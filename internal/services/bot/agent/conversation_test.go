package agent

import (
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
)

func TestNewConversationDefaults(t *testing.T) {
	conv, err := NewConversation(NewConversationInput{}, nil, nil)
	if err != nil {
		t.Fatalf("new conversation: %v", err)
	}
	if conv.ID == "" {
		t.Fatalf("expected generated id")
	}
	if conv.Source != SourceAPI {
		t.Fatalf("expected default source api, got %v", conv.Source)
	}
	if conv.Locale != "en-US" {
		t.Fatalf("expected default locale en-US, got %q", conv.Locale)
	}
	if conv.Stage != StageStart {
		t.Fatalf("expected start stage, got %v", conv.Stage)
	}
}

func TestNewConversationNormalizesInput(t *testing.T) {
	fixedTime := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)

	conv, err := NewConversation(NewConversationInput{
		Source: SourceWidget,
		Locale: "pt",
	}, func() time.Time { return fixedTime }, func() (string, error) {
		return "conv123", nil
	})
	if err != nil {
		t.Fatalf("new conversation: %v", err)
	}

	if conv.ID != "conv123" {
		t.Fatalf("expected id conv123, got %q", conv.ID)
	}
	if conv.Source != SourceWidget {
		t.Fatalf("expected widget source, got %v", conv.Source)
	}
	if conv.Locale != "pt-BR" {
		t.Fatalf("expected canonical locale pt-BR, got %q", conv.Locale)
	}
	if conv.QuestionsAsked != 0 {
		t.Fatalf("expected 0 questions asked, got %d", conv.QuestionsAsked)
	}
	if conv.CalendlyShown {
		t.Fatalf("expected calendly not shown")
	}
	if !conv.CreatedAt.Equal(fixedTime) || !conv.UpdatedAt.Equal(fixedTime) {
		t.Fatalf("expected timestamps to match fixed time")
	}
	if conv.AbandonedAt != nil {
		t.Fatalf("expected no abandoned timestamp")
	}
}

func TestNewConversationRejectsUnknownSource(t *testing.T) {
	_, err := NewConversation(NewConversationInput{Source: Source("carrier-pigeon")}, nil, nil)
	if !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected invalid source error, got %v", err)
	}
}

func TestNormalizeSource(t *testing.T) {
	tests := []struct {
		name    string
		source  Source
		want    Source
		wantErr bool
	}{
		{name: "empty defaults to api", source: "", want: SourceAPI},
		{name: "widget", source: SourceWidget, want: SourceWidget},
		{name: "email", source: SourceEmail, want: SourceEmail},
		{name: "api", source: SourceAPI, want: SourceAPI},
		{name: "mixed case", source: Source(" Widget "), want: SourceWidget},
		{name: "unknown", source: Source("fax"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSource(tt.source)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSource) {
					t.Fatalf("expected invalid source error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize source: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNormalizeVisitorMessage(t *testing.T) {
	got, err := NormalizeVisitorMessage("  we run a bakery  ")
	if err != nil {
		t.Fatalf("normalize message: %v", err)
	}
	if got != "we run a bakery" {
		t.Fatalf("expected trimmed message, got %q", got)
	}
}

func TestNormalizeVisitorMessageEmpty(t *testing.T) {
	_, err := NormalizeVisitorMessage("   \n\t ")
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected empty message error, got %v", err)
	}
}

func TestNormalizeVisitorMessageTooLong(t *testing.T) {
	_, err := NormalizeVisitorMessage(strings.Repeat("é", MaxMessageRunes+1))
	if apperrors.CodeOf(err) != apperrors.CodeConversationMessageLong {
		t.Fatalf("expected message too long code, got %v", err)
	}
}

func TestNormalizeVisitorMessageAtLimit(t *testing.T) {
	msg := strings.Repeat("é", MaxMessageRunes)
	got, err := NormalizeVisitorMessage(msg)
	if err != nil {
		t.Fatalf("normalize message at limit: %v", err)
	}
	if got != msg {
		t.Fatalf("expected message preserved at limit")
	}
}

func TestStageFromLabel(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		want    Stage
		wantErr bool
	}{
		{name: "start", label: "start", want: StageStart},
		{name: "uppercase", label: "UNDERSTAND", want: StageUnderstand},
		{name: "padded", label: " propose ", want: StagePropose},
		{name: "book", label: "book", want: StageBook},
		{name: "complete", label: "complete", want: StageComplete},
		{name: "unknown", label: "negotiate", wantErr: true},
		{name: "empty", label: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StageFromLabel(tt.label)
			if tt.wantErr {
				if apperrors.CodeOf(err) != apperrors.CodeConversationInvalidStage {
					t.Fatalf("expected invalid stage code, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("stage from label: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTierFromLabel(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		want    Tier
		wantErr bool
	}{
		{name: "empty is unset", label: "", want: Tier("")},
		{name: "starter", label: "starter", want: TierStarter},
		{name: "uppercase", label: "GROWTH", want: TierGrowth},
		{name: "padded", label: " enterprise ", want: TierEnterprise},
		{name: "unknown", label: "platinum", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TierFromLabel(tt.label)
			if tt.wantErr {
				if apperrors.CodeOf(err) != apperrors.CodeProposalInvalidTier {
					t.Fatalf("expected invalid tier code, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("tier from label: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRoleFromLabel(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		want    Role
		wantErr bool
	}{
		{name: "human", label: "human", want: RoleHuman},
		{name: "assistant", label: "ASSISTANT", want: RoleAssistant},
		{name: "unknown", label: "narrator", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RoleFromLabel(tt.label)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.label)
				}
				return
			}
			if err != nil {
				t.Fatalf("role from label: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAdvanceStageAllowed(t *testing.T) {
	tests := []struct {
		name string
		from Stage
		to   Stage
	}{
		{name: "start to understand", from: StageStart, to: StageUnderstand},
		{name: "understand holds", from: StageUnderstand, to: StageUnderstand},
		{name: "understand to identify", from: StageUnderstand, to: StageIdentify},
		{name: "identify to scope", from: StageIdentify, to: StageScope},
		{name: "scope to propose", from: StageScope, to: StagePropose},
		{name: "propose to recommend", from: StagePropose, to: StageRecommend},
		{name: "recommend to book", from: StageRecommend, to: StageBook},
		{name: "recommend to complete", from: StageRecommend, to: StageComplete},
		{name: "book to complete", from: StageBook, to: StageComplete},
		{name: "complete holds", from: StageComplete, to: StageComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := advanceStage(Conversation{Stage: tt.from}, tt.to)
			if err != nil {
				t.Fatalf("advance stage: %v", err)
			}
			if conv.Stage != tt.to {
				t.Fatalf("expected stage %v, got %v", tt.to, conv.Stage)
			}
		})
	}
}

func TestAdvanceStageSkippedRejected(t *testing.T) {
	tests := []struct {
		name string
		from Stage
		to   Stage
	}{
		{name: "start to scope", from: StageStart, to: StageScope},
		{name: "understand to propose", from: StageUnderstand, to: StagePropose},
		{name: "scope back to understand", from: StageScope, to: StageUnderstand},
		{name: "complete to start", from: StageComplete, to: StageStart},
		{name: "propose holds", from: StagePropose, to: StagePropose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := advanceStage(Conversation{Stage: tt.from}, tt.to)
			if apperrors.CodeOf(err) != apperrors.CodeConversationStageSkipped {
				t.Fatalf("expected stage skipped code, got %v", err)
			}
			var domainErr *apperrors.Error
			if !errors.As(err, &domainErr) {
				t.Fatalf("expected domain error, got %T", err)
			}
			if domainErr.Metadata["FromStage"] != string(tt.from) || domainErr.Metadata["ToStage"] != string(tt.to) {
				t.Fatalf("expected transition metadata, got %v", domainErr.Metadata)
			}
		})
	}
}

func TestTierPricesFor(t *testing.T) {
	prices := DefaultTierPrices()

	tests := []struct {
		name string
		tier Tier
		want int
	}{
		{name: "starter", tier: TierStarter, want: 1250},
		{name: "growth", tier: TierGrowth, want: 2500},
		{name: "enterprise", tier: TierEnterprise, want: 5000},
		{name: "unset falls back to starter", tier: Tier(""), want: 1250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := prices.For(tt.tier); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
