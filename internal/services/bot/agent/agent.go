package agent

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/message"

	platformi18n "github.com/instaagents/discovery/internal/platform/i18n"
	"github.com/instaagents/discovery/internal/services/bot/llm"
)

// DefaultCalendlyURL is the demo booking link pitched at the end of the flow.
const DefaultCalendlyURL = "https://calendly.com/justin-erezcapital/30min"

// Config tunes the dialogue engine.
type Config struct {
	CalendlyURL string
	MaxTokens   int
	Temperature float64
	Prices      TierPrices
}

// DefaultConfig returns the engine defaults used when fields are unset.
func DefaultConfig() Config {
	return Config{
		CalendlyURL: DefaultCalendlyURL,
		MaxTokens:   1000,
		Temperature: 0.7,
		Prices:      DefaultTierPrices(),
	}
}

// Engine drives one scripted discovery turn at a time.
type Engine struct {
	invoker llm.Invoker
	cfg     Config
	now     func() time.Time
}

// NewEngine builds an engine over the given model invoker. Zero config
// fields fall back to defaults.
func NewEngine(invoker llm.Invoker, cfg Config) *Engine {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.CalendlyURL) == "" {
		cfg.CalendlyURL = defaults.CalendlyURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.Prices == (TierPrices{}) {
		cfg.Prices = defaults.Prices
	}
	return &Engine{
		invoker: invoker,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Advance runs one dialogue turn: the visitor message is appended to the
// transcript, the current stage decides the reply, and the assistant reply
// is appended in turn. A turn crosses at most one stage boundary. The
// returned conversation replaces the stored one; on error nothing should be
// persisted.
func (e *Engine) Advance(ctx context.Context, conv Conversation, visitorMessage string) (Conversation, string, error) {
	content, err := NormalizeVisitorMessage(visitorMessage)
	if err != nil {
		return Conversation{}, "", err
	}
	if conv.AbandonedAt != nil {
		return Conversation{}, "", ErrConversationAbandoned
	}

	turnAt := e.now().UTC()
	conv.Messages = append(conv.Messages, Message{Role: RoleHuman, Content: content, CreatedAt: turnAt})

	printer := printerForLocale(conv.Locale)

	var reply string
	switch conv.Stage {
	case StageStart:
		conv, reply, err = e.handleStart(conv, printer)
	case StageUnderstand:
		conv, reply, err = e.handleUnderstand(ctx, conv, printer)
	case StageIdentify:
		conv, reply, err = e.handleIdentify(conv, content, printer)
	case StageScope:
		conv, reply, err = e.handleScope(ctx, conv, printer)
	case StagePropose:
		conv, reply, err = e.handlePropose(conv, printer)
	case StageRecommend, StageBook:
		conv, reply, err = e.handleRecommend(conv, printer)
	case StageComplete:
		reply = e.calendlyPrompt(printer)
	default:
		_, err = StageFromLabel(string(conv.Stage))
	}
	if err != nil {
		return Conversation{}, "", err
	}

	conv.UpdatedAt = turnAt
	conv.Messages = append(conv.Messages, Message{Role: RoleAssistant, Content: reply, CreatedAt: turnAt})
	return conv, reply, nil
}

// handleStart opens the dialogue: every new conversation begins with the
// first understand question.
func (e *Engine) handleStart(conv Conversation, printer *message.Printer) (Conversation, string, error) {
	conv, err := advanceStage(conv, StageUnderstand)
	if err != nil {
		return Conversation{}, "", err
	}
	conv.QuestionsAsked = 1
	return conv, printer.Sprintf("discovery.understand.q1"), nil
}

// handleUnderstand refreshes the extracted business facts, then either asks
// the next scripted question or crosses into identify with a model-composed
// question about the task to automate.
func (e *Engine) handleUnderstand(ctx context.Context, conv Conversation, printer *message.Printer) (Conversation, string, error) {
	conv.BusinessInfo = e.extractBusinessInfo(ctx, conv.Messages)

	if shouldAdvanceUnderstand(conv) {
		conv, err := advanceStage(conv, StageIdentify)
		if err != nil {
			return Conversation{}, "", err
		}
		reply, err := e.identifyQuestion(ctx, conv, printer)
		if err != nil {
			return Conversation{}, "", err
		}
		return conv, reply, nil
	}

	question := understandQuestion(printer, conv.QuestionsAsked)
	conv.QuestionsAsked++
	return conv, question, nil
}

// shouldAdvanceUnderstand applies the understand exit rule: at least two
// questions asked with the core facts known, or three questions regardless.
func shouldAdvanceUnderstand(conv Conversation) bool {
	if conv.QuestionsAsked < 2 {
		return false
	}
	if conv.BusinessInfo.BusinessType != "" && conv.BusinessInfo.BiggestChallenge != "" {
		return true
	}
	return conv.QuestionsAsked >= 3
}

// understandQuestion returns the scripted understand question for the given
// zero-based index.
func understandQuestion(printer *message.Printer, index int) string {
	switch index {
	case 0:
		return printer.Sprintf("discovery.understand.q1")
	case 1:
		return printer.Sprintf("discovery.understand.q2")
	default:
		return printer.Sprintf("discovery.understand.q3")
	}
}

// identifyQuestion asks the model which single task to automate, feeding it
// the system prompt and the transcript so far.
func (e *Engine) identifyQuestion(ctx context.Context, conv Conversation, printer *message.Printer) (string, error) {
	messages := make([]llm.Message, 0, len(conv.Messages)+1)
	for _, msg := range conv.Messages {
		role := llm.RoleUser
		if msg.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: msg.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: printer.Sprintf("discovery.identify.question")})

	return e.invoker.Invoke(ctx, llm.Request{
		System:      systemPrompt,
		Messages:    messages,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
}

// handleIdentify captures the visitor's answer as the task to automate and
// issues the three scoping questions.
func (e *Engine) handleIdentify(conv Conversation, visitorAnswer string, printer *message.Printer) (Conversation, string, error) {
	task := strings.TrimSpace(visitorAnswer)
	if task == "" {
		task = printer.Sprintf("discovery.scope.fallback_task")
	}
	conv.IdentifiedTask = task

	conv, err := advanceStage(conv, StageScope)
	if err != nil {
		return Conversation{}, "", err
	}

	questions := []string{
		printer.Sprintf("discovery.scope.q1", task),
		printer.Sprintf("discovery.scope.q2"),
		printer.Sprintf("discovery.scope.q3"),
	}
	return conv, strings.Join(questions, "\n"), nil
}

// handleScope turns the scoping answers into the stored MVP proposal and
// pitches it.
func (e *Engine) handleScope(ctx context.Context, conv Conversation, printer *message.Printer) (Conversation, string, error) {
	proposal, err := e.generateProposal(ctx, conv)
	if err != nil {
		return Conversation{}, "", err
	}
	conv.Proposal = &proposal

	conv, err = advanceStage(conv, StagePropose)
	if err != nil {
		return Conversation{}, "", err
	}
	return conv, formatProposal(printer, proposal), nil
}

// handlePropose applies the tier rules and pitches the recommended
// partnership.
func (e *Engine) handlePropose(conv Conversation, printer *message.Printer) (Conversation, string, error) {
	var proposal Proposal
	if conv.Proposal != nil {
		proposal = *conv.Proposal
	}
	tier := RecommendTier(conv.BusinessInfo, proposal)
	conv.Tier = tier

	conv, err := advanceStage(conv, StageRecommend)
	if err != nil {
		return Conversation{}, "", err
	}

	agentName := printer.Sprintf("discovery.recommend.fallback_agent")
	if conv.Proposal != nil && strings.TrimSpace(conv.Proposal.AgentName) != "" {
		agentName = conv.Proposal.AgentName
	}
	return conv, formatRecommendation(printer, tier, e.cfg.Prices.For(tier), agentName), nil
}

// handleRecommend closes the flow: the Calendly prompt is shown and the
// conversation completes. The book stage is transient, so a row that somehow
// persisted there closes the same way.
func (e *Engine) handleRecommend(conv Conversation, printer *message.Printer) (Conversation, string, error) {
	conv, err := advanceStage(conv, StageComplete)
	if err != nil {
		return Conversation{}, "", err
	}
	conv.CalendlyShown = true
	return conv, e.calendlyPrompt(printer), nil
}

func (e *Engine) calendlyPrompt(printer *message.Printer) string {
	return printer.Sprintf("discovery.book.calendly", e.cfg.CalendlyURL)
}

// formatProposal renders the proposal pitch block.
func formatProposal(printer *message.Printer, proposal Proposal) string {
	lines := []string{
		printer.Sprintf("discovery.proposal.header"),
		"",
		printer.Sprintf("discovery.proposal.agent", proposal.AgentName),
		printer.Sprintf("discovery.proposal.description", proposal.Description),
		printer.Sprintf("discovery.proposal.time_saved", proposal.TimeSaved),
		printer.Sprintf("discovery.proposal.integrations", strings.Join(proposal.Integrations, ", ")),
		printer.Sprintf("discovery.proposal.success_metric", proposal.SuccessMetric),
		printer.Sprintf("discovery.proposal.delivery", proposal.DeliveryTime),
	}
	return strings.Join(lines, "\n")
}

// formatRecommendation renders the tier pitch block.
func formatRecommendation(printer *message.Printer, tier Tier, monthlyPrice int, agentName string) string {
	lines := []string{
		printer.Sprintf("discovery.recommend.header", printer.Sprintf("discovery.tier."+string(tier), monthlyPrice)),
		"",
		printer.Sprintf("discovery.recommend.roi", agentName),
		"",
		printer.Sprintf("discovery.recommend.cta"),
	}
	return strings.Join(lines, "\n")
}

// printerForLocale builds a catalog-backed printer for a stored locale.
func printerForLocale(locale string) *message.Printer {
	return message.NewPrinter(platformi18n.TagForLocale(locale))
}
