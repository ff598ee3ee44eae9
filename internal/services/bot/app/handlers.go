package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
	"github.com/instaagents/discovery/internal/services/bot/adminauth"
	"github.com/instaagents/discovery/internal/services/bot/agent"
	"github.com/instaagents/discovery/internal/services/bot/metrics"
	"github.com/instaagents/discovery/internal/services/bot/platform/httpx"
	"github.com/instaagents/discovery/internal/services/bot/platform/observability"
	"github.com/instaagents/discovery/internal/services/bot/platform/weberror"
	"github.com/instaagents/discovery/internal/services/shared/i18nhttp"
)

// apiVersion is reported by the health endpoint.
const apiVersion = "1.0.0"

const (
	healthStatusOK  = "healthy"
	healthStatusBad = "unhealthy"
)

func newHandler(s *Server) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/chat", httpx.Chain(http.HandlerFunc(s.handleChat),
		httpx.RequireMethod(http.MethodPost)))
	mux.Handle("/conversation/", httpx.Chain(http.HandlerFunc(s.handleGetConversation),
		httpx.RequireMethod(http.MethodGet)))
	mux.Handle("/conversations", httpx.Chain(http.HandlerFunc(s.handleListConversations),
		httpx.RequireMethod(http.MethodGet), s.requireAdmin()))
	mux.Handle("/leads", httpx.Chain(http.HandlerFunc(s.handleListLeads),
		httpx.RequireMethod(http.MethodGet), s.requireAdmin()))
	mux.Handle("/health", httpx.Chain(http.HandlerFunc(s.handleHealth),
		httpx.RequireMethod(http.MethodGet)))
	mux.Handle("/up", httpx.Chain(http.HandlerFunc(s.handleUp),
		httpx.RequireMethod(http.MethodGet)))
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/widget.js", httpx.Chain(http.HandlerFunc(s.handleWidgetScript),
		httpx.RequireMethod(http.MethodGet)))
	mux.Handle("/widget", httpx.Chain(http.HandlerFunc(s.handleWidgetPage),
		httpx.RequireMethod(http.MethodGet)))
	mux.HandleFunc("/ws", s.handleWS)

	// CORS sits innermost so preflights still show up in the request log.
	return httpx.Chain(mux,
		httpx.RecoverPanic(),
		httpx.RequestID(),
		observability.RequestLogger(s.logger),
		httpx.AllowCORS(),
	)
}

// requireAdmin guards operator endpoints with the EdDSA bearer token
// check. Deployments without verification config get a 503 so misreading
// an unset key as "open access" is impossible.
func (s *Server) requireAdmin() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.adminAuth == nil {
				s.writeError(w, r, apperrors.New(apperrors.CodeAdminUnconfigured, "admin access is not configured"))
				return
			}
			token, err := adminauth.FromAuthorization(r.Header.Get("Authorization"))
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			if _, err := adminauth.ValidateToken(token, *s.adminAuth); err != nil {
				s.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError renders the shared error envelope with a message localized to
// the request. Internal failures are logged with the request id; the
// envelope never carries internal detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	locale, _ := i18nhttp.ResolveLocale(r)
	status, envelope := weberror.ForError(err, locale)
	if status >= http.StatusInternalServerError {
		s.logger.Printf("request failed method=%s path=%s status=%d request_id=%s error=%v",
			r.Method, r.URL.Path, status, r.Header.Get("X-Request-ID"), err)
	}
	if writeErr := httpx.WriteJSON(w, status, envelope); writeErr != nil {
		s.logger.Printf("write error envelope: %v", writeErr)
	}
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Source         string `json:"source"`
	Locale         string `json:"locale"`
}

type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
	Stage          string `json:"stage"`
	CalendlyShown  bool   `json:"calendly_shown"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.CodeRequestMalformed, "decode chat request", err))
		return
	}

	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale, _ = i18nhttp.ResolveLocale(r)
	}

	result, err := s.service.HandleChat(r.Context(), ChatInput{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Source:         req.Source,
		Locale:         locale,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := httpx.WriteJSON(w, http.StatusOK, chatResponse{
		ConversationID: result.ConversationID,
		Response:       result.Response,
		Stage:          string(result.Stage),
		CalendlyShown:  result.CalendlyShown,
	}); err != nil {
		s.logger.Printf("write chat response: %v", err)
	}
}

type conversationMessageBody struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type conversationStateBody struct {
	BusinessInfo   agent.BusinessInfo `json:"business_info"`
	IdentifiedTask string             `json:"identified_task,omitempty"`
	Proposal       *agent.Proposal    `json:"proposal,omitempty"`
	Tier           string             `json:"tier,omitempty"`
	QuestionsAsked int                `json:"questions_asked"`
	CalendlyShown  bool               `json:"calendly_shown"`
}

type conversationDetailBody struct {
	ConversationID string                    `json:"conversation_id"`
	Source         string                    `json:"source"`
	Locale         string                    `json:"locale"`
	Stage          string                    `json:"stage"`
	State          conversationStateBody     `json:"state"`
	Messages       []conversationMessageBody `json:"messages"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
	AbandonedAt    *time.Time                `json:"abandoned_at,omitempty"`
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := strings.TrimPrefix(r.URL.Path, "/conversation/")

	conv, messageRecords, err := s.service.GetConversation(r.Context(), conversationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	messages := make([]conversationMessageBody, 0, len(messageRecords))
	for _, msg := range messageRecords {
		messages = append(messages, conversationMessageBody{
			ID:        msg.ID,
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}

	if err := httpx.WriteJSON(w, http.StatusOK, conversationDetailBody{
		ConversationID: conv.ID,
		Source:         string(conv.Source),
		Locale:         conv.Locale,
		Stage:          string(conv.Stage),
		State: conversationStateBody{
			BusinessInfo:   conv.BusinessInfo,
			IdentifiedTask: conv.IdentifiedTask,
			Proposal:       conv.Proposal,
			Tier:           string(conv.Tier),
			QuestionsAsked: conv.QuestionsAsked,
			CalendlyShown:  conv.CalendlyShown,
		},
		Messages:    messages,
		CreatedAt:   conv.CreatedAt,
		UpdatedAt:   conv.UpdatedAt,
		AbandonedAt: conv.AbandonedAt,
	}); err != nil {
		s.logger.Printf("write conversation response: %v", err)
	}
}

type conversationSummaryBody struct {
	ConversationID string    `json:"conversation_id"`
	Source         string    `json:"source"`
	Stage          string    `json:"stage"`
	Tier           string    `json:"tier,omitempty"`
	MessageCount   int       `json:"message_count"`
	HasProposal    bool      `json:"has_proposal"`
	CalendlyShown  bool      `json:"calendly_shown"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type conversationListBody struct {
	Conversations []conversationSummaryBody `json:"conversations"`
	Total         int                       `json:"total"`
	Limit         int                       `json:"limit"`
	Offset        int                       `json:"offset"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.service.ListConversations(r.Context(), ListConversationsInput{
		Limit:  limit,
		Offset: offset,
		Source: r.URL.Query().Get("source"),
		Filter: r.URL.Query().Get("filter"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summaries := make([]conversationSummaryBody, 0, len(page.Conversations))
	for _, record := range page.Conversations {
		summaries = append(summaries, conversationSummaryBody{
			ConversationID: record.ID,
			Source:         record.Source,
			Stage:          record.Stage,
			Tier:           record.Tier,
			MessageCount:   record.MessageCount,
			HasProposal:    record.HasProposal,
			CalendlyShown:  record.CalendlyShown,
			CreatedAt:      record.CreatedAt,
			UpdatedAt:      record.UpdatedAt,
		})
	}

	if err := httpx.WriteJSON(w, http.StatusOK, conversationListBody{
		Conversations: summaries,
		Total:         page.Total,
		Limit:         limit,
		Offset:        offset,
	}); err != nil {
		s.logger.Printf("write conversation list: %v", err)
	}
}

type leadBody struct {
	ConversationID string          `json:"conversation_id"`
	BusinessName   string          `json:"business_name"`
	ContactEmail   string          `json:"contact_email,omitempty"`
	Proposal       json.RawMessage `json:"proposal,omitempty"`
	Tier           string          `json:"tier,omitempty"`
	CalendlyBooked bool            `json:"calendly_booked"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type leadListBody struct {
	Leads  []leadBody `json:"leads"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.service.ListLeads(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	leads := make([]leadBody, 0, len(page.Leads))
	for _, record := range page.Leads {
		lead := leadBody{
			ConversationID: record.ConversationID,
			BusinessName:   record.BusinessName,
			ContactEmail:   record.ContactEmail,
			Tier:           record.Tier,
			CalendlyBooked: record.CalendlyBooked,
			CreatedAt:      record.CreatedAt,
			UpdatedAt:      record.UpdatedAt,
		}
		if strings.TrimSpace(record.Proposal) != "" {
			lead.Proposal = json.RawMessage(record.Proposal)
		}
		leads = append(leads, lead)
	}

	if err := httpx.WriteJSON(w, http.StatusOK, leadListBody{
		Leads:  leads,
		Total:  page.Total,
		Limit:  limit,
		Offset: offset,
	}); err != nil {
		s.logger.Printf("write lead list: %v", err)
	}
}

// pageFromQuery reads limit/offset and applies the paging defaults so the
// response can echo the effective values back.
func pageFromQuery(r *http.Request) (int, int, error) {
	limit, err := queryInt(r, "limit", apperrors.CodePageSizeInvalid)
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(r, "offset", apperrors.CodePageTokenInvalid)
	if err != nil {
		return 0, 0, err
	}
	return normalizePage(limit, offset)
}

func queryInt(r *http.Request, name string, code apperrors.Code) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Wrap(code, fmt.Sprintf("parse %s query parameter", name), err)
	}
	return value, nil
}

type healthChecks struct {
	API      string `json:"api"`
	Agent    string `json:"agent"`
	Database string `json:"database"`
}

type healthBody struct {
	Status    string       `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Version   string       `json:"version"`
	Checks    healthChecks `json:"checks"`
}

// handleHealth reports readiness. The agent check fails when no provider
// credentials were configured, the database check when SQLite stops
// answering. Any failed check turns the whole report unhealthy with a 503
// so load balancers stop routing here.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := healthChecks{
		API:      healthStatusOK,
		Agent:    healthStatusOK,
		Database: healthStatusOK,
	}
	if !s.agentReady {
		checks.Agent = healthStatusBad
	}
	if s.store == nil {
		checks.Database = healthStatusBad
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.DB().PingContext(ctx); err != nil {
			checks.Database = healthStatusBad
		}
	}

	status := healthStatusOK
	code := http.StatusOK
	if checks.Agent != healthStatusOK || checks.Database != healthStatusOK {
		status = healthStatusBad
		code = http.StatusServiceUnavailable
	}

	if err := httpx.WriteJSON(w, code, healthBody{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   apiVersion,
		Checks:    checks,
	}); err != nil {
		s.logger.Printf("write health response: %v", err)
	}
}

func (s *Server) handleUp(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, "OK"); err != nil {
		s.logger.Printf("write liveness response: %v", err)
	}
}
