package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/net/websocket"

	"github.com/instaagents/discovery/internal/services/bot/agent"
	"github.com/instaagents/discovery/internal/services/bot/platform/httpx"
	"github.com/instaagents/discovery/internal/services/bot/platform/weberror"
	"github.com/instaagents/discovery/internal/services/shared/i18nhttp"
)

// Frame limits for the widget WebSocket transport. The payload cap leaves
// room for a maximum-length visitor message plus the JSON envelope.
const (
	maxFramePayloadBytes    = 32 * 1024
	maxFramesPerSecond      = 10
	maxDecodeErrorsPerConn  = 3
	maxClientMessageIDRunes = 128
	maxCachedReplies        = 256
)

const (
	wsFrameChatSend  = "chat.send"
	wsFrameChatReply = "chat.reply"
	wsFrameChatError = "chat.error"
)

const (
	wsCodeInvalidArgument    = "INVALID_ARGUMENT"
	wsCodeUnauthenticated    = "UNAUTHENTICATED"
	wsCodeNotFound           = "NOT_FOUND"
	wsCodeFailedPrecondition = "FAILED_PRECONDITION"
	wsCodeResourceExhausted  = "RESOURCE_EXHAUSTED"
	wsCodeUnavailable        = "UNAVAILABLE"
	wsCodeInternal           = "INTERNAL"
)

// wsFrame is the wire envelope for both directions. RequestID echoes the
// client's correlation id on replies and errors.
type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsChatSend struct {
	ConversationID  string `json:"conversation_id"`
	Message         string `json:"message"`
	ClientMessageID string `json:"client_message_id"`
	Locale          string `json:"locale"`
}

type wsChatReply struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
	Stage          string `json:"stage"`
	CalendlyShown  bool   `json:"calendly_shown"`
}

// wsPeer serializes frame writes to one connection.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{encoder: json.NewEncoder(conn)}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// wsSession caches replies by client_message_id so a widget retrying after
// a flaky network gets the same answer back instead of a second model
// turn. Oldest entries fall off once the cache is full.
type wsSession struct {
	replyBy    map[string]wsChatReply
	replyOrder []string
}

func newWSSession() *wsSession {
	return &wsSession{replyBy: make(map[string]wsChatReply)}
}

func (sess *wsSession) cached(clientMessageID string) (wsChatReply, bool) {
	reply, ok := sess.replyBy[clientMessageID]
	return reply, ok
}

func (sess *wsSession) remember(clientMessageID string, reply wsChatReply) {
	if _, ok := sess.replyBy[clientMessageID]; ok {
		return
	}
	sess.replyBy[clientMessageID] = reply
	sess.replyOrder = append(sess.replyOrder, clientMessageID)
	if len(sess.replyOrder) > maxCachedReplies {
		oldest := sess.replyOrder[0]
		sess.replyOrder = sess.replyOrder[1:]
		delete(sess.replyBy, oldest)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.MethodNotAllowed(http.MethodGet)(w, r)
		return
	}
	websocket.Handler(s.serveWS).ServeHTTP(w, r)
}

// serveWS runs the frame loop for one widget connection. Malformed frames
// are answered but tolerated up to a cap; blowing the frame rate closes
// the connection.
func (s *Server) serveWS(conn *websocket.Conn) {
	defer conn.Close()

	ctx := context.Background()
	locale := ""
	if r := conn.Request(); r != nil {
		ctx = r.Context()
		locale, _ = i18nhttp.ResolveLocale(r)
	}

	peer := newWSPeer(conn)
	session := newWSSession()
	decoder := json.NewDecoder(conn)

	var (
		decodeErrors   int
		windowStart    time.Time
		framesInWindow int
	)
	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			s.writeWSError(peer, "", wsError{Code: wsCodeInvalidArgument, Message: "invalid frame payload"})
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		if len(frame.Payload) > maxFramePayloadBytes {
			s.writeWSError(peer, frame.RequestID, wsError{Code: wsCodeInvalidArgument, Message: "payload too large"})
			continue
		}

		now := time.Now()
		if windowStart.IsZero() || now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			s.writeWSError(peer, frame.RequestID, wsError{Code: wsCodeResourceExhausted, Message: "rate limit exceeded", Retryable: true})
			return
		}

		switch frame.Type {
		case wsFrameChatSend:
			s.handleWSChatSend(ctx, peer, session, frame, locale)
		default:
			s.writeWSError(peer, frame.RequestID, wsError{Code: wsCodeInvalidArgument, Message: "unsupported frame type"})
		}
	}
}

func (s *Server) handleWSChatSend(ctx context.Context, peer *wsPeer, session *wsSession, frame wsFrame, locale string) {
	var payload wsChatSend
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			s.writeWSError(peer, frame.RequestID, wsError{Code: wsCodeInvalidArgument, Message: "invalid chat.send payload"})
			return
		}
	}

	clientMessageID := strings.TrimSpace(payload.ClientMessageID)
	if clientMessageID == "" {
		s.writeWSError(peer, frame.RequestID, wsError{Code: wsCodeInvalidArgument, Message: "client_message_id is required"})
		return
	}
	if utf8.RuneCountInString(clientMessageID) > maxClientMessageIDRunes {
		s.writeWSError(peer, frame.RequestID, wsError{Code: wsCodeInvalidArgument, Message: "client_message_id too long"})
		return
	}

	if reply, ok := session.cached(clientMessageID); ok {
		s.writeWSReply(peer, frame.RequestID, reply)
		return
	}

	messageLocale := strings.TrimSpace(payload.Locale)
	if messageLocale == "" {
		messageLocale = locale
	}

	result, err := s.service.HandleChat(ctx, ChatInput{
		ConversationID: payload.ConversationID,
		Message:        payload.Message,
		Source:         string(agent.SourceWidget),
		Locale:         messageLocale,
	})
	if err != nil {
		s.writeWSError(peer, frame.RequestID, wsErrorFor(err, locale))
		return
	}

	reply := wsChatReply{
		ConversationID: result.ConversationID,
		Response:       result.Response,
		Stage:          string(result.Stage),
		CalendlyShown:  result.CalendlyShown,
	}
	session.remember(clientMessageID, reply)
	s.writeWSReply(peer, frame.RequestID, reply)
}

func (s *Server) writeWSReply(peer *wsPeer, requestID string, reply wsChatReply) {
	frame := wsFrame{Type: wsFrameChatReply, RequestID: requestID, Payload: jsonPayload(reply)}
	if err := peer.writeFrame(frame); err != nil {
		s.logger.Printf("write ws reply frame: %v", err)
	}
}

func (s *Server) writeWSError(peer *wsPeer, requestID string, wserr wsError) {
	frame := wsFrame{Type: wsFrameChatError, RequestID: requestID, Payload: jsonPayload(wsErrorEnvelope{Error: wserr})}
	if err := peer.writeFrame(frame); err != nil {
		s.logger.Printf("write ws error frame: %v", err)
	}
}

// wsErrorFor translates a domain failure into the typed frame error,
// reusing the HTTP envelope's localized message.
func wsErrorFor(err error, locale string) wsError {
	status, envelope := weberror.ForError(err, locale)
	code := wsCodeForStatus(status)
	return wsError{
		Code:      code,
		Message:   envelope.Error.Message,
		Retryable: code == wsCodeUnavailable || code == wsCodeResourceExhausted,
	}
}

func wsCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return wsCodeInvalidArgument
	case http.StatusUnauthorized:
		return wsCodeUnauthenticated
	case http.StatusNotFound:
		return wsCodeNotFound
	case http.StatusConflict:
		return wsCodeFailedPrecondition
	case http.StatusTooManyRequests:
		return wsCodeResourceExhausted
	case http.StatusServiceUnavailable:
		return wsCodeUnavailable
	default:
		return wsCodeInternal
	}
}

func jsonPayload(v any) json.RawMessage {
	encoded, err := json.Marshal(v)
	if err != nil {
		log.Printf("encode ws payload: %v", err)
		return nil
	}
	return encoded
}
