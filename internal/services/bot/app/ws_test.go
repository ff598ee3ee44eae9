package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
	"github.com/instaagents/discovery/internal/services/bot/agent"
)

type wsTestClient struct {
	conn    *websocket.Conn
	decoder *json.Decoder
}

func dialWS(t *testing.T, s *Server) *wsTestClient {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsTestClient{conn: conn, decoder: json.NewDecoder(conn)}
}

func (c *wsTestClient) write(t *testing.T, frame map[string]any) {
	t.Helper()
	if err := json.NewEncoder(c.conn).Encode(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func (c *wsTestClient) read(t *testing.T) wsFrame {
	t.Helper()
	if err := c.conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var frame wsFrame
	if err := c.decoder.Decode(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func decodeWSReply(t *testing.T, frame wsFrame) wsChatReply {
	t.Helper()
	if frame.Type != wsFrameChatReply {
		t.Fatalf("expected %s frame, got %s (payload %s)", wsFrameChatReply, frame.Type, frame.Payload)
	}
	var reply wsChatReply
	if err := json.Unmarshal(frame.Payload, &reply); err != nil {
		t.Fatalf("decode reply payload: %v", err)
	}
	return reply
}

func decodeWSError(t *testing.T, frame wsFrame) wsError {
	t.Helper()
	if frame.Type != wsFrameChatError {
		t.Fatalf("expected %s frame, got %s (payload %s)", wsFrameChatError, frame.Type, frame.Payload)
	}
	var envelope wsErrorEnvelope
	if err := json.Unmarshal(frame.Payload, &envelope); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return envelope.Error
}

func TestWebSocketChatRoundTrip(t *testing.T) {
	s := newTestServer(t, nil)
	client := dialWS(t, s)

	client.write(t, map[string]any{
		"type":       wsFrameChatSend,
		"request_id": "r1",
		"payload":    map[string]any{"message": "hi", "client_message_id": "m1"},
	})

	frame := client.read(t)
	if frame.RequestID != "r1" {
		t.Fatalf("expected request id echoed, got %q", frame.RequestID)
	}
	reply := decodeWSReply(t, frame)
	if reply.ConversationID == "" {
		t.Fatal("expected a conversation id")
	}
	if reply.Stage != "understand" || reply.CalendlyShown {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if !strings.Contains(reply.Response, "What does your business do") {
		t.Fatalf("unexpected opening reply: %q", reply.Response)
	}
}

func TestWebSocketIdempotentReplay(t *testing.T) {
	s := newTestServer(t, nil)
	client := dialWS(t, s)

	client.write(t, map[string]any{
		"type":       wsFrameChatSend,
		"request_id": "r1",
		"payload":    map[string]any{"message": "hi", "client_message_id": "m1"},
	})
	first := decodeWSReply(t, client.read(t))

	// The retry carries the same client_message_id and must replay the
	// cached reply instead of running another turn.
	client.write(t, map[string]any{
		"type":       wsFrameChatSend,
		"request_id": "r2",
		"payload":    map[string]any{"message": "hi", "client_message_id": "m1"},
	})
	frame := client.read(t)
	if frame.RequestID != "r2" {
		t.Fatalf("expected replay under the new request id, got %q", frame.RequestID)
	}
	second := decodeWSReply(t, frame)
	if second.ConversationID != first.ConversationID || second.Response != first.Response {
		t.Fatalf("expected identical replay, got %+v vs %+v", second, first)
	}

	_, messages, err := s.service.GetConversation(context.Background(), first.ConversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected replay to append nothing, got %d transcript rows", len(messages))
	}
}

func TestWebSocketRequiresClientMessageID(t *testing.T) {
	s := newTestServer(t, nil)
	client := dialWS(t, s)

	client.write(t, map[string]any{
		"type":       wsFrameChatSend,
		"request_id": "r1",
		"payload":    map[string]any{"message": "hi"},
	})

	wserr := decodeWSError(t, client.read(t))
	if wserr.Code != wsCodeInvalidArgument {
		t.Fatalf("expected %s, got %s", wsCodeInvalidArgument, wserr.Code)
	}
	if !strings.Contains(wserr.Message, "client_message_id") {
		t.Fatalf("unexpected message: %q", wserr.Message)
	}
}

func TestWebSocketRejectsUnknownFrameType(t *testing.T) {
	s := newTestServer(t, nil)
	client := dialWS(t, s)

	client.write(t, map[string]any{"type": "chat.subscribe", "request_id": "r1"})

	wserr := decodeWSError(t, client.read(t))
	if wserr.Code != wsCodeInvalidArgument || !strings.Contains(wserr.Message, "unsupported frame type") {
		t.Fatalf("unexpected error: %+v", wserr)
	}
}

func TestWebSocketRejectsOversizedPayload(t *testing.T) {
	s := newTestServer(t, nil)
	client := dialWS(t, s)

	client.write(t, map[string]any{
		"type":       wsFrameChatSend,
		"request_id": "r1",
		"payload":    strings.Repeat("a", maxFramePayloadBytes+1),
	})

	wserr := decodeWSError(t, client.read(t))
	if wserr.Code != wsCodeInvalidArgument || !strings.Contains(wserr.Message, "payload too large") {
		t.Fatalf("unexpected error: %+v", wserr)
	}
}

func TestWebSocketRejectsMalformedFrame(t *testing.T) {
	s := newTestServer(t, nil)
	client := dialWS(t, s)

	if _, err := client.conn.Write([]byte("not json\n")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	wserr := decodeWSError(t, client.read(t))
	if wserr.Code != wsCodeInvalidArgument || !strings.Contains(wserr.Message, "invalid frame payload") {
		t.Fatalf("unexpected error: %+v", wserr)
	}
}

func TestWebSocketUnknownConversation(t *testing.T) {
	s := newTestServer(t, nil)
	client := dialWS(t, s)

	client.write(t, map[string]any{
		"type":       wsFrameChatSend,
		"request_id": "r1",
		"payload": map[string]any{
			"conversation_id":   "missing",
			"message":           "hi",
			"client_message_id": "m1",
		},
	})

	wserr := decodeWSError(t, client.read(t))
	if wserr.Code != wsCodeNotFound {
		t.Fatalf("expected %s, got %s", wsCodeNotFound, wserr.Code)
	}
	if wserr.Retryable {
		t.Fatal("expected not found to be final")
	}
}

func TestWebSocketProviderFailureIsRetryable(t *testing.T) {
	providerErr := apperrors.New(apperrors.CodeProviderUnavailable, "model provider unavailable")
	s := newTestServer(t, []fakeReply{
		{content: `{}`},
		{content: `{"business_type": "bakery", "biggest_challenge": "orders"}`},
		{err: providerErr},
	})
	client := dialWS(t, s)

	send := func(requestID string, conversationID string, message string, clientMessageID string) wsFrame {
		t.Helper()
		client.write(t, map[string]any{
			"type":       wsFrameChatSend,
			"request_id": requestID,
			"payload": map[string]any{
				"conversation_id":   conversationID,
				"message":           message,
				"client_message_id": clientMessageID,
			},
		})
		return client.read(t)
	}

	first := decodeWSReply(t, send("r1", "", "hi", "m1"))
	decodeWSReply(t, send("r2", first.ConversationID, "we run a bakery", "m2"))

	// The identify call fails upstream, which must surface as retryable.
	frame := send("r3", first.ConversationID, "we retype orders all day", "m3")
	wserr := decodeWSError(t, frame)
	if wserr.Code != wsCodeUnavailable {
		t.Fatalf("expected %s, got %s", wsCodeUnavailable, wserr.Code)
	}
	if !wserr.Retryable {
		t.Fatal("expected provider failure to be retryable")
	}
}

func TestWebSocketHandshakeRequiresGet(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/ws", strings.NewReader(""))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestWSCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, wsCodeInvalidArgument},
		{http.StatusUnauthorized, wsCodeUnauthenticated},
		{http.StatusNotFound, wsCodeNotFound},
		{http.StatusConflict, wsCodeFailedPrecondition},
		{http.StatusTooManyRequests, wsCodeResourceExhausted},
		{http.StatusServiceUnavailable, wsCodeUnavailable},
		{http.StatusInternalServerError, wsCodeInternal},
	}
	for _, tt := range tests {
		if got := wsCodeForStatus(tt.status); got != tt.want {
			t.Fatalf("status %d: expected %s, got %s", tt.status, tt.want, got)
		}
	}
}

func TestWSErrorForLocalizesAndFlagsRetry(t *testing.T) {
	wserr := wsErrorFor(agent.ErrConversationAbandoned, "en-US")
	if wserr.Code != wsCodeFailedPrecondition || wserr.Retryable {
		t.Fatalf("unexpected abandoned mapping: %+v", wserr)
	}
	if wserr.Message != "This conversation was closed after a period of inactivity" {
		t.Fatalf("unexpected message: %q", wserr.Message)
	}

	wserr = wsErrorFor(apperrors.New(apperrors.CodeProviderRateLimited, "slow down"), "en-US")
	if wserr.Code != wsCodeResourceExhausted || !wserr.Retryable {
		t.Fatalf("unexpected rate limit mapping: %+v", wserr)
	}
	if strings.Contains(wserr.Message, "slow down") {
		t.Fatal("expected internal message not to leak")
	}
}
