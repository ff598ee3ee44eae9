package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/instaagents/discovery/internal/services/bot/storage"
)

func TestAppendAndListMessages(t *testing.T) {
	store := openTestStore(t)
	turnAt := time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)
	seedConversation(t, store, "conv-msgs", turnAt)

	// Both turns of one exchange share a timestamp; insertion order must
	// still hold.
	for _, msg := range []storage.MessageRecord{
		{ConversationID: "conv-msgs", Role: "human", Content: "hi", CreatedAt: turnAt},
		{ConversationID: "conv-msgs", Role: "assistant", Content: "What does your business do?", CreatedAt: turnAt},
		{ConversationID: "conv-msgs", Role: "human", Content: "we run a bakery", CreatedAt: turnAt.Add(time.Minute)},
	} {
		if err := store.AppendMessage(context.Background(), msg); err != nil {
			t.Fatalf("append message: %v", err)
		}
	}

	messages, err := store.ListMessages(context.Background(), "conv-msgs")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Role != "human" || messages[0].Content != "hi" {
		t.Fatalf("unexpected first message: %+v", messages[0])
	}
	if messages[1].Role != "assistant" {
		t.Fatalf("expected assistant second, got %+v", messages[1])
	}
	if messages[2].Content != "we run a bakery" {
		t.Fatalf("unexpected third message: %+v", messages[2])
	}
	if messages[0].ID >= messages[1].ID || messages[1].ID >= messages[2].ID {
		t.Fatalf("expected ascending message ids, got %d %d %d", messages[0].ID, messages[1].ID, messages[2].ID)
	}
	if !messages[0].CreatedAt.Equal(turnAt) {
		t.Fatalf("expected turn timestamp, got %v", messages[0].CreatedAt)
	}
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	store := openTestStore(t)

	err := store.AppendMessage(context.Background(), storage.MessageRecord{
		ConversationID: "missing",
		Role:           "human",
		Content:        "hello?",
		CreatedAt:      time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestAppendMessageValidation(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		record storage.MessageRecord
	}{
		{name: "missing conversation id", record: storage.MessageRecord{Role: "human", Content: "hi", CreatedAt: now}},
		{name: "missing role", record: storage.MessageRecord{ConversationID: "c", Content: "hi", CreatedAt: now}},
		{name: "missing content", record: storage.MessageRecord{ConversationID: "c", Role: "human", CreatedAt: now}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.AppendMessage(context.Background(), tt.record); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestListMessagesEmpty(t *testing.T) {
	store := openTestStore(t)
	seedConversation(t, store, "conv-quiet", time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC))

	messages, err := store.ListMessages(context.Background(), "conv-quiet")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
}
