package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/instaagents/discovery/internal/services/bot/storage"
)

// AppendMessage inserts one transcript message. The conversation must
// already exist.
func (s *Store) AppendMessage(ctx context.Context, record storage.MessageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ConversationID) == "" {
		return fmt.Errorf("conversation id is required")
	}
	if strings.TrimSpace(record.Role) == "" {
		return fmt.Errorf("role is required")
	}
	if strings.TrimSpace(record.Content) == "" {
		return fmt.Errorf("content is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO messages (conversation_id, role, content, created_at)
VALUES (?, ?, ?, ?)
`,
		record.ConversationID,
		record.Role,
		record.Content,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessages returns all messages of one conversation in insertion order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]storage.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, conversation_id, role, content, created_at
FROM messages
WHERE conversation_id = ?
ORDER BY id
`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]storage.MessageRecord, 0, 16)
	for rows.Next() {
		var rec storage.MessageRecord
		var createdAt int64
		if err := rows.Scan(
			&rec.ID,
			&rec.ConversationID,
			&rec.Role,
			&rec.Content,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		messages = append(messages, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return messages, nil
}
