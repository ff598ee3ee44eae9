package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/instaagents/discovery/internal/services/bot/storage"
)

// maxListLimit caps one page of the operator conversation list.
const maxListLimit = 100

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

func nullableText(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableMillis(value *time.Time) any {
	if value == nil {
		return nil
	}
	return toMillis(*value)
}

// CreateConversation inserts a new conversation record.
func (s *Store) CreateConversation(ctx context.Context, record storage.ConversationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := validateConversationRecord(record); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO conversations (
	id, source, locale, stage, business_info, identified_task, proposal, tier,
	questions_asked, calendly_shown, abandoned_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.Source,
		record.Locale,
		record.Stage,
		normalizeBusinessInfo(record.BusinessInfo),
		record.IdentifiedTask,
		nullableText(record.Proposal),
		nullableText(record.Tier),
		record.QuestionsAsked,
		record.CalendlyShown,
		nullableMillis(record.AbandonedAt),
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// GetConversation fetches a conversation record by ID.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (storage.ConversationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ConversationRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ConversationRecord{}, fmt.Errorf("storage is not configured")
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return storage.ConversationRecord{}, fmt.Errorf("conversation id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, source, locale, stage, business_info, identified_task, proposal, tier,
	questions_asked, calendly_shown, abandoned_at, created_at, updated_at
FROM conversations
WHERE id = ?
`, conversationID)

	return scanConversationRow(row)
}

// UpdateConversation saves the full state of an existing conversation.
func (s *Store) UpdateConversation(ctx context.Context, record storage.ConversationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := validateConversationRecord(record); err != nil {
		return err
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE conversations SET
	source = ?,
	locale = ?,
	stage = ?,
	business_info = ?,
	identified_task = ?,
	proposal = ?,
	tier = ?,
	questions_asked = ?,
	calendly_shown = ?,
	abandoned_at = ?,
	updated_at = ?
WHERE id = ?
`,
		record.Source,
		record.Locale,
		record.Stage,
		normalizeBusinessInfo(record.BusinessInfo),
		record.IdentifiedTask,
		nullableText(record.Proposal),
		nullableText(record.Tier),
		record.QuestionsAsked,
		record.CalendlyShown,
		nullableMillis(record.AbandonedAt),
		toMillis(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update conversation rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListConversations returns one page of conversation summaries, newest
// first, with the total count for the same constraints.
func (s *Store) ListConversations(ctx context.Context, input storage.ListConversationsInput) (storage.ConversationSummaryPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ConversationSummaryPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ConversationSummaryPage{}, fmt.Errorf("storage is not configured")
	}
	if input.Limit <= 0 {
		return storage.ConversationSummaryPage{}, fmt.Errorf("limit must be greater than zero")
	}
	if input.Limit > maxListLimit {
		return storage.ConversationSummaryPage{}, fmt.Errorf("limit must be at most %d", maxListLimit)
	}
	if input.Offset < 0 {
		return storage.ConversationSummaryPage{}, fmt.Errorf("offset must not be negative")
	}

	conditions := make([]string, 0, 2)
	params := make([]any, 0, len(input.WhereParams)+1)
	if source := strings.TrimSpace(input.Source); source != "" {
		conditions = append(conditions, "source = ?")
		params = append(params, source)
	}
	if where := strings.TrimSpace(input.Where); where != "" {
		conditions = append(conditions, "("+where+")")
		params = append(params, input.WhereParams...)
	}
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM conversations " + whereClause
	if err := s.sqlDB.QueryRowContext(ctx, countQuery, params...).Scan(&total); err != nil {
		return storage.ConversationSummaryPage{}, fmt.Errorf("count conversations: %w", err)
	}

	listQuery := `
SELECT id, source, stage, COALESCE(tier, ''), calendly_shown, proposal IS NOT NULL,
	(SELECT COUNT(*) FROM messages WHERE messages.conversation_id = conversations.id),
	created_at, updated_at
FROM conversations ` + whereClause + `
ORDER BY created_at DESC, id
LIMIT ? OFFSET ?
`
	listParams := append(append([]any{}, params...), input.Limit, input.Offset)
	rows, err := s.sqlDB.QueryContext(ctx, listQuery, listParams...)
	if err != nil {
		return storage.ConversationSummaryPage{}, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	page := storage.ConversationSummaryPage{
		Conversations: make([]storage.ConversationSummaryRecord, 0, input.Limit),
		Total:         total,
	}
	for rows.Next() {
		var rec storage.ConversationSummaryRecord
		var createdAt int64
		var updatedAt int64
		if err := rows.Scan(
			&rec.ID,
			&rec.Source,
			&rec.Stage,
			&rec.Tier,
			&rec.CalendlyShown,
			&rec.HasProposal,
			&rec.MessageCount,
			&createdAt,
			&updatedAt,
		); err != nil {
			return storage.ConversationSummaryPage{}, fmt.Errorf("scan conversation summary: %w", err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		rec.UpdatedAt = fromMillis(updatedAt)
		page.Conversations = append(page.Conversations, rec)
	}
	if err := rows.Err(); err != nil {
		return storage.ConversationSummaryPage{}, fmt.Errorf("iterate conversation summaries: %w", err)
	}
	return page, nil
}

// MarkAbandoned closes conversations that went idle before the cutoff.
func (s *Store) MarkAbandoned(ctx context.Context, idleSince time.Time, abandonedAt time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE conversations SET
	abandoned_at = ?,
	updated_at = ?
WHERE updated_at < ?
	AND stage != 'complete'
	AND abandoned_at IS NULL
`,
		toMillis(abandonedAt),
		toMillis(abandonedAt),
		toMillis(idleSince),
	)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark abandoned rows affected: %w", err)
	}
	return int(affected), nil
}

// ConversationDayCounts aggregates activity for conversations created in
// [from, to).
func (s *Store) ConversationDayCounts(ctx context.Context, from time.Time, to time.Time) (storage.DayCounts, error) {
	if err := ctx.Err(); err != nil {
		return storage.DayCounts{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.DayCounts{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN proposal IS NOT NULL THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN calendly_shown = 1 THEN 1 ELSE 0 END), 0)
FROM conversations
WHERE created_at >= ? AND created_at < ?
`, toMillis(from), toMillis(to))

	var counts storage.DayCounts
	if err := row.Scan(&counts.Started, &counts.Completed, &counts.DemosBooked); err != nil {
		return storage.DayCounts{}, fmt.Errorf("count conversation day: %w", err)
	}
	return counts, nil
}

func validateConversationRecord(record storage.ConversationRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("conversation id is required")
	}
	if strings.TrimSpace(record.Source) == "" {
		return fmt.Errorf("source is required")
	}
	if strings.TrimSpace(record.Locale) == "" {
		return fmt.Errorf("locale is required")
	}
	if strings.TrimSpace(record.Stage) == "" {
		return fmt.Errorf("stage is required")
	}
	return nil
}

func normalizeBusinessInfo(value string) string {
	if strings.TrimSpace(value) == "" {
		return "{}"
	}
	return value
}

func scanConversationRow(row *sql.Row) (storage.ConversationRecord, error) {
	var rec storage.ConversationRecord
	var proposal sql.NullString
	var tier sql.NullString
	var abandonedAt sql.NullInt64
	var createdAt int64
	var updatedAt int64
	if err := row.Scan(
		&rec.ID,
		&rec.Source,
		&rec.Locale,
		&rec.Stage,
		&rec.BusinessInfo,
		&rec.IdentifiedTask,
		&proposal,
		&tier,
		&rec.QuestionsAsked,
		&rec.CalendlyShown,
		&abandonedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ConversationRecord{}, storage.ErrNotFound
		}
		return storage.ConversationRecord{}, fmt.Errorf("get conversation: %w", err)
	}
	rec.Proposal = proposal.String
	rec.Tier = tier.String
	if abandonedAt.Valid {
		at := fromMillis(abandonedAt.Int64)
		rec.AbandonedAt = &at
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}
