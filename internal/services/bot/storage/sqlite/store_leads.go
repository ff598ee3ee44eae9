package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/instaagents/discovery/internal/services/bot/storage"
)

// UpsertLead inserts or refreshes the lead for one conversation. The
// creation time of an existing lead is preserved.
func (s *Store) UpsertLead(ctx context.Context, record storage.LeadRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ConversationID) == "" {
		return fmt.Errorf("conversation id is required")
	}

	proposal := record.Proposal
	if strings.TrimSpace(proposal) == "" {
		proposal = "{}"
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO leads (
	conversation_id, business_name, contact_email, proposal, tier,
	calendly_booked, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(conversation_id) DO UPDATE SET
	business_name = excluded.business_name,
	contact_email = excluded.contact_email,
	proposal = excluded.proposal,
	tier = excluded.tier,
	calendly_booked = excluded.calendly_booked,
	updated_at = excluded.updated_at
`,
		record.ConversationID,
		record.BusinessName,
		record.ContactEmail,
		proposal,
		record.Tier,
		record.CalendlyBooked,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("upsert lead: %w", err)
	}
	return nil
}

// GetLead fetches the lead for one conversation.
func (s *Store) GetLead(ctx context.Context, conversationID string) (storage.LeadRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.LeadRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.LeadRecord{}, fmt.Errorf("storage is not configured")
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return storage.LeadRecord{}, fmt.Errorf("conversation id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT conversation_id, business_name, contact_email, proposal, tier,
	calendly_booked, created_at, updated_at
FROM leads
WHERE conversation_id = ?
`, conversationID)

	var rec storage.LeadRecord
	var createdAt int64
	var updatedAt int64
	if err := row.Scan(
		&rec.ConversationID,
		&rec.BusinessName,
		&rec.ContactEmail,
		&rec.Proposal,
		&rec.Tier,
		&rec.CalendlyBooked,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.LeadRecord{}, storage.ErrNotFound
		}
		return storage.LeadRecord{}, fmt.Errorf("get lead: %w", err)
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

// ListLeads returns one page of leads, newest first, with the total count.
func (s *Store) ListLeads(ctx context.Context, limit int, offset int) (storage.LeadPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.LeadPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.LeadPage{}, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return storage.LeadPage{}, fmt.Errorf("limit must be greater than zero")
	}
	if limit > maxListLimit {
		return storage.LeadPage{}, fmt.Errorf("limit must be at most %d", maxListLimit)
	}
	if offset < 0 {
		return storage.LeadPage{}, fmt.Errorf("offset must not be negative")
	}

	var total int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&total); err != nil {
		return storage.LeadPage{}, fmt.Errorf("count leads: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT conversation_id, business_name, contact_email, proposal, tier,
	calendly_booked, created_at, updated_at
FROM leads
ORDER BY created_at DESC, conversation_id
LIMIT ? OFFSET ?
`, limit, offset)
	if err != nil {
		return storage.LeadPage{}, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	page := storage.LeadPage{Leads: make([]storage.LeadRecord, 0, limit), Total: total}
	for rows.Next() {
		var rec storage.LeadRecord
		var createdAt int64
		var updatedAt int64
		if err := rows.Scan(
			&rec.ConversationID,
			&rec.BusinessName,
			&rec.ContactEmail,
			&rec.Proposal,
			&rec.Tier,
			&rec.CalendlyBooked,
			&createdAt,
			&updatedAt,
		); err != nil {
			return storage.LeadPage{}, fmt.Errorf("scan lead row: %w", err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		rec.UpdatedAt = fromMillis(updatedAt)
		page.Leads = append(page.Leads, rec)
	}
	if err := rows.Err(); err != nil {
		return storage.LeadPage{}, fmt.Errorf("iterate lead rows: %w", err)
	}
	return page, nil
}
