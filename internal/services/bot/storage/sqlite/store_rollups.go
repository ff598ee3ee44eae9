package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/instaagents/discovery/internal/services/bot/storage"
)

// UpsertRollup inserts or replaces the rollup for one UTC day.
func (s *Store) UpsertRollup(ctx context.Context, record storage.RollupRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.Day) == "" {
		return fmt.Errorf("day is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO rollups (
	day, conversations_started, conversations_completed, demos_booked, computed_at
) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(day) DO UPDATE SET
	conversations_started = excluded.conversations_started,
	conversations_completed = excluded.conversations_completed,
	demos_booked = excluded.demos_booked,
	computed_at = excluded.computed_at
`,
		record.Day,
		record.ConversationsStarted,
		record.ConversationsCompleted,
		record.DemosBooked,
		toMillis(record.ComputedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert rollup: %w", err)
	}
	return nil
}

// GetRollup fetches the rollup for one UTC day.
func (s *Store) GetRollup(ctx context.Context, day string) (storage.RollupRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.RollupRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.RollupRecord{}, fmt.Errorf("storage is not configured")
	}
	day = strings.TrimSpace(day)
	if day == "" {
		return storage.RollupRecord{}, fmt.Errorf("day is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT day, conversations_started, conversations_completed, demos_booked, computed_at
FROM rollups
WHERE day = ?
`, day)

	var rec storage.RollupRecord
	var computedAt int64
	if err := row.Scan(
		&rec.Day,
		&rec.ConversationsStarted,
		&rec.ConversationsCompleted,
		&rec.DemosBooked,
		&computedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RollupRecord{}, storage.ErrNotFound
		}
		return storage.RollupRecord{}, fmt.Errorf("get rollup: %w", err)
	}
	rec.ComputedAt = fromMillis(computedAt)
	return rec, nil
}
