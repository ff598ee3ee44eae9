// Package sqlite implements the worker run journal on an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/instaagents/discovery/internal/platform/storage/sqlitemigrate"
	"github.com/instaagents/discovery/internal/services/worker/storage"
	"github.com/instaagents/discovery/internal/services/worker/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed worker run persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a worker SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordRun persists one maintenance job run.
func (s *Store) RecordRun(ctx context.Context, run storage.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	run.Job = strings.TrimSpace(run.Job)
	run.Outcome = strings.TrimSpace(run.Outcome)
	run.Detail = strings.TrimSpace(run.Detail)
	if run.Job == "" {
		return fmt.Errorf("job is required")
	}
	if run.Outcome == "" {
		return fmt.Errorf("outcome is required")
	}
	if run.RanAt.IsZero() {
		run.RanAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO worker_runs (
	job,
	outcome,
	rows_affected,
	detail,
	ran_at
) VALUES (?, ?, ?, ?, ?)
`,
		run.Job,
		run.Outcome,
		run.RowsAffected,
		run.Detail,
		run.RanAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns lists newest-first run records.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	job,
	outcome,
	rows_affected,
	detail,
	ran_at
FROM worker_runs
ORDER BY ran_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	records := make([]storage.RunRecord, 0, limit)
	for rows.Next() {
		var record storage.RunRecord
		var ranAt int64
		if err := rows.Scan(
			&record.ID,
			&record.Job,
			&record.Outcome,
			&record.RowsAffected,
			&record.Detail,
			&ranAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		record.RanAt = time.UnixMilli(ranAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return records, nil
}

var _ storage.RunStore = (*Store)(nil)
