package storage

import (
	"context"
	"time"
)

// RunRecord is one durable maintenance job outcome record.
type RunRecord struct {
	ID           int64
	Job          string
	Outcome      string
	RowsAffected int
	Detail       string
	RanAt        time.Time
}

// RunStore persists maintenance job run records.
type RunStore interface {
	RecordRun(ctx context.Context, run RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
