// Package domain implements the worker's maintenance jobs.
package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/instaagents/discovery/internal/services/bot/storage"
)

// RollupStore is the conversation aggregation surface the rollup job uses.
type RollupStore interface {
	ConversationDayCounts(ctx context.Context, from time.Time, to time.Time) (storage.DayCounts, error)
	UpsertRollup(ctx context.Context, record storage.RollupRecord) error
}

// RollupJob recomputes per-day conversation rollups.
//
// Each pass recomputes the current UTC day and the one before it, so
// completions and bookings that land after midnight still settle on the
// day their conversation started.
type RollupJob struct {
	store RollupStore
}

// NewRollupJob creates a rollup job over the conversation store.
func NewRollupJob(store RollupStore) *RollupJob {
	return &RollupJob{store: store}
}

// Name identifies the job in logs and the run journal.
func (j *RollupJob) Name() string { return "rollup" }

// Run upserts rollups for the current and previous UTC day and returns
// how many days it recomputed.
func (j *RollupJob) Run(ctx context.Context, now time.Time) (int, error) {
	if j == nil || j.store == nil {
		return 0, Permanent(fmt.Errorf("rollup store is not configured"))
	}

	today := DayStart(now)
	days := []time.Time{today.AddDate(0, 0, -1), today}
	for _, day := range days {
		counts, err := j.store.ConversationDayCounts(ctx, day, day.AddDate(0, 0, 1))
		if err != nil {
			return 0, fmt.Errorf("count day %s: %w", DayKey(day), err)
		}
		if err := j.store.UpsertRollup(ctx, storage.RollupRecord{
			Day:                    DayKey(day),
			ConversationsStarted:   counts.Started,
			ConversationsCompleted: counts.Completed,
			DemosBooked:            counts.DemosBooked,
			ComputedAt:             now,
		}); err != nil {
			return 0, fmt.Errorf("upsert rollup %s: %w", DayKey(day), err)
		}
	}
	return len(days), nil
}

// DayStart truncates a time to the start of its UTC day.
func DayStart(value time.Time) time.Time {
	utc := value.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats a time as its UTC rollup day key.
func DayKey(value time.Time) string {
	return value.UTC().Format("2006-01-02")
}
