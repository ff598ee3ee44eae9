package domain

import (
	"context"
	"fmt"
	"time"
)

// DefaultAbandonAfter is how long a conversation may idle before the
// sweep closes it.
const DefaultAbandonAfter = 30 * time.Minute

// SweepStore is the conversation surface the abandoned sweep uses.
type SweepStore interface {
	MarkAbandoned(ctx context.Context, idleSince time.Time, abandonedAt time.Time) (int, error)
}

// SweepJob closes conversations that stalled mid-dialogue.
type SweepJob struct {
	store        SweepStore
	abandonAfter time.Duration
}

// NewSweepJob creates an abandoned-conversation sweep. A non-positive
// abandonAfter falls back to DefaultAbandonAfter.
func NewSweepJob(store SweepStore, abandonAfter time.Duration) *SweepJob {
	if abandonAfter <= 0 {
		abandonAfter = DefaultAbandonAfter
	}
	return &SweepJob{store: store, abandonAfter: abandonAfter}
}

// Name identifies the job in logs and the run journal.
func (j *SweepJob) Name() string { return "abandoned_sweep" }

// Run marks conversations idle past the abandon threshold and returns
// how many it closed.
func (j *SweepJob) Run(ctx context.Context, now time.Time) (int, error) {
	if j == nil || j.store == nil {
		return 0, Permanent(fmt.Errorf("sweep store is not configured"))
	}
	return j.store.MarkAbandoned(ctx, now.Add(-j.abandonAfter), now)
}
