package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/instaagents/discovery/internal/services/worker/domain"
)

const (
	defaultTickInterval = time.Minute
	defaultRollupEvery  = time.Hour
	defaultSweepEvery   = 30 * time.Minute

	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
)

// Job is one maintenance task the loop schedules.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) (int, error)
}

// ScheduledJob pairs a job with how often it should run. A non-positive
// cadence runs the job on every tick.
type ScheduledJob struct {
	Job   Job
	Every time.Duration
}

// Outcome is one finished job execution.
type Outcome struct {
	Job          string
	Succeeded    bool
	RowsAffected int
	Err          error
	RanAt        time.Time
}

// OutcomeRecorder journals job outcomes.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, outcome Outcome) error
}

// Config controls the shared maintenance tick.
type Config struct {
	TickInterval time.Duration
}

func (c Config) normalized() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	return c
}

// Loop runs maintenance jobs on a shared tick. Jobs run inline on the
// loop goroutine, so two passes never overlap.
type Loop struct {
	jobs     []ScheduledJob
	recorder OutcomeRecorder
	cfg      Config
	now      func() time.Time
}

// New creates a maintenance loop over the scheduled jobs.
func New(jobs []ScheduledJob, recorder OutcomeRecorder, cfg Config, now func() time.Time) *Loop {
	if now == nil {
		now = time.Now
	}
	return &Loop{jobs: jobs, recorder: recorder, cfg: cfg.normalized(), now: now}
}

// Run executes due jobs every tick until ctx is canceled. Each job's
// cadence is measured from startup, so the first pass lands one full
// interval in.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil {
		return fmt.Errorf("worker loop is not configured")
	}

	last := make([]time.Time, len(l.jobs))
	start := l.now()
	for i := range last {
		last[i] = start
	}

	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.runDue(ctx, last, l.now())
		}
	}
}

// runDue runs every job whose cadence has elapsed. Failed jobs keep
// their last-run time so the next tick retries them, unless the failure
// is marked permanent, in which case the job waits out its cadence.
func (l *Loop) runDue(ctx context.Context, last []time.Time, now time.Time) {
	for i, scheduled := range l.jobs {
		if scheduled.Job == nil {
			continue
		}
		if scheduled.Every > 0 && now.Sub(last[i]) < scheduled.Every {
			continue
		}
		if l.runJob(ctx, scheduled.Job, now) {
			last[i] = now
		}
	}
}

func (l *Loop) runJob(ctx context.Context, job Job, now time.Time) bool {
	rows, err := job.Run(ctx, now)
	if err != nil {
		log.Printf("worker job %s: %v", job.Name(), err)
	} else {
		log.Printf("worker job %s touched %d rows", job.Name(), rows)
	}
	if l.recorder != nil {
		outcome := Outcome{
			Job:          job.Name(),
			Succeeded:    err == nil,
			RowsAffected: rows,
			Err:          err,
			RanAt:        now,
		}
		if recordErr := l.recorder.RecordOutcome(ctx, outcome); recordErr != nil {
			log.Printf("record %s outcome: %v", job.Name(), recordErr)
		}
	}
	return err == nil || domain.IsPermanent(err)
}
