package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/instaagents/discovery/internal/services/worker/storage"
)

func TestRecordAndListRuns(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	if err := store.RecordRun(context.Background(), storage.RunRecord{
		Job:     "abandoned_sweep",
		Outcome: "failed",
		Detail:  "database is locked",
		RanAt:   now,
	}); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if err := store.RecordRun(context.Background(), storage.RunRecord{
		Job:          "abandoned_sweep",
		Outcome:      "succeeded",
		RowsAffected: 3,
		RanAt:        now.Add(time.Minute),
	}); err != nil {
		t.Fatalf("record run second: %v", err)
	}

	runs, err := store.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs len = %d, want 2", len(runs))
	}
	if runs[0].Outcome != "succeeded" {
		t.Fatalf("runs[0].outcome = %q, want %q", runs[0].Outcome, "succeeded")
	}
	if runs[0].RowsAffected != 3 {
		t.Fatalf("runs[0].rows_affected = %d, want 3", runs[0].RowsAffected)
	}
	if runs[1].Outcome != "failed" {
		t.Fatalf("runs[1].outcome = %q, want %q", runs[1].Outcome, "failed")
	}
	if runs[1].Detail != "database is locked" {
		t.Fatalf("runs[1].detail = %q, want %q", runs[1].Detail, "database is locked")
	}
	if !runs[1].RanAt.Equal(now) {
		t.Fatalf("runs[1].ran_at = %v, want %v", runs[1].RanAt, now)
	}
}

func TestRecordRunValidation(t *testing.T) {
	store := openTempStore(t)

	if err := store.RecordRun(context.Background(), storage.RunRecord{}); err == nil {
		t.Fatal("expected validation error for empty run")
	}
	if err := store.RecordRun(context.Background(), storage.RunRecord{Job: "rollup"}); err == nil {
		t.Fatal("expected validation error for missing outcome")
	}
}

func TestRecordRunDefaultsRanAt(t *testing.T) {
	store := openTempStore(t)

	before := time.Now().UTC().Add(-time.Second)
	if err := store.RecordRun(context.Background(), storage.RunRecord{
		Job:     "rollup",
		Outcome: "succeeded",
	}); err != nil {
		t.Fatalf("record run: %v", err)
	}

	runs, err := store.ListRuns(context.Background(), 1)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs len = %d, want 1", len(runs))
	}
	if runs[0].RanAt.Before(before) {
		t.Fatalf("ran_at = %v, want on or after %v", runs[0].RanAt, before)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
