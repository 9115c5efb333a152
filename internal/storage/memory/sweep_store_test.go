package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/storage"
)

func TestSweepStore_InsertAndGetRun(t *testing.T) {
	store := NewSweepStore()
	ctx := context.Background()

	best := 1234.5
	run := &domain.SweepRun{
		RunID:     "run-1",
		Ticker:    "^IXIC",
		Strategy:  domain.StrategyTypeDipBuy,
		GridSize:  100,
		Status:    domain.OutcomeOK,
		BestScore: &best,
		CreatedAt: day0,
	}
	if err := store.InsertRun(ctx, run); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Ticker != "^IXIC" || *got.BestScore != 1234.5 {
		t.Errorf("unexpected run %+v", got)
	}

	if err := store.InsertRun(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSweepStore_ResultsRankedAndTraceDropped(t *testing.T) {
	store := NewSweepStore()
	ctx := context.Background()

	results := []*domain.ScoredResult{
		{ResultID: "a", Index: 0, Score: 10, Trace: &domain.SimulationTrace{Values: []float64{1}}},
		{ResultID: "b", Index: 1, Score: 30},
		{ResultID: "c", Index: 2, Score: 30},
		{ResultID: "d", Index: 3, Score: 20},
	}
	if err := store.InsertResults(ctx, "run-1", results); err != nil {
		t.Fatalf("InsertResults failed: %v", err)
	}

	got, err := store.GetResults(ctx, "run-1", 3)
	if err != nil {
		t.Fatalf("GetResults failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(got))
	}
	if got[0].ResultID != "b" || got[1].ResultID != "c" || got[2].ResultID != "d" {
		t.Errorf("unexpected order %s %s %s", got[0].ResultID, got[1].ResultID, got[2].ResultID)
	}

	all, _ := store.GetResults(ctx, "run-1", 0)
	for _, r := range all {
		if r.Trace != nil {
			t.Errorf("result %s: trace should not be stored", r.ResultID)
		}
	}
	if results[0].Trace == nil {
		t.Error("InsertResults mutated caller's result")
	}
}

func TestSweepStore_DuplicateResult(t *testing.T) {
	store := NewSweepStore()
	ctx := context.Background()

	_ = store.InsertResults(ctx, "run-1", []*domain.ScoredResult{{ResultID: "a"}})
	err := store.InsertResults(ctx, "run-1", []*domain.ScoredResult{{ResultID: "b"}, {ResultID: "a"}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	all, _ := store.GetResults(ctx, "run-1", 0)
	if len(all) != 1 {
		t.Errorf("Expected batch to be rejected entirely, got %d results", len(all))
	}
}

func TestSweepStore_ListRuns(t *testing.T) {
	store := NewSweepStore()
	ctx := context.Background()

	_ = store.InsertRun(ctx, &domain.SweepRun{RunID: "r2", Ticker: "SPY", CreatedAt: day0.Add(time.Hour)})
	_ = store.InsertRun(ctx, &domain.SweepRun{RunID: "r1", Ticker: "SPY", CreatedAt: day0.Add(time.Hour)})
	_ = store.InsertRun(ctx, &domain.SweepRun{RunID: "r0", Ticker: "SPY", CreatedAt: day0})
	_ = store.InsertRun(ctx, &domain.SweepRun{RunID: "x", Ticker: "QQQ", CreatedAt: day0})

	runs, err := store.ListRuns(ctx, "SPY")
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 || runs[0].RunID != "r0" || runs[1].RunID != "r1" || runs[2].RunID != "r2" {
		t.Errorf("unexpected runs %v", runs)
	}

	all, _ := store.ListRuns(ctx, "")
	if len(all) != 4 {
		t.Errorf("Expected 4 runs, got %d", len(all))
	}
}
