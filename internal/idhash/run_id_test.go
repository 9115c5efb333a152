package idhash

import (
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"ticker-strategy-lab/internal/domain"
)

var (
	start = time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
)

func TestComputeRunID_Determinism(t *testing.T) {
	results := make([]string, 10)
	for i := range results {
		results[i] = ComputeRunID("^IXIC", domain.StrategyTypeDipBuy, start, end, "grid", "cfg")
	}

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Errorf("ComputeRunID() not deterministic: run %d = %s, run 0 = %s", i, results[i], results[0])
		}
	}
	if len(results[0]) != IDLength {
		t.Errorf("ComputeRunID() length = %d, want %d", len(results[0]), IDLength)
	}
	if _, err := base58.Decode(results[0]); err != nil {
		t.Errorf("ComputeRunID() is not base58: %v", err)
	}
}

func TestComputeRunID_IgnoresTimeOfDay(t *testing.T) {
	a := ComputeRunID("SPY", domain.StrategyTypeHedge, start, end, "g", "c")
	b := ComputeRunID("SPY", domain.StrategyTypeHedge, start.Add(15*time.Hour), end.Add(time.Minute), "g", "c")
	if a != b {
		t.Errorf("expected same id for same trading days: %s != %s", a, b)
	}
}

func TestComputeRunID_DifferentInputs(t *testing.T) {
	base := ComputeRunID("SPY", domain.StrategyTypeHedge, start, end, "g", "c")

	variants := []string{
		ComputeRunID("QQQ", domain.StrategyTypeHedge, start, end, "g", "c"),
		ComputeRunID("SPY", domain.StrategyTypeDipBuy, start, end, "g", "c"),
		ComputeRunID("SPY", domain.StrategyTypeHedge, start.AddDate(0, 0, 1), end, "g", "c"),
		ComputeRunID("SPY", domain.StrategyTypeHedge, start, end, "g2", "c"),
		ComputeRunID("SPY", domain.StrategyTypeHedge, start, end, "g", "c2"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base id %s", i, base)
		}
	}
}

func TestComputeResultID(t *testing.T) {
	p := domain.NewStrategyParameters(domain.Param{Name: domain.ParamLeverage, Value: 2})

	a := ComputeResultID("run", 0, p)
	if a != ComputeResultID("run", 0, p) {
		t.Error("ComputeResultID() not deterministic")
	}
	if a == ComputeResultID("run", 1, p) || a == ComputeResultID("run2", 0, p) {
		t.Error("ComputeResultID() collides for different inputs")
	}
}
