package analytics

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{1, 2, 3, 4}, 2)
	if !math.IsNaN(got[0]) {
		t.Errorf("expected NaN before the window fills, got %v", got[0])
	}
	want := []float64{1.5, 2.5, 3.5}
	for i, w := range want {
		if math.Abs(got[i+1]-w) > eps {
			t.Errorf("index %d: expected %v, got %v", i+1, w, got[i+1])
		}
	}

	ma := ComputeMovingAverages([]float64{1, 2, 3})
	ma10, ma50, ma200 := ma.Latest()
	if !math.IsNaN(ma10) || !math.IsNaN(ma50) || !math.IsNaN(ma200) {
		t.Error("expected all averages undefined for a 3-point series")
	}
}

func TestRSI_Wilder(t *testing.T) {
	got := RSI([]float64{10, 11, 10, 12}, 2)

	if !math.IsNaN(got[1]) {
		t.Errorf("expected NaN at index 1, got %v", got[1])
	}
	if math.Abs(got[2]-50) > eps {
		t.Errorf("expected 50 at index 2, got %v", got[2])
	}
	// gain (0.5+2)/2 = 1.25, loss 0.5/2 = 0.25, rs = 5
	if math.Abs(got[3]-(100-100.0/6)) > eps {
		t.Errorf("expected %v at index 3, got %v", 100-100.0/6, got[3])
	}
}

func TestRSISimple(t *testing.T) {
	got := RSISimple([]float64{10, 11, 10, 12}, 2)

	if math.Abs(got[2]-50) > eps {
		t.Errorf("expected 50 at index 2, got %v", got[2])
	}
	// deltas -1, +2: gain 1, loss 0.5, rs = 2
	if math.Abs(got[3]-(100-100.0/3)) > eps {
		t.Errorf("expected %v at index 3, got %v", 100-100.0/3, got[3])
	}
}

func TestRSI_Degenerate(t *testing.T) {
	rising := RSISimple([]float64{1, 2, 3, 4}, 2)
	if rising[3] != 100 {
		t.Errorf("expected 100 without losses, got %v", rising[3])
	}

	flat := RSI([]float64{5, 5, 5, 5}, 2)
	if !math.IsNaN(flat[3]) {
		t.Errorf("expected NaN for a flat window, got %v", flat[3])
	}

	short := RSI([]float64{1, 2}, 14)
	for _, v := range short {
		if !math.IsNaN(v) {
			t.Errorf("expected NaN for short input, got %v", v)
		}
	}
}

func TestSharpeRatio(t *testing.T) {
	closes := []float64{100, 102, 101, 104}
	r := []float64{0.02, 101.0/102 - 1, 104.0/101 - 1}
	mean := (r[0] + r[1] + r[2]) / 3
	ss := 0.0
	for _, v := range r {
		ss += (v - mean) * (v - mean)
	}
	want := mean / math.Sqrt(ss/2) * math.Sqrt(252)

	if got := SharpeRatio(closes); math.Abs(got-want) > eps {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSharpeRatio_ZeroVarianceIsNaN(t *testing.T) {
	if got := SharpeRatio([]float64{5, 5, 5, 5}); !math.IsNaN(got) {
		t.Errorf("expected NaN for zero variance, got %v", got)
	}
	if got := SharpeRatio([]float64{5, 6}); !math.IsNaN(got) {
		t.Errorf("expected NaN for a single return, got %v", got)
	}
}

func TestHistoricalVolatility(t *testing.T) {
	// returns +0.1, -0.1: sample std = sqrt(0.02)
	want := math.Sqrt(0.02) * math.Sqrt(252) * 100
	if got := HistoricalVolatility([]float64{100, 110, 99}); math.Abs(got-want) > 1e-6 {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := HistoricalVolatility([]float64{100}); !math.IsNaN(got) {
		t.Errorf("expected NaN, got %v", got)
	}
}

func TestCorrelation(t *testing.T) {
	if got := Correlation([]float64{1, 2, 3}, []float64{2, 4, 6}); math.Abs(got-1) > eps {
		t.Errorf("expected 1, got %v", got)
	}
	if got := Correlation([]float64{1, 2, 3}, []float64{6, 4, 2, 100}); math.Abs(got+1) > eps {
		t.Errorf("expected -1 over the common prefix, got %v", got)
	}
	if got := Correlation([]float64{1}, []float64{1}); !math.IsNaN(got) {
		t.Errorf("expected NaN, got %v", got)
	}
}

func TestConsecutiveProbability(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 3}

	up, down := ConsecutiveProbability(closes, 2)
	if math.Abs(up-1.0/3) > eps || down != 0 {
		t.Errorf("days=2: expected up 1/3 down 0, got %v %v", up, down)
	}

	up, down = ConsecutiveProbability(closes, 1)
	if math.Abs(up-0.5) > eps || math.Abs(down-0.25) > eps {
		t.Errorf("days=1: expected up 0.5 down 0.25, got %v %v", up, down)
	}

	up, down = ConsecutiveProbability(closes, 10)
	if !math.IsNaN(up) || !math.IsNaN(down) {
		t.Errorf("expected NaN when no window fits, got %v %v", up, down)
	}
}
