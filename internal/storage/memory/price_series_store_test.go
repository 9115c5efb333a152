package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/storage"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestPriceSeriesStore_InsertBulkAndGetRange(t *testing.T) {
	store := NewPriceSeriesStore()
	ctx := context.Background()

	points := []domain.PricePoint{
		{Date: day0.AddDate(0, 0, 2), Close: 12},
		{Date: day0, Close: 10},
		{Date: day0.AddDate(0, 0, 1), Close: 11},
	}
	if err := store.InsertBulk(ctx, "QQQ", points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetRange(ctx, "QQQ", day0.AddDate(0, 0, 1), day0.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(result))
	}
	if result[0].Close != 11 || result[1].Close != 12 {
		t.Errorf("Expected ascending order, got %v", result)
	}

	other, _ := store.GetRange(ctx, "SPY", day0, day0.AddDate(1, 0, 0))
	if len(other) != 0 {
		t.Errorf("Expected no points for unknown ticker, got %d", len(other))
	}
}

func TestPriceSeriesStore_DuplicateKey(t *testing.T) {
	store := NewPriceSeriesStore()
	ctx := context.Background()

	points := []domain.PricePoint{{Date: day0, Close: 10}}
	if err := store.InsertBulk(ctx, "QQQ", points); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	// same day at a different hour is still a duplicate
	err := store.InsertBulk(ctx, "QQQ", []domain.PricePoint{{Date: day0.Add(9 * time.Hour), Close: 11}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPriceSeriesStore_IntraBatchDuplicateIsAtomic(t *testing.T) {
	store := NewPriceSeriesStore()
	ctx := context.Background()

	points := []domain.PricePoint{
		{Date: day0, Close: 10},
		{Date: day0.AddDate(0, 0, 1), Close: 11},
		{Date: day0, Close: 12},
	}
	if err := store.InsertBulk(ctx, "QQQ", points); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	result, _ := store.GetRange(ctx, "QQQ", day0, day0.AddDate(0, 0, 5))
	if len(result) != 0 {
		t.Errorf("Expected batch to be rejected entirely, got %d points", len(result))
	}
}

func TestPriceSeriesStore_InvalidInput(t *testing.T) {
	store := NewPriceSeriesStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "", []domain.PricePoint{{Date: day0, Close: 1}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty ticker, got %v", err)
	}
	if err := store.InsertBulk(ctx, "QQQ", []domain.PricePoint{{Date: day0, Close: -1}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for negative close, got %v", err)
	}
}

func TestPriceSeriesStore_Tickers(t *testing.T) {
	store := NewPriceSeriesStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, "SPY", []domain.PricePoint{{Date: day0, Close: 1}})
	_ = store.InsertBulk(ctx, "AAPL", []domain.PricePoint{{Date: day0, Close: 1}})

	tickers, err := store.Tickers(ctx)
	if err != nil {
		t.Fatalf("Tickers failed: %v", err)
	}
	if len(tickers) != 2 || tickers[0] != "AAPL" || tickers[1] != "SPY" {
		t.Errorf("Expected [AAPL SPY], got %v", tickers)
	}
}
