// Package provider fetches daily price histories.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticker-strategy-lab/internal/domain"
)

// Provider errors
var (
	// ErrNoData is returned for an unknown ticker or a range without trading days.
	// Consumers report it as insufficient data, not as a fault.
	ErrNoData = errors.New("no price data")

	ErrInvalidRange = errors.New("start date after end date")
)

// Provider returns the ordered daily closes of a ticker within [start, end].
type Provider interface {
	Fetch(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceSeries, error)
}

// Func adapts an ordinary function to Provider.
type Func func(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceSeries, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceSeries, error) {
	return f(ctx, ticker, start, end)
}

// seriesFromPoints validates points and builds a series; empty input is ErrNoData.
func seriesFromPoints(ticker string, points []domain.PricePoint) (*domain.PriceSeries, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}
	return domain.NewPriceSeries(ticker, points)
}

// checkRange validates a request range.
func checkRange(start, end time.Time) error {
	if domain.TruncateDay(start).After(domain.TruncateDay(end)) {
		return ErrInvalidRange
	}
	return nil
}
