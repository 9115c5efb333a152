package strategy

import (
	"context"
	"errors"

	"ticker-strategy-lab/internal/domain"
)

// Simulation errors
var (
	// ErrInfeasible marks a grid point that violates a budget constraint.
	// The evaluator excludes such points from scoring; it is not a fault.
	ErrInfeasible  = errors.New("infeasible parameters")
	ErrEmptySeries = errors.New("empty price series")
)

// Strategy simulates one parameter combination over a price series.
type Strategy interface {
	// Simulate folds the series left to right and returns a trace with one
	// value per trading day. Deterministic for identical inputs.
	Simulate(ctx context.Context, series *domain.PriceSeries, params domain.StrategyParameters) (*domain.SimulationTrace, error)

	// Type returns the strategy type.
	Type() domain.StrategyType
}
