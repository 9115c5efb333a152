package decision

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"ticker-strategy-lab/internal/analytics"
	"ticker-strategy-lab/internal/domain"
)

// minPoints is the shortest series with a defined return.
const minPoints = 2

// BuildInput computes the raw indicators of series for a risk preference.
func BuildInput(series *domain.PriceSeries, risk int) (*DecisionInput, error) {
	if series == nil || series.Len() < minPoints {
		return nil, ErrInsufficientPrices
	}

	closes := series.Closes()
	ma10, ma50, ma200 := analytics.ComputeMovingAverages(closes).Latest()
	rsi := analytics.RSISimple(closes, analytics.DefaultRSIWindow)

	return &DecisionInput{
		Ticker:               series.Ticker(),
		RiskPreference:       risk,
		HistoricalVolatility: analytics.HistoricalVolatility(closes),
		MeanPrice:            stat.Mean(closes, nil),
		MaxClose:             floats.Max(closes),
		MA10:                 ma10,
		MA50:                 ma50,
		MA200:                ma200,
		RSI:                  rsi[len(rsi)-1],
		Sharpe:               analytics.SharpeRatio(closes),
	}, nil
}

// Index builds and evaluates the decision index of series in one step.
func Index(series *domain.PriceSeries, risk int) (*DecisionResult, error) {
	input, err := BuildInput(series, risk)
	if err != nil {
		return nil, err
	}
	return NewEvaluator().Evaluate(input)
}
