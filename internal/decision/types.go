package decision

import (
	"errors"
	"fmt"
)

// Input validation errors.
var (
	ErrNilInput           = errors.New("decision input is nil")
	ErrInvalidRisk        = errors.New("risk preference must be between 1 and 5")
	ErrInsufficientPrices = errors.New("insufficient price history")
)

// Risk preference bounds.
const (
	MinRisk     = 1
	MaxRisk     = 5
	DefaultRisk = 3
)

// Outlook is the verdict derived from the composite score.
type Outlook string

const (
	OutlookPositive Outlook = "POSITIVE"
	OutlookNeutral  Outlook = "NEUTRAL"
	OutlookNegative Outlook = "NEGATIVE"
	OutlookUnknown  Outlook = "UNKNOWN" // every indicator undefined
)

// Indicator names one composite component.
type Indicator string

const (
	IndicatorVolatility Indicator = "historical_volatility"
	IndicatorMeanPrice  Indicator = "mean_price"
	IndicatorMA10       Indicator = "ma10"
	IndicatorMA50       Indicator = "ma50"
	IndicatorMA200      Indicator = "ma200"
	IndicatorRSI        Indicator = "rsi"
	IndicatorSharpe     Indicator = "sharpe_ratio"
)

// Indicators lists components in weight-table order.
var Indicators = []Indicator{
	IndicatorVolatility,
	IndicatorMeanPrice,
	IndicatorMA10,
	IndicatorMA50,
	IndicatorMA200,
	IndicatorRSI,
	IndicatorSharpe,
}

// DecisionInput contains the raw indicator values of one ticker.
type DecisionInput struct {
	Ticker         string
	RiskPreference int

	HistoricalVolatility float64 // annualized, percent
	MeanPrice            float64 // mean close over the window
	MaxClose             float64 // normalization ceiling for price-level indicators
	MA10                 float64 // latest values; NaN when the window never filled
	MA50                 float64
	MA200                float64
	RSI                  float64
	Sharpe               float64
}

// Validate checks the input can be scored.
func (in *DecisionInput) Validate() error {
	if in == nil {
		return ErrNilInput
	}
	if in.RiskPreference < MinRisk || in.RiskPreference > MaxRisk {
		return fmt.Errorf("%w: got %d", ErrInvalidRisk, in.RiskPreference)
	}
	if !(in.MaxClose > 0) {
		return ErrInsufficientPrices
	}
	return nil
}

// raw returns the input value for an indicator.
func (in *DecisionInput) raw(ind Indicator) float64 {
	switch ind {
	case IndicatorVolatility:
		return in.HistoricalVolatility
	case IndicatorMeanPrice:
		return in.MeanPrice
	case IndicatorMA10:
		return in.MA10
	case IndicatorMA50:
		return in.MA50
	case IndicatorMA200:
		return in.MA200
	case IndicatorRSI:
		return in.RSI
	default:
		return in.Sharpe
	}
}

// ComponentResult is one weighted indicator of the composite.
type ComponentResult struct {
	Indicator  Indicator
	Raw        float64
	Normalized float64 // 0..100 scale, may fall outside for out-of-band values
	Weight     float64
	Used       bool // false when the raw value is undefined
}

// DecisionResult contains the composite score with its components.
type DecisionResult struct {
	Ticker         string
	RiskPreference int
	Components     []ComponentResult
	Composite      float64
	Outlook        Outlook
}
