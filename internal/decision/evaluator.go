package decision

import "math"

// riskWeights holds component weights per risk preference, in Indicators
// order. Low risk leans on volatility, high risk on price level and Sharpe.
var riskWeights = map[int][]float64{
	1: {0.40, 0.10, 0.10, 0.10, 0.10, 0.10, 0.10},
	2: {0.30, 0.10, 0.10, 0.10, 0.10, 0.10, 0.20},
	3: {0.20, 0.15, 0.10, 0.10, 0.10, 0.10, 0.25},
	4: {0.10, 0.20, 0.10, 0.10, 0.10, 0.10, 0.30},
	5: {0.05, 0.25, 0.10, 0.10, 0.10, 0.10, 0.30},
}

// Normalization bands for the ratio indicators.
const (
	volatilityCeiling = 100.0
	rsiCeiling        = 100.0
	sharpeFloor       = -2.0
	sharpeCeiling     = 5.0
)

// Outlook thresholds on the composite score.
const (
	positiveAbove = 60.0
	neutralAbove  = 40.0
)

// Evaluator scores DecisionInput into a composite index.
type Evaluator struct{}

// NewEvaluator creates a new decision evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Weights returns a copy of the weight vector for a risk preference.
func Weights(risk int) ([]float64, bool) {
	w, ok := riskWeights[risk]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(w))
	copy(out, w)
	return out, true
}

// Evaluate produces the weighted composite of normalized indicators.
// Undefined indicators are left out and the remaining weights rescaled.
func (e *Evaluator) Evaluate(input *DecisionInput) (*DecisionResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	weights := riskWeights[input.RiskPreference]

	components := make([]ComponentResult, len(Indicators))
	var weighted, total float64
	for i, ind := range Indicators {
		raw := input.raw(ind)
		c := ComponentResult{
			Indicator:  ind,
			Raw:        raw,
			Normalized: e.normalizeIndicator(ind, raw, input.MaxClose),
			Weight:     weights[i],
		}
		if !math.IsNaN(c.Normalized) && !math.IsInf(c.Normalized, 0) {
			c.Used = true
			weighted += c.Normalized * c.Weight
			total += c.Weight
		}
		components[i] = c
	}

	composite := math.NaN()
	if total > 0 {
		composite = weighted / total
	}

	return &DecisionResult{
		Ticker:         input.Ticker,
		RiskPreference: input.RiskPreference,
		Components:     components,
		Composite:      composite,
		Outlook:        OutlookFor(composite),
	}, nil
}

// normalizeIndicator maps a raw value onto 0..100 where higher is better.
func (e *Evaluator) normalizeIndicator(ind Indicator, raw, maxClose float64) float64 {
	switch ind {
	case IndicatorVolatility:
		return normalize(raw, 0, volatilityCeiling, true)
	case IndicatorRSI:
		return normalize(raw, 0, rsiCeiling, true)
	case IndicatorSharpe:
		return normalize(raw, sharpeFloor, sharpeCeiling, false)
	default:
		return normalize(raw, 0, maxClose, false)
	}
}

// OutlookFor classifies a composite score.
func OutlookFor(composite float64) Outlook {
	switch {
	case math.IsNaN(composite):
		return OutlookUnknown
	case composite > positiveAbove:
		return OutlookPositive
	case composite > neutralAbove:
		return OutlookNeutral
	default:
		return OutlookNegative
	}
}

func normalize(v, lo, hi float64, inverse bool) float64 {
	n := (v - lo) / (hi - lo) * 100
	if inverse {
		return 100 - n
	}
	return n
}
