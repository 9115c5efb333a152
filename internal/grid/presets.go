package grid

import "ticker-strategy-lab/internal/domain"

// DipBuyGrid sweeps dip thresholds from -10% up to (excluding) 0 in 1% steps
// and monthly contributions from 100 to maxContribution in steps of 100.
func DipBuyGrid(maxContribution float64) (*Grid, error) {
	return New(domain.StrategyTypeDipBuy,
		Dimension{Name: domain.ParamThreshold, Range: Range{Min: -0.10, Max: 0, Step: 0.01, Exclusive: true}},
		Dimension{Name: domain.ParamContribution, Range: Range{Min: 100, Max: maxContribution, Step: 100}},
	)
}

// HedgeGrid sweeps integer leverages for the long and inverse legs and
// 16 hedge multipliers between 0.5x and 2.0x.
func HedgeGrid(maxLeverage, maxInverse int) (*Grid, error) {
	return New(domain.StrategyTypeHedge,
		Dimension{Name: domain.ParamLeverage, Range: Range{Min: 1, Max: float64(maxLeverage), Step: 1}},
		Dimension{Name: domain.ParamInverseLeverage, Range: Range{Min: 1, Max: float64(maxInverse), Step: 1}},
		Dimension{Name: domain.ParamHedgeMultiplier, Range: Range{Values: Linspace(0.5, 2.0, 16)}},
	)
}

// HoldGrid sweeps integer leverages 1..maxLeverage.
func HoldGrid(maxLeverage int) (*Grid, error) {
	return New(domain.StrategyTypeLeveragedHold,
		Dimension{Name: domain.ParamLeverage, Range: Range{Min: 1, Max: float64(maxLeverage), Step: 1}},
	)
}

// Preset returns the default grid for a strategy type.
func Preset(typ domain.StrategyType, maxContribution float64, maxLeverage, maxInverse int) (*Grid, error) {
	switch typ {
	case domain.StrategyTypeDipBuy:
		return DipBuyGrid(maxContribution)
	case domain.StrategyTypeHedge:
		return HedgeGrid(maxLeverage, maxInverse)
	case domain.StrategyTypeLeveragedHold:
		return HoldGrid(maxLeverage)
	default:
		return nil, ErrUnknownPreset
	}
}
