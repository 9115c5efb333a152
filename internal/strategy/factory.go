package strategy

import (
	"errors"

	"ticker-strategy-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType    = errors.New("unknown strategy type")
	ErrMissingParameter       = errors.New("missing strategy parameter")
	ErrMissingInitialValue    = errors.New("DIP_BUY/LEVERAGED_HOLD requires InitialValue > 0")
	ErrMissingPositionValue   = errors.New("HEDGE requires PositionValue > 0")
	ErrMissingTotalCapital    = errors.New("HEDGE requires TotalCapital > 0")
	ErrInvalidCompounding     = errors.New("unknown compounding convention")
	ErrNegativeInjectionCap   = errors.New("MaxInjection must not be negative")
	ErrInvalidContributionDay = errors.New("ContributionDay must be within 1..31")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Validates required fixed knobs per strategy type.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch cfg.Compounding {
	case "", domain.CompoundingLog, domain.CompoundingSimple:
	default:
		return nil, ErrInvalidCompounding
	}

	switch cfg.Type {
	case domain.StrategyTypeDipBuy:
		return fromDipBuyConfig(cfg)
	case domain.StrategyTypeHedge:
		return fromHedgeConfig(cfg)
	case domain.StrategyTypeLeveragedHold:
		return fromLeveragedHoldConfig(cfg)
	default:
		return nil, ErrUnknownStrategyType
	}
}

// fromDipBuyConfig creates DipBuyStrategy from config.
func fromDipBuyConfig(cfg domain.StrategyConfig) (*DipBuyStrategy, error) {
	if cfg.InitialValue <= 0 {
		return nil, ErrMissingInitialValue
	}
	if cfg.MaxInjection != nil && *cfg.MaxInjection < 0 {
		return nil, ErrNegativeInjectionCap
	}
	if cfg.ContributionDay > 31 {
		return nil, ErrInvalidContributionDay
	}
	return NewDipBuyStrategy(cfg), nil
}

// fromHedgeConfig creates HedgeStrategy from config.
func fromHedgeConfig(cfg domain.StrategyConfig) (*HedgeStrategy, error) {
	if cfg.PositionValue <= 0 {
		return nil, ErrMissingPositionValue
	}
	if cfg.TotalCapital <= 0 {
		return nil, ErrMissingTotalCapital
	}
	return NewHedgeStrategy(cfg), nil
}

// fromLeveragedHoldConfig creates LeveragedHoldStrategy from config.
func fromLeveragedHoldConfig(cfg domain.StrategyConfig) (*LeveragedHoldStrategy, error) {
	if cfg.InitialValue <= 0 {
		return nil, ErrMissingInitialValue
	}
	return NewLeveragedHoldStrategy(cfg), nil
}
