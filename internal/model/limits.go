package model

import (
	"github.com/shopspring/decimal"

	"papertrade/internal/model/enum"
)

// RiskLimits is fixed for the lifetime of a run.
type RiskLimits struct {
	MaxPositionFraction  decimal.Decimal `json:"maxPositionFraction"`
	MaxOpenPositions     int             `json:"maxOpenPositions"`
	MaxDailyLossFraction decimal.Decimal `json:"maxDailyLossFraction"`
	StopLossFraction     decimal.Decimal `json:"stopLossFraction"`
	TakeProfitFraction   decimal.Decimal `json:"takeProfitFraction"`
	MinSignalStrength    decimal.Decimal `json:"minSignalStrength"`
	// MaxConsecutiveLosses halts entries for the rest of the UTC day and
	// liquidates the book after that many losing trades in a row. Zero
	// disables it.
	MaxConsecutiveLosses int `json:"maxConsecutiveLosses"`
}

// DefaultRiskLimits mirrors the reference settings.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionFraction:  MustDecimal("0.1"),
		MaxOpenPositions:     3,
		MaxDailyLossFraction: MustDecimal("0.05"),
		StopLossFraction:     MustDecimal("0.02"),
		TakeProfitFraction:   MustDecimal("0.05"),
		MinSignalStrength:    MustDecimal("0.6"),
	}
}

func (l RiskLimits) Validate() error {
	if !l.MaxPositionFraction.IsPositive() || l.MaxPositionFraction.GreaterThan(One) {
		return invalid("maxPositionFraction %s outside (0,1]", l.MaxPositionFraction)
	}
	if l.MaxOpenPositions <= 0 {
		return invalid("maxOpenPositions must be > 0")
	}
	if !l.MaxDailyLossFraction.IsPositive() || l.MaxDailyLossFraction.GreaterThan(One) {
		return invalid("maxDailyLossFraction %s outside (0,1]", l.MaxDailyLossFraction)
	}
	if !l.StopLossFraction.IsPositive() {
		return invalid("stopLossFraction must be > 0")
	}
	if !l.TakeProfitFraction.IsPositive() {
		return invalid("takeProfitFraction must be > 0")
	}
	if l.MinSignalStrength.IsNegative() || l.MinSignalStrength.GreaterThan(One) {
		return invalid("minSignalStrength %s outside [0,1]", l.MinSignalStrength)
	}
	if l.MaxConsecutiveLosses < 0 {
		return invalid("maxConsecutiveLosses must be >= 0")
	}
	return nil
}

// FillModel simulates an imperfect market fill.
type FillModel struct {
	SlippageFraction   decimal.Decimal `json:"slippageFraction"`
	CommissionFraction decimal.Decimal `json:"commissionFraction"`
}

func DefaultFillModel() FillModel {
	return FillModel{
		SlippageFraction:   MustDecimal("0.001"),
		CommissionFraction: MustDecimal("0.001"),
	}
}

func (f FillModel) Validate() error {
	if f.SlippageFraction.IsNegative() || f.SlippageFraction.GreaterThanOrEqual(One) {
		return invalid("slippageFraction %s outside [0,1)", f.SlippageFraction)
	}
	if f.CommissionFraction.IsNegative() || f.CommissionFraction.GreaterThanOrEqual(One) {
		return invalid("commissionFraction %s outside [0,1)", f.CommissionFraction)
	}
	return nil
}

// EntryPrice moves price against the trader: up for longs, down for shorts.
func (f FillModel) EntryPrice(direction enum.Direction, price decimal.Decimal) decimal.Decimal {
	if direction == enum.DirectionShort {
		return price.Mul(One.Sub(f.SlippageFraction))
	}
	return price.Mul(One.Add(f.SlippageFraction))
}

// ExitPrice is the inverse adjustment: down for longs, up for shorts.
func (f FillModel) ExitPrice(direction enum.Direction, price decimal.Decimal) decimal.Decimal {
	if direction == enum.DirectionShort {
		return price.Mul(One.Add(f.SlippageFraction))
	}
	return price.Mul(One.Sub(f.SlippageFraction))
}

// Commission is quantity x price x commission fraction.
func (f FillModel) Commission(quantity, price decimal.Decimal) decimal.Decimal {
	return quantity.Mul(price).Mul(f.CommissionFraction)
}
