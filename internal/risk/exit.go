package risk

import (
	"github.com/shopspring/decimal"

	"papertrade/internal/model"
	"papertrade/internal/model/enum"
)

// ExitDecision tells whether a position should be closed and why.
type ExitDecision struct {
	Close  bool
	Reason enum.ExitReason
	Detail string
}

// ExitHint is a strategy specific exit condition. It is only asked about
// positions opened by the strategy carrying the same name, and only after
// stop loss and take profit declined.
type ExitHint interface {
	Name() string
	ShouldExit(position model.Position, candles []model.Candle, price decimal.Decimal) (bool, string)
}

// ShouldClose evaluates the stop loss and take profit triggers.
func (m *Manager) ShouldClose(position model.Position, price decimal.Decimal) ExitDecision {
	fraction := position.PnLFraction(price)
	pct := fraction.Mul(hundred).StringFixed(2) + "%"

	if fraction.LessThanOrEqual(m.limits.StopLossFraction.Neg()) {
		return ExitDecision{Close: true, Reason: enum.ExitStopLoss, Detail: "stop loss hit: " + pct}
	}
	if fraction.GreaterThanOrEqual(m.limits.TakeProfitFraction) {
		return ExitDecision{Close: true, Reason: enum.ExitTakeProfit, Detail: "take profit hit: " + pct}
	}
	return ExitDecision{}
}

// ShouldCloseWith is ShouldClose followed by the registered exit hints.
func (m *Manager) ShouldCloseWith(position model.Position, price decimal.Decimal, candles []model.Candle) ExitDecision {
	if d := m.ShouldClose(position, price); d.Close {
		return d
	}
	for _, hint := range m.hints {
		if hint.Name() != position.Strategy {
			continue
		}
		if ok, detail := hint.ShouldExit(position, candles, price); ok {
			return ExitDecision{Close: true, Reason: enum.ExitStrategy, Detail: detail}
		}
	}
	return ExitDecision{}
}
