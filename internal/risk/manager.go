package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/pkg/exception"
)

var hundred = decimal.NewFromInt(100)

// Decision is the outcome of an admission check. Rule is set only when
// the signal was rejected.
type Decision struct {
	Allowed bool
	Rule    Rule
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true, Reason: "risk checks passed"}
}

func deny(rule Rule, format string, args ...any) Decision {
	return Decision{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// Manager evaluates risk policy. It holds no mutable state; every answer
// depends only on its arguments and the limits it was built with.
type Manager struct {
	limits model.RiskLimits
	hints  []ExitHint
}

// NewManager creates a risk manager. Hints are consulted by ShouldCloseWith
// after the stop loss and take profit triggers.
func NewManager(limits model.RiskLimits, hints ...ExitHint) (*Manager, error) {
	if err := limits.Validate(); err != nil {
		return nil, errors.Wrap(err, "risk limits")
	}
	return &Manager{limits: limits, hints: hints}, nil
}

func (m *Manager) Limits() model.RiskLimits {
	return m.limits
}

// CanOpen applies the admission rules in order and stops at the first
// failure: duplicate instrument, open position count, daily loss, signal
// strength.
func (m *Manager) CanOpen(signal model.Signal, open []model.Position, accountValue, startingBalance decimal.Decimal) Decision {
	for _, p := range open {
		if p.Instrument == signal.Instrument {
			return deny(RuleDuplicate, "already have open position %s for %s", p.ID, signal.Instrument)
		}
	}

	if len(open) >= m.limits.MaxOpenPositions {
		return deny(RuleMaxPositions, "max open positions (%d) reached", m.limits.MaxOpenPositions)
	}

	if !startingBalance.IsPositive() {
		return deny(RuleDailyLoss, "daily loss limit: starting balance %s is not positive", startingBalance)
	}
	daily := dailyFraction(accountValue, startingBalance)
	if daily.LessThanOrEqual(m.limits.MaxDailyLossFraction.Neg()) {
		return deny(RuleDailyLoss, "daily loss limit reached (%s%%)", daily.Mul(hundred).StringFixed(2))
	}

	if signal.Strength.LessThan(m.limits.MinSignalStrength) {
		return deny(RuleSignalStrength, "signal strength too weak (%s < %s)", signal.Strength, m.limits.MinSignalStrength)
	}

	return allow()
}

// SizeFor returns the quantity worth MaxPositionFraction of accountValue at price.
func (m *Manager) SizeFor(accountValue, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, errors.Wrapf(exception.ErrInvalidPrice, "size for price %s", price)
	}
	return accountValue.Mul(m.limits.MaxPositionFraction).Div(price), nil
}

// LossStreak counts the losing trades at the end of recent, which is ordered
// oldest first. Halt reports whether the streak reached MaxConsecutiveLosses;
// it is always false when that limit is zero.
func (m *Manager) LossStreak(recent []model.Trade) (streak int, halt bool) {
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].IsWin() {
			break
		}
		streak++
	}
	limit := m.limits.MaxConsecutiveLosses
	return streak, limit > 0 && streak >= limit
}

// Metrics summarises the day's performance against the loss limit.
type Metrics struct {
	DailyPnL         decimal.Decimal
	DailyPnLFraction decimal.Decimal
	// Headroom is the loss fraction still allowed today. At or below zero
	// the breaker is tripped.
	Headroom             decimal.Decimal
	MaxPositionFraction  decimal.Decimal
	MaxOpenPositions     int
	MaxDailyLossFraction decimal.Decimal
}

func (m *Manager) Metrics(accountValue, startingBalance decimal.Decimal) Metrics {
	metrics := Metrics{
		DailyPnL:             accountValue.Sub(startingBalance),
		MaxPositionFraction:  m.limits.MaxPositionFraction,
		MaxOpenPositions:     m.limits.MaxOpenPositions,
		MaxDailyLossFraction: m.limits.MaxDailyLossFraction,
	}
	if startingBalance.IsPositive() {
		metrics.DailyPnLFraction = dailyFraction(accountValue, startingBalance)
		metrics.Headroom = m.limits.MaxDailyLossFraction.Add(metrics.DailyPnLFraction)
	}
	return metrics
}

func dailyFraction(accountValue, startingBalance decimal.Decimal) decimal.Decimal {
	return accountValue.Sub(startingBalance).Div(startingBalance)
}
