package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountState is the single account row.
type AccountState struct {
	Cash decimal.Decimal
	// StartingBalance anchors the daily loss calculation.
	StartingBalance decimal.Decimal
	LastReset       time.Time
	UpdatedAt       time.Time
}

// NewAccountState opens an account with balance as both cash and anchor.
func NewAccountState(balance decimal.Decimal, now time.Time) (AccountState, error) {
	if !balance.IsPositive() {
		return AccountState{}, invalid("starting balance %s must be positive", balance)
	}
	return AccountState{
		Cash:            balance,
		StartingBalance: balance,
		LastReset:       Day(now),
		UpdatedAt:       UTC(now),
	}, nil
}

// WithCash returns a copy holding cash.
func (a AccountState) WithCash(cash decimal.Decimal, now time.Time) AccountState {
	a.Cash = cash
	a.UpdatedAt = UTC(now)
	return a
}

// NeedsReset reports whether now falls on a later UTC day than LastReset.
func (a AccountState) NeedsReset(now time.Time) bool {
	return Day(now).After(Day(a.LastReset))
}

// Rebase returns a copy anchored at value for the day of now. A negative
// value anchors at zero.
func (a AccountState) Rebase(value decimal.Decimal, now time.Time) AccountState {
	a.StartingBalance = decimal.Max(value, decimal.Zero)
	a.LastReset = Day(now)
	a.UpdatedAt = UTC(now)
	return a
}

// Validate allows negative cash: a short losing more than its collateral
// must still be closable. A zero anchor is allowed and keeps the daily loss
// breaker tripped.
func (a AccountState) Validate() error {
	if a.StartingBalance.IsNegative() {
		return invalid("account starting balance %s is negative", a.StartingBalance)
	}
	if a.LastReset.IsZero() {
		return invalid("account last reset is missing")
	}
	return nil
}

// EquitySnapshot is one point of the equity curve.
type EquitySnapshot struct {
	Time          time.Time
	Cash          decimal.Decimal
	Equity        decimal.Decimal
	UnrealizedPnL decimal.Decimal
	OpenPositions int
}
