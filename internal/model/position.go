package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/model/enum"
)

// Position is a value. Closing returns a new Position that supersedes the
// open one; nothing edits a Position in place.
type Position struct {
	ID              string
	Instrument      string
	Direction       enum.Direction
	EntryPrice      decimal.Decimal
	Quantity        decimal.Decimal
	EntryTime       time.Time
	EntryCommission decimal.Decimal
	Strategy        string
	Status          enum.PositionStatus

	ExitPrice      decimal.Decimal
	ExitTime       time.Time
	ExitCommission decimal.Decimal
	ExitReason     string
}

// NewOpenPosition builds a validated open position. entryTime is the fill
// time.
func NewOpenPosition(id, instrument string, direction enum.Direction, entryPrice, quantity decimal.Decimal, entryTime time.Time, commission decimal.Decimal, strategy string) (Position, error) {
	p := Position{
		ID:              id,
		Instrument:      instrument,
		Direction:       direction,
		EntryPrice:      entryPrice,
		Quantity:        quantity,
		EntryTime:       UTC(entryTime),
		EntryCommission: commission,
		Strategy:        strategy,
		Status:          enum.PositionStatusOpen,
	}
	if err := p.Validate(); err != nil {
		return Position{}, err
	}
	return p, nil
}

// Validate checks field ranges and the open/closed invariants.
func (p Position) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return invalid("position has no id")
	}
	if !ValidInstrument(p.Instrument) {
		return invalid("position %s instrument %q must be BASE/QUOTE", p.ID, p.Instrument)
	}
	if !p.Direction.IsAvailable() {
		return invalid("position %s has unknown direction", p.ID)
	}
	if !p.EntryPrice.IsPositive() {
		return invalid("position %s entry price must be positive", p.ID)
	}
	if !p.Quantity.IsPositive() {
		return invalid("position %s quantity must be positive", p.ID)
	}
	if p.EntryTime.IsZero() {
		return invalid("position %s has no entry time", p.ID)
	}
	if p.EntryCommission.IsNegative() || p.ExitCommission.IsNegative() {
		return invalid("position %s commission is negative", p.ID)
	}
	if strings.TrimSpace(p.Strategy) == "" {
		return invalid("position %s has no strategy", p.ID)
	}

	switch p.Status {
	case enum.PositionStatusOpen:
		if !p.ExitPrice.IsZero() || !p.ExitTime.IsZero() || p.ExitReason != "" || !p.ExitCommission.IsZero() {
			return invalid("open position %s carries exit fields", p.ID)
		}
	case enum.PositionStatusClosed:
		if !p.ExitPrice.IsPositive() {
			return invalid("closed position %s has no exit price", p.ID)
		}
		if p.ExitTime.IsZero() {
			return invalid("closed position %s has no exit time", p.ID)
		}
		if p.ExitTime.Before(p.EntryTime) {
			return invalid("closed position %s exits before entry", p.ID)
		}
	default:
		return invalid("position %s has unknown status", p.ID)
	}
	return nil
}

func (p Position) IsOpen() bool {
	return p.Status == enum.PositionStatusOpen
}

// Close returns the closed position. The receiver is left untouched.
func (p Position) Close(exitPrice, exitCommission decimal.Decimal, reason string, at time.Time) (Position, error) {
	if !p.IsOpen() {
		return Position{}, invalid("position %s is already closed", p.ID)
	}
	closed := p
	closed.Status = enum.PositionStatusClosed
	closed.ExitPrice = exitPrice
	closed.ExitTime = UTC(at)
	closed.ExitCommission = exitCommission
	closed.ExitReason = reason
	if err := closed.Validate(); err != nil {
		return Position{}, err
	}
	return closed, nil
}

// Notional is the entry exposure, quantity x entry price.
func (p Position) Notional() decimal.Decimal {
	return p.EntryPrice.Mul(p.Quantity)
}

// UnrealizedPnL is the gross profit at price, signed by direction.
func (p Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(p.EntryPrice)
	if p.Direction == enum.DirectionShort {
		diff = diff.Neg()
	}
	return diff.Mul(p.Quantity)
}

// PnLFraction is UnrealizedPnL relative to the entry notional.
func (p Position) PnLFraction(price decimal.Decimal) decimal.Decimal {
	notional := p.Notional()
	if notional.IsZero() {
		return Zero
	}
	return p.UnrealizedPnL(price).Div(notional)
}

// RealizedPnL is the gross profit of a closed position, before commission.
func (p Position) RealizedPnL() decimal.Decimal {
	if p.IsOpen() {
		return Zero
	}
	return p.UnrealizedPnL(p.ExitPrice)
}

// Commission is what both legs have paid so far.
func (p Position) Commission() decimal.Decimal {
	return p.EntryCommission.Add(p.ExitCommission)
}

// Equal compares by value: decimals numerically and times as instants.
func (p Position) Equal(o Position) bool {
	return p.ID == o.ID &&
		p.Instrument == o.Instrument &&
		p.Direction == o.Direction &&
		p.EntryPrice.Equal(o.EntryPrice) &&
		p.Quantity.Equal(o.Quantity) &&
		p.EntryTime.Equal(o.EntryTime) &&
		p.EntryCommission.Equal(o.EntryCommission) &&
		p.Strategy == o.Strategy &&
		p.Status == o.Status &&
		p.ExitPrice.Equal(o.ExitPrice) &&
		p.ExitTime.Equal(o.ExitTime) &&
		p.ExitCommission.Equal(o.ExitCommission) &&
		p.ExitReason == o.ExitReason
}
