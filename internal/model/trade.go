package model

import (
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/model/enum"
)

// Trade is the append-only record of a closed position.
type Trade struct {
	PositionID  string
	Instrument  string
	Direction   enum.Direction
	EntryPrice  decimal.Decimal
	ExitPrice   decimal.Decimal
	Quantity    decimal.Decimal
	EntryTime   time.Time
	ExitTime    time.Time
	PnL         decimal.Decimal
	PnLFraction decimal.Decimal
	Commission  decimal.Decimal
	NetPnL      decimal.Decimal
	Strategy    string
	ExitReason  string
}

// TradeFromPosition derives the trade of a closed position.
func TradeFromPosition(p Position) (Trade, error) {
	if p.IsOpen() {
		return Trade{}, invalid("position %s is still open", p.ID)
	}
	pnl := p.RealizedPnL()
	commission := p.Commission()
	return Trade{
		PositionID:  p.ID,
		Instrument:  p.Instrument,
		Direction:   p.Direction,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   p.ExitPrice,
		Quantity:    p.Quantity,
		EntryTime:   p.EntryTime,
		ExitTime:    p.ExitTime,
		PnL:         pnl,
		PnLFraction: p.PnLFraction(p.ExitPrice),
		Commission:  commission,
		NetPnL:      pnl.Sub(commission),
		Strategy:    p.Strategy,
		ExitReason:  p.ExitReason,
	}, nil
}

func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

func (t Trade) IsWin() bool {
	return t.NetPnL.IsPositive()
}
