package store

import (
	"context"
	"time"

	"papertrade/internal/model"
)

// Store is the durable state behind the position manager and the trader.
type Store interface {
	InsertPosition(ctx context.Context, p model.Position) error
	UpdatePosition(ctx context.Context, p model.Position) error
	Position(ctx context.Context, id string) (model.Position, error)
	OpenPositions(ctx context.Context) ([]model.Position, error)

	InsertTrade(ctx context.Context, t model.Trade) error
	Trades(ctx context.Context, q TradeQuery) ([]model.Trade, error)

	Account(ctx context.Context) (model.AccountState, bool, error)
	PutAccount(ctx context.Context, a model.AccountState) error

	InsertEquitySnapshot(ctx context.Context, s model.EquitySnapshot) error

	// Transaction runs fn against a transactional view. Nothing fn wrote is
	// visible unless fn returns nil.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// TradeQuery filters the trade log. Zero values match everything.
type TradeQuery struct {
	Instrument string
	Since      time.Time
	Limit      int
}

func (q TradeQuery) match(t model.Trade) bool {
	if q.Instrument != "" && t.Instrument != q.Instrument {
		return false
	}
	if !q.Since.IsZero() && t.ExitTime.Before(q.Since) {
		return false
	}
	return true
}
