package state

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/internal/store"
	"papertrade/pkg/exception"
)

// TxFunc is an extra write joined to the transaction of Open or Close.
type TxFunc func(ctx context.Context, tx store.Store) error

// PositionManager keeps the open position of each instrument. The map is
// only changed after the backing store has committed, so a failed write
// leaves memory and storage in agreement.
//
// It is not safe for concurrent use.
type PositionManager struct {
	store     store.Store
	positions map[string]model.Position
}

// NewPositionManager creates an empty manager. Call Load to recover the
// positions already in the store.
func NewPositionManager(s store.Store) *PositionManager {
	return &PositionManager{
		store:     s,
		positions: make(map[string]model.Position),
	}
}

// Get returns the open position of instrument.
func (m *PositionManager) Get(instrument string) (model.Position, bool) {
	p, ok := m.positions[instrument]
	return p, ok
}

// Count returns the number of open positions.
func (m *PositionManager) Count() int {
	return len(m.positions)
}

// AllOpen returns the open positions ordered by instrument.
func (m *PositionManager) AllOpen() []model.Position {
	open := make([]model.Position, 0, len(m.positions))
	for _, p := range m.positions {
		open = append(open, p)
	}
	slices.SortFunc(open, func(a, b model.Position) int {
		return strings.Compare(a.Instrument, b.Instrument)
	})
	return open
}

// Open records p as the open position of its instrument.
func (m *PositionManager) Open(ctx context.Context, p model.Position, with ...TxFunc) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !p.IsOpen() {
		return errors.Wrapf(exception.ErrValidation, "open position %s: status %s", p.ID, p.Status)
	}
	if existing, ok := m.positions[p.Instrument]; ok {
		return errors.Wrapf(exception.ErrDuplicatePosition, "open %s: held by %s", p.Instrument, existing.ID)
	}

	err := m.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.InsertPosition(ctx, p); err != nil {
			return err
		}
		return run(ctx, tx, with)
	})
	if err != nil {
		return errors.Wrapf(err, "open position %s", p.ID)
	}

	m.positions[p.Instrument] = p
	return nil
}

// Close closes the open position of instrument, persisting the closed
// position and its trade together with the extra writes.
func (m *PositionManager) Close(ctx context.Context, instrument string, exitPrice, exitCommission decimal.Decimal, reason string, at time.Time, with ...TxFunc) (model.Position, model.Trade, error) {
	p, ok := m.positions[instrument]
	if !ok {
		return model.Position{}, model.Trade{}, errors.Wrapf(exception.ErrNoOpenPosition, "close %s", instrument)
	}

	closed, err := p.Close(exitPrice, exitCommission, reason, at)
	if err != nil {
		return model.Position{}, model.Trade{}, err
	}
	trade, err := model.TradeFromPosition(closed)
	if err != nil {
		return model.Position{}, model.Trade{}, err
	}

	err = m.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.UpdatePosition(ctx, closed); err != nil {
			return err
		}
		if err := tx.InsertTrade(ctx, trade); err != nil {
			return err
		}
		return run(ctx, tx, with)
	})
	if err != nil {
		return model.Position{}, model.Trade{}, errors.Wrapf(err, "close position %s", p.ID)
	}

	delete(m.positions, instrument)
	return closed, trade, nil
}

func run(ctx context.Context, tx store.Store, with []TxFunc) error {
	for _, fn := range with {
		if fn == nil {
			continue
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}
