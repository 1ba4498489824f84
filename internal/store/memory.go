package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/pkg/exception"
)

var _ Store = (*Memory)(nil)

type memoryData struct {
	positions map[string]model.Position
	order     []string
	trades    []model.Trade
	account   *model.AccountState
	equity    []model.EquitySnapshot
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		positions: make(map[string]model.Position, len(d.positions)),
		order:     slices.Clone(d.order),
		trades:    slices.Clone(d.trades),
		equity:    slices.Clone(d.equity),
	}
	for id, p := range d.positions {
		c.positions[id] = p
	}
	if d.account != nil {
		a := *d.account
		c.account = &a
	}
	return c
}

// Memory is an in-process Store. Values are copied in and out, so callers
// never share state with it.
type Memory struct {
	mu   sync.Mutex
	data *memoryData
	// tx is set on transactional views; they write to data without locking
	// because the parent holds mu for the whole transaction.
	tx bool
}

func NewMemory() *Memory {
	return &Memory{data: &memoryData{positions: make(map[string]model.Position)}}
}

func (m *Memory) lock() func() {
	if m.tx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) InsertPosition(ctx context.Context, p model.Position) error {
	if err := ctx.Err(); err != nil {
		return errors.Mark(err, exception.ErrPersistence)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	defer m.lock()()

	if _, ok := m.data.positions[p.ID]; ok {
		return errors.Wrapf(exception.ErrPersistence, "insert position %s: id exists", p.ID)
	}
	m.data.positions[p.ID] = p
	m.data.order = append(m.data.order, p.ID)
	return nil
}

func (m *Memory) UpdatePosition(ctx context.Context, p model.Position) error {
	if err := ctx.Err(); err != nil {
		return errors.Mark(err, exception.ErrPersistence)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	defer m.lock()()

	if _, ok := m.data.positions[p.ID]; !ok {
		return errors.Wrapf(exception.ErrNotFound, "update position %s", p.ID)
	}
	m.data.positions[p.ID] = p
	return nil
}

func (m *Memory) Position(ctx context.Context, id string) (model.Position, error) {
	defer m.lock()()

	p, ok := m.data.positions[id]
	if !ok {
		return model.Position{}, errors.Wrapf(exception.ErrNotFound, "position %s", id)
	}
	return p, nil
}

func (m *Memory) OpenPositions(ctx context.Context) ([]model.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Mark(err, exception.ErrPersistence)
	}
	defer m.lock()()

	open := make([]model.Position, 0, len(m.data.positions))
	for _, id := range m.data.order {
		if p := m.data.positions[id]; p.IsOpen() {
			open = append(open, p)
		}
	}
	return open, nil
}

func (m *Memory) InsertTrade(ctx context.Context, t model.Trade) error {
	if err := ctx.Err(); err != nil {
		return errors.Mark(err, exception.ErrPersistence)
	}
	defer m.lock()()

	for _, existing := range m.data.trades {
		if existing.PositionID == t.PositionID {
			return errors.Wrapf(exception.ErrPersistence, "insert trade %s: exists", t.PositionID)
		}
	}
	m.data.trades = append(m.data.trades, t)
	return nil
}

func (m *Memory) Trades(ctx context.Context, q TradeQuery) ([]model.Trade, error) {
	defer m.lock()()

	trades := make([]model.Trade, 0, len(m.data.trades))
	for _, t := range m.data.trades {
		if q.match(t) {
			trades = append(trades, t)
		}
	}
	slices.SortStableFunc(trades, func(a, b model.Trade) int {
		if c := a.ExitTime.Compare(b.ExitTime); c != 0 {
			return c
		}
		return strings.Compare(a.PositionID, b.PositionID)
	})
	if q.Limit > 0 && len(trades) > q.Limit {
		trades = trades[len(trades)-q.Limit:]
	}
	return trades, nil
}

func (m *Memory) Account(ctx context.Context) (model.AccountState, bool, error) {
	defer m.lock()()

	if m.data.account == nil {
		return model.AccountState{}, false, nil
	}
	return *m.data.account, true, nil
}

func (m *Memory) PutAccount(ctx context.Context, a model.AccountState) error {
	if err := ctx.Err(); err != nil {
		return errors.Mark(err, exception.ErrPersistence)
	}
	if err := a.Validate(); err != nil {
		return err
	}
	defer m.lock()()

	m.data.account = &a
	return nil
}

func (m *Memory) InsertEquitySnapshot(ctx context.Context, s model.EquitySnapshot) error {
	defer m.lock()()

	m.data.equity = append(m.data.equity, s)
	return nil
}

// EquitySnapshots returns the recorded equity curve.
func (m *Memory) EquitySnapshots() []model.EquitySnapshot {
	defer m.lock()()
	return slices.Clone(m.data.equity)
}

func (m *Memory) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if m.tx {
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	view := &Memory{data: m.data.clone(), tx: true}
	if err := fn(view); err != nil {
		return err
	}
	m.data = view.data
	return nil
}
