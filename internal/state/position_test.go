package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/internal/model/enum"
	"papertrade/internal/store"
	"papertrade/pkg/conn"
	"papertrade/pkg/exception"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newPosition(t *testing.T, id, instrument string, direction enum.Direction) model.Position {
	t.Helper()
	p, err := model.NewOpenPosition(id, instrument, direction,
		model.MustDecimal("100"), model.MustDecimal("2"), t0, model.MustDecimal("0.2"), "ema_rsi")
	require.NoError(t, err)
	return p
}

// tradeFailStore fails every trade insert.
type tradeFailStore struct {
	store.Store
}

func (s tradeFailStore) InsertTrade(context.Context, model.Trade) error {
	return errors.Wrap(exception.ErrPersistence, "disk full")
}

func (s tradeFailStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(tradeFailStore{Store: tx})
	})
}

func TestPositionManagerOpenClose(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	m := NewPositionManager(s)

	p := newPosition(t, "pos_1", "BTC/USD", enum.DirectionLong)
	require.NoError(t, m.Open(ctx, p))
	assert.Equal(t, 1, m.Count())

	got, ok := m.Get("BTC/USD")
	require.True(t, ok)
	assert.True(t, got.Equal(p))

	dup := newPosition(t, "pos_2", "BTC/USD", enum.DirectionShort)
	require.ErrorIs(t, m.Open(ctx, dup), exception.ErrDuplicatePosition)
	_, err := s.Position(ctx, "pos_2")
	require.ErrorIs(t, err, exception.ErrNotFound)

	closed, trade, err := m.Close(ctx, "BTC/USD", model.MustDecimal("110"), model.MustDecimal("0.22"), enum.ExitTakeProfit.String(), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, enum.PositionStatusClosed, closed.Status)
	assert.Equal(t, "20", trade.PnL.String())
	assert.Equal(t, "19.58", trade.NetPnL.String())
	assert.Equal(t, 0, m.Count())

	stored, err := s.Position(ctx, "pos_1")
	require.NoError(t, err)
	assert.True(t, stored.Equal(closed))

	trades, err := s.Trades(ctx, store.TradeQuery{})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	_, _, err = m.Close(ctx, "BTC/USD", model.MustDecimal("110"), model.Zero, "again", t0.Add(2*time.Hour))
	require.ErrorIs(t, err, exception.ErrNoOpenPosition)
}

func TestPositionManagerRejectsClosedPosition(t *testing.T) {
	m := NewPositionManager(store.NewMemory())
	p := newPosition(t, "pos_1", "BTC/USD", enum.DirectionLong)
	closed, err := p.Close(model.MustDecimal("101"), model.Zero, "manual", t0.Add(time.Minute))
	require.NoError(t, err)

	require.ErrorIs(t, m.Open(context.Background(), closed), exception.ErrValidation)
	assert.Equal(t, 0, m.Count())
}

func TestPositionManagerFailedWriteLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := NewPositionManager(mem)
	boom := errors.New("account write failed")

	p := newPosition(t, "pos_1", "ETH/USD", enum.DirectionLong)
	err := m.Open(ctx, p, func(context.Context, store.Store) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Count())
	_, err = mem.Position(ctx, "pos_1")
	require.ErrorIs(t, err, exception.ErrNotFound)

	require.NoError(t, m.Open(ctx, p))

	failing := NewPositionManager(tradeFailStore{Store: mem})
	require.NoError(t, failing.Load(ctx))
	_, _, err = failing.Close(ctx, "ETH/USD", model.MustDecimal("90"), model.Zero, enum.ExitStopLoss.String(), t0.Add(time.Hour))
	require.ErrorIs(t, err, exception.ErrPersistence)

	_, ok := failing.Get("ETH/USD")
	assert.True(t, ok, "position must stay open after a failed close")
	stored, err := mem.Position(ctx, "pos_1")
	require.NoError(t, err)
	assert.True(t, stored.IsOpen(), "position row must not be closed without its trade")
}

func stores(t *testing.T) map[string]store.Store {
	t.Helper()
	client, err := conn.New(conn.Option{Driver: conn.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	g := store.NewGorm(client.DB())
	require.NoError(t, g.Migrate(context.Background()))
	return map[string]store.Store{
		"memory": store.NewMemory(),
		"sqlite": g,
	}
}

func requireSameOpen(t *testing.T, want, got []model.Position) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "position %d\nwant: %+v\ngot:  %+v", i, want[i], got[i])
	}
}

func TestPositionManagerLoadIdempotent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := NewPositionManager(s)

			short := newPosition(t, "pos_2", "ETH/USD", enum.DirectionShort)
			short.EntryTime = t0.Add(123456789 * time.Nanosecond)
			require.NoError(t, m.Open(ctx, newPosition(t, "pos_1", "BTC/USD", enum.DirectionLong)))
			require.NoError(t, m.Open(ctx, short))
			require.NoError(t, m.Open(ctx, newPosition(t, "pos_3", "SOL/USD", enum.DirectionLong)))
			_, _, err := m.Close(ctx, "SOL/USD", model.MustDecimal("99"), model.Zero, enum.ExitStrategy.String(), t0.Add(time.Minute))
			require.NoError(t, err)

			before := m.AllOpen()
			snap := m.Snapshot()

			restarted := NewPositionManager(s)
			require.NoError(t, restarted.Load(ctx))
			requireSameOpen(t, before, restarted.AllOpen())
			require.NoError(t, CompareSnapshots(snap, restarted.Snapshot()))

			require.NoError(t, restarted.Load(ctx))
			requireSameOpen(t, before, restarted.AllOpen())
			assert.Equal(t, 2, restarted.Count())

			open := restarted.AllOpen()
			assert.Equal(t, "BTC/USD", open[0].Instrument)
			assert.Equal(t, "ETH/USD", open[1].Instrument)
		})
	}
}

func TestPositionManagerLoadDuplicate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.InsertPosition(ctx, newPosition(t, "pos_1", "BTC/USD", enum.DirectionLong)))
	require.NoError(t, s.InsertPosition(ctx, newPosition(t, "pos_2", "BTC/USD", enum.DirectionShort)))

	m := NewPositionManager(s)
	require.ErrorIs(t, m.Load(ctx), exception.ErrDuplicatePosition)
	assert.Equal(t, 0, m.Count())
}

func TestSnapshotFile(t *testing.T) {
	ctx := context.Background()
	m := NewPositionManager(store.NewMemory())
	require.NoError(t, m.Open(ctx, newPosition(t, "pos_1", "BTC/USD", enum.DirectionLong)))

	path := filepath.Join(t.TempDir(), "snap", "positions.json")
	snap := m.Snapshot()
	require.NoError(t, WriteSnapshot(path, snap))

	read, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.NoError(t, CompareSnapshots(snap, read))

	read.Positions[0].Quantity = model.MustDecimal("3")
	require.Error(t, CompareSnapshots(snap, read))
}
