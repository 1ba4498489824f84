package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/model"
	"papertrade/internal/model/enum"
	"papertrade/internal/ops"
	"papertrade/internal/state"
	"papertrade/internal/store"
	"papertrade/internal/strategy"
)

func testConfig() ops.Config {
	cfg := ops.Default()
	cfg.Feed.Kind = ops.FeedStatic
	return cfg
}

func TestNewStrategiesSkipsDisabled(t *testing.T) {
	off := false
	got, err := newStrategies([]ops.StrategyConfig{
		{Name: strategy.NameEMARSI, Enabled: &off},
		{Name: strategy.NameEMACrossover},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, strategy.NameEMACrossover, got[0].Name())

	_, err = newStrategies([]ops.StrategyConfig{{Name: "nope"}})
	require.Error(t, err)
}

func TestBuildMemory(t *testing.T) {
	a, err := build(context.Background(), testConfig())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.client)
	assert.IsType(t, &store.Memory{}, a.store)
	assert.Equal(t, "10000", a.trader.Account().Cash.String())
}

func TestBuildSQLite(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "paper.db")

	a, err := build(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &store.Gorm{}, a.store)
	a.Close()

	// the account row survives a restart
	a, err = build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "10000", a.trader.Account().Cash.String())
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	a, err := build(ctx, testConfig())
	require.NoError(t, err)
	defer a.Close()

	signal, err := model.NewSignal("BTC/USDT", enum.SignalEntryLong, model.MustDecimal("0.9"), "manual", "test", model.UTC(a.trader.Account().LastReset), nil)
	require.NoError(t, err)
	_, err = a.trader.Open(ctx, signal, map[string]decimal.Decimal{"BTC/USDT": model.MustDecimal("50000")})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "positions.json")
	require.NoError(t, state.WriteSnapshot(path, a.positions.Snapshot()))

	var out bytes.Buffer
	require.NoError(t, status(ctx, &out, a, statusFlags{trades: 5, verify: path}))

	dec := json.NewDecoder(&out)
	var view statusView
	require.NoError(t, dec.Decode(&view))
	assert.Equal(t, "8997.999", view.Account.Cash)
	assert.Equal(t, "-1.001", view.Risk.DailyPnL)
	require.Len(t, view.Positions.Positions, 1)
	assert.Equal(t, "BTC/USDT", view.Positions.Positions[0].Instrument)
	assert.Empty(t, view.Trades)
	assert.Contains(t, out.String(), "positions match")
}

func TestStatusTrades(t *testing.T) {
	ctx := context.Background()
	a, err := build(ctx, testConfig())
	require.NoError(t, err)
	defer a.Close()

	signal, err := model.NewSignal("BTC/USDT", enum.SignalEntryLong, model.MustDecimal("0.9"), "manual", "test", a.trader.Account().LastReset, nil)
	require.NoError(t, err)
	_, err = a.trader.Open(ctx, signal, map[string]decimal.Decimal{"BTC/USDT": model.MustDecimal("50000")})
	require.NoError(t, err)
	_, err = a.trader.Close(ctx, "BTC/USDT", model.MustDecimal("52000"), enum.ExitTakeProfit)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, status(ctx, &out, a, statusFlags{trades: 5}))

	var view statusView
	require.NoError(t, json.NewDecoder(&out).Decode(&view))
	require.Len(t, view.Trades, 1)
	trade := view.Trades[0]
	assert.Equal(t, "BTC/USDT", trade.Instrument)
	assert.Equal(t, "take profit", trade.ExitReason)
	assert.True(t, trade.Win)
	assert.NotEmpty(t, trade.Held)
	assert.Empty(t, view.Positions.Positions)
}

func TestLiquidateWithoutPrice(t *testing.T) {
	ctx := context.Background()
	a, err := build(ctx, testConfig())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, liquidate(ctx, a, enum.ExitManual))

	signal, err := model.NewSignal("ETH/USDT", enum.SignalEntryShort, model.MustDecimal("0.9"), "manual", "test", a.trader.Account().LastReset, nil)
	require.NoError(t, err)
	_, err = a.trader.Open(ctx, signal, map[string]decimal.Decimal{"ETH/USDT": model.MustDecimal("2000")})
	require.NoError(t, err)

	// the static feed has no candles, so the position stays open
	require.Error(t, liquidate(ctx, a, enum.ExitManual))
	assert.Len(t, a.trader.Positions(), 1)
}

func TestRunOnceWritesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	require.NoError(t, run(context.Background(), testConfig(), runFlags{once: true, snapshotPath: path}))

	snap, err := state.ReadSnapshot(path)
	require.NoError(t, err)
	assert.Empty(t, snap.Positions)
}
