package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/marketdata"
	"papertrade/internal/model"
	"papertrade/internal/model/enum"
	"papertrade/internal/obs"
	"papertrade/internal/paper"
	"papertrade/internal/risk"
	"papertrade/internal/state"
	"papertrade/internal/store"
	"papertrade/internal/strategy"
	"papertrade/pkg/exception"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

// always signals an entry for whatever instrument it is shown.
type always struct {
	name     string
	kind     enum.SignalKind
	strength string
}

func (s always) Name() string { return s.name }

func (s always) Analyze(candles []model.Candle) (model.Signal, bool) {
	last, ok := model.Last(candles)
	if !ok {
		return model.Signal{}, false
	}
	signal, err := model.NewSignal(last.Instrument, s.kind, model.MustDecimal(s.strength), s.name, "always", last.Time, nil)
	return signal, err == nil
}

type harness struct {
	clock   *clock
	feed    *marketdata.Static
	store   *store.Memory
	trader  *paper.Trader
	metrics *obs.Metrics
	loop    *Loop
}

func newHarness(t *testing.T, limits model.RiskLimits, instruments []string, strategies ...strategy.Strategy) *harness {
	t.Helper()
	h := &harness{
		clock:   &clock{now: t0},
		feed:    marketdata.NewStatic(),
		store:   store.NewMemory(),
		metrics: obs.NewMetrics(),
	}

	rm, err := risk.NewManager(limits, strategy.Hints(strategies)...)
	require.NoError(t, err)
	h.trader, err = paper.NewTrader(h.store, state.NewPositionManager(h.store), rm, model.DefaultFillModel(), model.MustDecimal("10000"),
		paper.WithClock(h.clock.Now))
	require.NoError(t, err)
	require.NoError(t, h.trader.Init(context.Background()))

	h.loop, err = NewLoop(Config{Instruments: instruments, Timeframe: "1h", CandleLimit: 50}, h.feed, h.trader, strategies,
		WithClock(h.clock.Now), WithMetrics(h.metrics))
	require.NoError(t, err)
	return h
}

// price appends a flat candle at the current clock time.
func (h *harness) price(t *testing.T, instrument, price string) {
	t.Helper()
	p := model.MustDecimal(price)
	c, err := model.NewCandle(instrument, h.clock.now, p, p, p, p, model.One)
	require.NoError(t, err)
	h.feed.Append(instrument, c)
}

func (h *harness) mustCandles(t *testing.T, instrument string) []model.Candle {
	t.Helper()
	candles, err := h.feed.FetchCandles(context.Background(), instrument, "1h", 0)
	require.NoError(t, err)
	return candles
}

func (h *harness) advance(d time.Duration) {
	h.clock.now = h.clock.now.Add(d)
}

func TestTickClosedInstrumentWaitsForNextTick(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.DefaultRiskLimits(), []string{"BTC/USD"}, always{name: "always", kind: enum.SignalEntryLong, strength: "0.9"})

	h.price(t, "BTC/USD", "50000")
	report := h.loop.Tick(ctx)
	require.Len(t, report.Opened, 1)
	assert.Equal(t, "8997.999", h.trader.Account().Cash.String())
	assert.Equal(t, "9997.999", report.Equity.String())

	h.advance(time.Hour)
	h.price(t, "BTC/USD", "49000")
	report = h.loop.Tick(ctx)
	require.Len(t, report.Closed, 1)
	assert.Equal(t, "stop loss", report.Closed[0].ExitReason)
	assert.Empty(t, report.Opened, "no re-entry in the tick that closed the instrument")
	assert.Empty(t, h.trader.Positions())

	h.advance(time.Hour)
	h.price(t, "BTC/USD", "49000")
	report = h.loop.Tick(ctx)
	require.Len(t, report.Opened, 1)
	assert.Empty(t, report.Closed)

	snap := h.metrics.Snapshot()
	assert.Equal(t, uint64(3), snap.Ticks)
	assert.Equal(t, uint64(2), snap.Opens)
	assert.Equal(t, uint64(1), snap.Closes[enum.ExitStopLoss])
	assert.Len(t, h.store.EquitySnapshots(), 3)
}

func TestTickExitsBeforeEntries(t *testing.T) {
	ctx := context.Background()
	limits := model.DefaultRiskLimits()
	limits.MaxOpenPositions = 1
	h := newHarness(t, limits, []string{"BTC/USD", "ETH/USD"}, always{name: "always", kind: enum.SignalEntryLong, strength: "0.9"})

	h.price(t, "BTC/USD", "50000")
	h.price(t, "ETH/USD", "2000")
	report := h.loop.Tick(ctx)
	require.Len(t, report.Opened, 1)
	assert.Equal(t, "BTC/USD", report.Opened[0].Instrument)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, "ETH/USD", report.Rejected[0].Instrument)
	assert.Equal(t, risk.RuleMaxPositions, report.Rejected[0].Rule)

	// the stop loss frees the only slot before ETH is considered
	h.advance(time.Hour)
	h.price(t, "BTC/USD", "49000")
	h.price(t, "ETH/USD", "2000")
	report = h.loop.Tick(ctx)
	require.Len(t, report.Closed, 1)
	assert.Equal(t, "BTC/USD", report.Closed[0].Instrument)
	require.Len(t, report.Opened, 1)
	assert.Equal(t, "ETH/USD", report.Opened[0].Instrument)
	assert.Empty(t, report.Rejected)

	open := h.trader.Positions()
	require.Len(t, open, 1)
	assert.Equal(t, "ETH/USD", open[0].Instrument)
}

func TestTickEntryUsesMarkedBook(t *testing.T) {
	ctx := context.Background()
	limits := model.DefaultRiskLimits()
	limits.MaxPositionFraction = model.MustDecimal("0.45")
	limits.StopLossFraction = model.MustDecimal("0.5")
	h := newHarness(t, limits, []string{"BTC/USD", "ETH/USD"}, always{name: "always", kind: enum.SignalEntryLong, strength: "0.9"})

	h.price(t, "BTC/USD", "50000")
	h.feed.Fail("ETH/USD", exception.ErrTransientIO)
	report := h.loop.Tick(ctx)
	require.Len(t, report.Opened, 1)

	// BTC is down 20%, below the stop loss but enough to trip the daily breaker
	h.advance(time.Hour)
	h.feed.Fail("ETH/USD", nil)
	h.price(t, "BTC/USD", "40000")
	h.price(t, "ETH/USD", "2000")
	report = h.loop.Tick(ctx)
	assert.Empty(t, report.Closed)
	assert.Empty(t, report.Opened)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, "ETH/USD", report.Rejected[0].Instrument)
	assert.Equal(t, risk.RuleDailyLoss, report.Rejected[0].Rule)
	assert.Equal(t, "9090.9955", report.Equity.String())
}

func TestTickStrategyFallthrough(t *testing.T) {
	ctx := context.Background()
	weak := always{name: "weak", kind: enum.SignalEntryLong, strength: "0.3"}
	strong := always{name: "strong", kind: enum.SignalEntryShort, strength: "0.8"}
	h := newHarness(t, model.DefaultRiskLimits(), []string{"BTC/USD"}, weak, strong)

	h.price(t, "BTC/USD", "50000")
	report := h.loop.Tick(ctx)

	require.Len(t, report.Rejected, 1)
	assert.Equal(t, "weak", report.Rejected[0].Strategy)
	assert.Equal(t, risk.RuleSignalStrength, report.Rejected[0].Rule)

	require.Len(t, report.Opened, 1)
	assert.Equal(t, "strong", report.Opened[0].Strategy)
	assert.Equal(t, enum.DirectionShort, report.Opened[0].Direction)
	assert.Equal(t, uint64(1), h.metrics.Snapshot().Rejections[risk.RuleSignalStrength])
}

func TestTickSkipsFailingInstrument(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.DefaultRiskLimits(), []string{"BTC/USD", "ETH/USD", "SOL/USD"}, always{name: "always", kind: enum.SignalEntryLong, strength: "0.9"})

	h.price(t, "BTC/USD", "50000")
	h.price(t, "ETH/USD", "2000")
	h.feed.Fail("ETH/USD", exception.ErrTransientIO)

	report := h.loop.Tick(ctx)
	assert.Equal(t, []string{"ETH/USD", "SOL/USD"}, report.SkippedInstruments())
	require.ErrorIs(t, report.Skipped["ETH/USD"], exception.ErrTransientIO)
	require.ErrorIs(t, report.Skipped["SOL/USD"], exception.ErrNotFound)
	require.Len(t, report.Opened, 1)
	assert.Equal(t, "BTC/USD", report.Opened[0].Instrument)
	assert.Empty(t, report.Errors)
	assert.Equal(t, uint64(2), h.metrics.Snapshot().Skipped)
}

func TestTickSkipsMalformedCandles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.DefaultRiskLimits(), []string{"BTC/USD", "ETH/USD"}, always{name: "always", kind: enum.SignalEntryLong, strength: "0.9"})

	h.price(t, "BTC/USD", "50000")
	report := h.loop.Tick(ctx)
	require.Len(t, report.Opened, 1)
	cash := h.trader.Account().Cash

	h.advance(time.Hour)
	// high below low and no close: must not reach the stop loss check
	h.feed.Append("BTC/USD", model.Candle{
		Instrument: "BTC/USD",
		Time:       h.clock.now,
		Open:       model.MustDecimal("2"),
		High:       model.One,
		Low:        model.MustDecimal("5"),
		Close:      model.Zero,
	})
	// a candle of another instrument in the ETH history
	h.price(t, "SOL/USD", "150")
	h.feed.Set("ETH/USD", h.mustCandles(t, "SOL/USD"))

	report = h.loop.Tick(ctx)
	assert.Equal(t, []string{"BTC/USD", "ETH/USD"}, report.SkippedInstruments())
	require.ErrorIs(t, report.Skipped["BTC/USD"], exception.ErrValidation)
	require.ErrorIs(t, report.Skipped["ETH/USD"], exception.ErrValidation)
	assert.Empty(t, report.Closed)
	assert.Empty(t, report.Opened)
	assert.Empty(t, report.Errors)
	assert.True(t, cash.Equal(h.trader.Account().Cash))
	assert.Len(t, h.trader.Positions(), 1)
	assert.Equal(t, uint64(2), h.metrics.Snapshot().Skipped)
}

func TestTickLossStreakHaltsForTheDay(t *testing.T) {
	ctx := context.Background()
	limits := model.DefaultRiskLimits()
	limits.MaxConsecutiveLosses = 2
	h := newHarness(t, limits, []string{"BTC/USD", "ETH/USD", "SOL/USD"}, always{name: "always", kind: enum.SignalEntryLong, strength: "0.9"})

	h.price(t, "BTC/USD", "50000")
	h.price(t, "ETH/USD", "2000")
	h.price(t, "SOL/USD", "100")
	report := h.loop.Tick(ctx)
	require.Len(t, report.Opened, 3)

	// two stop losses in a row trip the halt, SOL is liquidated at market
	h.advance(time.Hour)
	h.price(t, "BTC/USD", "49000")
	h.price(t, "ETH/USD", "1960")
	h.price(t, "SOL/USD", "100")
	report = h.loop.Tick(ctx)
	assert.True(t, report.Halted)
	require.Len(t, report.Closed, 3)
	assert.Equal(t, "stop loss", report.Closed[0].ExitReason)
	assert.Equal(t, "stop loss", report.Closed[1].ExitReason)
	assert.Equal(t, "liquidation", report.Closed[2].ExitReason)
	assert.Equal(t, "SOL/USD", report.Closed[2].Instrument)
	assert.Empty(t, report.Opened)
	assert.Empty(t, report.Errors)
	assert.Empty(t, h.trader.Positions())

	h.advance(time.Hour)
	h.price(t, "BTC/USD", "49000")
	h.price(t, "ETH/USD", "1960")
	h.price(t, "SOL/USD", "100")
	report = h.loop.Tick(ctx)
	assert.True(t, report.Halted)
	assert.Empty(t, report.Opened)

	// the streak only counts trades since the daily anchor
	h.advance(24 * time.Hour)
	h.price(t, "BTC/USD", "49000")
	h.price(t, "ETH/USD", "1960")
	h.price(t, "SOL/USD", "100")
	report = h.loop.Tick(ctx)
	assert.False(t, report.Halted)
	assert.Len(t, report.Opened, 3)
	assert.Equal(t, uint64(1), h.metrics.Snapshot().Closes[enum.ExitLiquidation])
}

func TestTickUsesExitHint(t *testing.T) {
	ctx := context.Background()
	rsi, err := strategy.NewEMARSI(strategy.Params{"emaPeriod": 5, "rsiPeriod": 3})
	require.NoError(t, err)
	h := newHarness(t, model.DefaultRiskLimits(), []string{"BTC/USD"}, rsi)

	p, err := model.NewOpenPosition("pos_seed", "BTC/USD", enum.DirectionLong, model.MustDecimal("100"), model.One, t0, model.Zero, strategy.NameEMARSI)
	require.NoError(t, err)
	require.NoError(t, h.store.InsertPosition(ctx, p))
	require.NoError(t, h.trader.Init(ctx))

	for _, price := range []string{"100", "100.5", "101", "101.5", "102"} {
		h.price(t, "BTC/USD", price)
		h.advance(time.Hour)
	}
	report := h.loop.Tick(ctx)
	require.Len(t, report.Closed, 1)
	assert.Equal(t, "strategy exit", report.Closed[0].ExitReason)
}

func TestTickEquityWithoutPrices(t *testing.T) {
	h := newHarness(t, model.DefaultRiskLimits(), []string{"BTC/USD"}, always{name: "always", kind: enum.SignalEntryLong, strength: "0.9"})
	report := h.loop.Tick(context.Background())
	assert.True(t, report.Equity.Equal(decimal.NewFromInt(10000)))
	assert.Len(t, report.Skipped, 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, model.DefaultRiskLimits(), []string{"BTC/USD"}, always{name: "always", kind: enum.SignalEntryLong, strength: "0.9"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.loop.Run(ctx, time.Hour))
	assert.Equal(t, uint64(1), h.metrics.Snapshot().Ticks)

	require.ErrorIs(t, h.loop.Run(ctx, 0), exception.ErrValidation)
}

func TestNewLoopValidates(t *testing.T) {
	h := newHarness(t, model.DefaultRiskLimits(), []string{"BTC/USD"}, always{name: "always", kind: enum.SignalEntryLong, strength: "0.9"})
	_, err := NewLoop(Config{}, h.feed, h.trader, []strategy.Strategy{always{}})
	require.ErrorIs(t, err, exception.ErrValidation)
	_, err = NewLoop(Config{Instruments: []string{"BTC/USD"}}, h.feed, h.trader, nil)
	require.ErrorIs(t, err, exception.ErrValidation)
}
