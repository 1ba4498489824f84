package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/model"
	"papertrade/internal/model/enum"
	"papertrade/pkg/exception"
)

var t0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func series(t *testing.T, values ...float64) []model.Candle {
	t.Helper()
	candles := make([]model.Candle, 0, len(values))
	for i, v := range values {
		p := decimal.NewFromFloat(v)
		c, err := model.NewCandle("BTC/USD", t0.Add(time.Duration(i)*time.Hour), p, p, p, p, model.One)
		require.NoError(t, err)
		candles = append(candles, c)
	}
	return candles
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEMA(t *testing.T) {
	ema := EMA([]float64{100, 100, 130}, 2)
	assert.InDelta(t, 100, ema[1], 1e-9)
	assert.InDelta(t, 120, ema[2], 1e-9)
	assert.Empty(t, EMA(nil, 3))
}

func TestRSI(t *testing.T) {
	rsi := RSI([]float64{100, 90, 80, 70, 85}, 3)
	assert.True(t, math.IsNaN(rsi[2]))
	assert.InDelta(t, 0, rsi[3], 1e-9)
	assert.InDelta(t, 42.857142857, rsi[4], 1e-6)

	rising := RSI([]float64{1, 2, 3, 4}, 3)
	assert.InDelta(t, 100, rising[3], 1e-9)

	still := RSI([]float64{5, 5, 5, 5}, 3)
	assert.True(t, math.IsNaN(still[3]))
}

func TestEMARSILong(t *testing.T) {
	s, err := NewEMARSI(Params{"emaPeriod": 20.0, "rsiPeriod": 3.0})
	require.NoError(t, err)

	candles := series(t, append(flat(18, 100), 90, 80, 70, 85)...)
	signal, ok := s.Analyze(candles)
	require.True(t, ok)

	assert.Equal(t, enum.SignalEntryLong, signal.Kind)
	assert.Equal(t, NameEMARSI, signal.Strategy)
	assert.Equal(t, "BTC/USD", signal.Instrument)
	assert.Equal(t, candles[len(candles)-1].Time, signal.Time)
	assert.Equal(t, "0.9069", signal.Strength.String())
	assert.Contains(t, signal.Reason, "rsi crossed above 30")
	assert.InDelta(t, 42.857, signal.Indicators["rsi"].(float64), 1e-3)

	_, ok = s.Analyze(candles[:len(candles)-1])
	assert.False(t, ok, "no cross on the previous candle")
	_, ok = s.Analyze(candles[:10])
	assert.False(t, ok, "not enough history")
}

func TestEMARSIShort(t *testing.T) {
	s, err := NewEMARSI(Params{"emaPeriod": 20, "rsiPeriod": 3})
	require.NoError(t, err)

	signal, ok := s.Analyze(series(t, append(flat(18, 100), 110, 120, 130, 115)...))
	require.True(t, ok)
	assert.Equal(t, enum.SignalEntryShort, signal.Kind)
	assert.Equal(t, enum.DirectionShort, signal.Direction())
}

func TestEMARSIExitHint(t *testing.T) {
	s, err := NewEMARSI(Params{"rsiPeriod": 3})
	require.NoError(t, err)

	long, err := model.NewOpenPosition("pos_1", "BTC/USD", enum.DirectionLong, model.MustDecimal("100"), model.One, t0, model.Zero, NameEMARSI)
	require.NoError(t, err)
	short, err := model.NewOpenPosition("pos_2", "BTC/USD", enum.DirectionShort, model.MustDecimal("100"), model.One, t0, model.Zero, NameEMARSI)
	require.NoError(t, err)

	rising := series(t, 100, 101, 102, 103, 104)
	falling := series(t, 104, 103, 102, 101, 100)

	ok, detail := s.ShouldExit(long, rising, model.MustDecimal("104"))
	assert.True(t, ok)
	assert.Contains(t, detail, "neutral")
	ok, _ = s.ShouldExit(long, falling, model.MustDecimal("100"))
	assert.False(t, ok)

	ok, _ = s.ShouldExit(short, falling, model.MustDecimal("100"))
	assert.True(t, ok)
	ok, _ = s.ShouldExit(short, rising, model.MustDecimal("104"))
	assert.False(t, ok)

	ok, _ = s.ShouldExit(long, rising[:2], model.MustDecimal("101"))
	assert.False(t, ok, "not enough history")
}

func TestEMACrossover(t *testing.T) {
	s, err := NewEMACrossover(Params{"fastPeriod": 2, "slowPeriod": 4, "trendPeriod": 5, "trendBuffer": 0})
	require.NoError(t, err)

	signal, ok := s.Analyze(series(t, append(flat(6, 100), 110)...))
	require.True(t, ok)
	assert.Equal(t, enum.SignalEntryLong, signal.Kind)
	assert.Equal(t, "0.8064", signal.Strength.String())

	signal, ok = s.Analyze(series(t, append(flat(6, 100), 90)...))
	require.True(t, ok)
	assert.Equal(t, enum.SignalEntryShort, signal.Kind)

	_, ok = s.Analyze(series(t, flat(7, 100)...))
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	for _, name := range Names() {
		s, err := New(name, nil)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}

	_, err := New("martingale", nil)
	require.ErrorIs(t, err, exception.ErrValidation)

	_, err = New(NameEMARSI, Params{"rsiPeriod": 2.5})
	require.ErrorIs(t, err, exception.ErrValidation)

	_, err = New(NameEMARSI, Params{"rsiOversold": 60})
	require.ErrorIs(t, err, exception.ErrValidation)

	_, err = New(NameEMACrossover, Params{"fastPeriod": 30})
	require.ErrorIs(t, err, exception.ErrValidation)

	_, err = New(NameEMACrossover, Params{"slowPeriod": "21"})
	require.ErrorIs(t, err, exception.ErrValidation)
}

func TestHints(t *testing.T) {
	rsi, err := New(NameEMARSI, nil)
	require.NoError(t, err)
	cross, err := New(NameEMACrossover, nil)
	require.NoError(t, err)

	hints := Hints([]Strategy{cross, rsi})
	require.Len(t, hints, 1)
	assert.Equal(t, NameEMARSI, hints[0].Name())
}
