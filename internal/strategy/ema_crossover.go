package strategy

import (
	"fmt"
	"math"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/internal/model/enum"
	"papertrade/pkg/exception"
)

const NameEMACrossover = "ema_crossover"

// EMACrossover follows a fast/slow EMA cross in the direction of a longer
// trend EMA.
type EMACrossover struct {
	FastPeriod   int
	SlowPeriod   int
	TrendPeriod  int
	TrendBuffer  float64
	BaseStrength float64
}

func NewEMACrossover(p Params) (*EMACrossover, error) {
	s := &EMACrossover{}
	var err error
	if s.FastPeriod, err = p.intOr("fastPeriod", 9); err != nil {
		return nil, err
	}
	if s.SlowPeriod, err = p.intOr("slowPeriod", 21); err != nil {
		return nil, err
	}
	if s.TrendPeriod, err = p.intOr("trendPeriod", 200); err != nil {
		return nil, err
	}
	if s.TrendBuffer, err = p.floatOr("trendBuffer", 0.002); err != nil {
		return nil, err
	}
	if s.BaseStrength, err = p.floatOr("minSignalStrength", 0.55); err != nil {
		return nil, err
	}

	for key, v := range map[string]int{"fastPeriod": s.FastPeriod, "slowPeriod": s.SlowPeriod, "trendPeriod": s.TrendPeriod} {
		if err := positive(key, v); err != nil {
			return nil, err
		}
	}
	if s.FastPeriod >= s.SlowPeriod {
		return nil, errors.Wrapf(exception.ErrValidation, "fastPeriod %d must be below slowPeriod %d", s.FastPeriod, s.SlowPeriod)
	}
	if s.TrendBuffer < 0 {
		return nil, errors.Wrapf(exception.ErrValidation, "trendBuffer %v is negative", s.TrendBuffer)
	}
	return s, nil
}

func (s *EMACrossover) Name() string { return NameEMACrossover }

func (s *EMACrossover) Analyze(candles []model.Candle) (model.Signal, bool) {
	if len(candles) < max(s.SlowPeriod, s.TrendPeriod)+2 {
		return model.Signal{}, false
	}

	prices := closes(candles)
	fast := EMA(prices, s.FastPeriod)
	slow := EMA(prices, s.SlowPeriod)
	trend := EMA(prices, s.TrendPeriod)

	last := len(prices) - 1
	price := prices[last]
	if slow[last] == 0 {
		return model.Signal{}, false
	}
	separation := math.Abs((fast[last] - slow[last]) / slow[last])
	indicators := map[string]any{
		"fast_ema":       fast[last],
		"slow_ema":       slow[last],
		"trend_ema":      trend[last],
		"separation_pct": separation,
	}

	var (
		kind   enum.SignalKind
		reason string
	)
	switch {
	case price > trend[last]*(1+s.TrendBuffer) && fast[last-1] <= slow[last-1] && fast[last] > slow[last]:
		kind = enum.SignalEntryLong
		reason = fmt.Sprintf("fast ema (%d) crossed above slow ema (%d), fast: %s, slow: %s", s.FastPeriod, s.SlowPeriod, money(fast[last]), money(slow[last]))
	case price < trend[last]*(1-s.TrendBuffer) && fast[last-1] >= slow[last-1] && fast[last] < slow[last]:
		kind = enum.SignalEntryShort
		reason = fmt.Sprintf("fast ema (%d) crossed below slow ema (%d), fast: %s, slow: %s", s.FastPeriod, s.SlowPeriod, money(fast[last]), money(slow[last]))
	default:
		return model.Signal{}, false
	}

	signal, err := model.NewSignal(candles[last].Instrument, kind, strength(s.BaseStrength+separation*10), s.Name(), reason, candles[last].Time, indicators)
	if err != nil {
		return model.Signal{}, false
	}
	return signal, true
}
