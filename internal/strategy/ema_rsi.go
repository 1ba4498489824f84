package strategy

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/internal/model/enum"
	"papertrade/pkg/exception"
)

const NameEMARSI = "ema_rsi"

// EMARSI buys an oversold bounce under the trend EMA and sells an
// overbought rollover above it. Positions it opened are also released when
// RSI is back at neutral.
type EMARSI struct {
	EMAPeriod   int
	RSIPeriod   int
	Oversold    float64
	Overbought  float64
	NeutralRSI  float64
	MinStrength float64
	MaxDistance float64
}

func NewEMARSI(p Params) (*EMARSI, error) {
	s := &EMARSI{}
	var err error
	if s.EMAPeriod, err = p.intOr("emaPeriod", 100); err != nil {
		return nil, err
	}
	if s.RSIPeriod, err = p.intOr("rsiPeriod", 14); err != nil {
		return nil, err
	}
	if s.Oversold, err = p.floatOr("rsiOversold", 30); err != nil {
		return nil, err
	}
	if s.Overbought, err = p.floatOr("rsiOverbought", 70); err != nil {
		return nil, err
	}
	if s.NeutralRSI, err = p.floatOr("rsiNeutral", 50); err != nil {
		return nil, err
	}
	if s.MinStrength, err = p.floatOr("minSignalStrength", 0.6); err != nil {
		return nil, err
	}
	s.MaxDistance = 0.4

	if err := positive("emaPeriod", s.EMAPeriod); err != nil {
		return nil, err
	}
	if err := positive("rsiPeriod", s.RSIPeriod); err != nil {
		return nil, err
	}
	if !(0 < s.Oversold && s.Oversold < s.NeutralRSI && s.NeutralRSI < s.Overbought && s.Overbought < 100) {
		return nil, errors.Wrapf(exception.ErrValidation, "rsi levels must satisfy 0 < %v < %v < %v < 100", s.Oversold, s.NeutralRSI, s.Overbought)
	}
	return s, nil
}

func (s *EMARSI) Name() string { return NameEMARSI }

func (s *EMARSI) required() int {
	return max(s.EMAPeriod, s.RSIPeriod) + 2
}

func (s *EMARSI) Analyze(candles []model.Candle) (model.Signal, bool) {
	if len(candles) < s.required() {
		return model.Signal{}, false
	}

	prices := closes(candles)
	ema := EMA(prices, s.EMAPeriod)
	rsi := RSI(prices, s.RSIPeriod)

	last := len(prices) - 1
	price, trend := prices[last], ema[last]
	cur, prev := rsi[last], rsi[last-1]
	if math.IsNaN(cur) || math.IsNaN(prev) || trend == 0 {
		return model.Signal{}, false
	}

	distance := math.Abs((price - trend) / trend)
	indicators := map[string]any{
		"ema":                   trend,
		"rsi":                   cur,
		"price":                 price,
		"distance_from_ema_pct": distance,
	}
	str := strength(math.Max(s.MinStrength, 1-math.Min(distance, s.MaxDistance)))
	at := candles[last].Time
	instrument := candles[last].Instrument

	var (
		kind   enum.SignalKind
		reason string
	)
	switch {
	case price < trend && prev <= s.Oversold && s.Oversold < cur:
		kind = enum.SignalEntryLong
		reason = fmt.Sprintf("price %s below ema %s, rsi crossed above %v from %.1f to %.1f", money(price), money(trend), s.Oversold, prev, cur)
	case price > trend && prev >= s.Overbought && s.Overbought > cur:
		kind = enum.SignalEntryShort
		reason = fmt.Sprintf("price %s above ema %s, rsi crossed below %v from %.1f to %.1f", money(price), money(trend), s.Overbought, prev, cur)
	default:
		return model.Signal{}, false
	}

	signal, err := model.NewSignal(instrument, kind, str, s.Name(), reason, at, indicators)
	if err != nil {
		return model.Signal{}, false
	}
	return signal, true
}

// ShouldExit releases a long once RSI climbs back to neutral and a short
// once it falls back to neutral.
func (s *EMARSI) ShouldExit(position model.Position, candles []model.Candle, _ decimal.Decimal) (bool, string) {
	if len(candles) <= s.RSIPeriod {
		return false, ""
	}
	rsi := RSI(closes(candles), s.RSIPeriod)
	cur := rsi[len(rsi)-1]
	if math.IsNaN(cur) {
		return false, ""
	}

	switch position.Direction {
	case enum.DirectionLong:
		if cur >= s.NeutralRSI {
			return true, fmt.Sprintf("rsi back to neutral: %.1f >= %v", cur, s.NeutralRSI)
		}
	case enum.DirectionShort:
		if cur <= s.NeutralRSI {
			return true, fmt.Sprintf("rsi back to neutral: %.1f <= %v", cur, s.NeutralRSI)
		}
	}
	return false, ""
}
