package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar of an instrument.
type Candle struct {
	Instrument string
	Time       time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
}

// NewCandle builds a validated candle with its timestamp in UTC.
func NewCandle(instrument string, at time.Time, open, high, low, close, volume decimal.Decimal) (Candle, error) {
	c := Candle{
		Instrument: instrument,
		Time:       UTC(at),
		Open:       open,
		High:       high,
		Low:        low,
		Close:      close,
		Volume:     volume,
	}
	if err := c.Validate(); err != nil {
		return Candle{}, err
	}
	return c, nil
}

// Validate checks the OHLC relationships.
func (c Candle) Validate() error {
	if !ValidInstrument(c.Instrument) {
		return invalid("candle instrument %q must be BASE/QUOTE", c.Instrument)
	}
	if c.Time.IsZero() {
		return invalid("candle %s has no timestamp", c.Instrument)
	}
	if !c.Open.IsPositive() || !c.High.IsPositive() || !c.Low.IsPositive() || !c.Close.IsPositive() {
		return invalid("candle %s prices must be positive", c.Instrument)
	}
	if c.Volume.IsNegative() {
		return invalid("candle %s volume is negative", c.Instrument)
	}
	if c.High.LessThan(c.Low) {
		return invalid("candle %s high %s below low %s", c.Instrument, c.High, c.Low)
	}
	if c.High.LessThan(decimal.Max(c.Open, c.Close)) {
		return invalid("candle %s high %s below open/close", c.Instrument, c.High)
	}
	if c.Low.GreaterThan(decimal.Min(c.Open, c.Close)) {
		return invalid("candle %s low %s above open/close", c.Instrument, c.Low)
	}
	return nil
}

// Last returns the newest candle of a history ordered oldest first.
func Last(candles []Candle) (Candle, bool) {
	if len(candles) == 0 {
		return Candle{}, false
	}
	return candles[len(candles)-1], true
}
