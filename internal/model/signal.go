package model

import (
	"maps"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/model/enum"
)

// Signal is an entry recommendation produced by a strategy.
type Signal struct {
	Instrument string
	Kind       enum.SignalKind
	Strength   decimal.Decimal
	Strategy   string
	Reason     string
	// Time is the candle time the signal was computed from, not a fill time.
	Time       time.Time
	Indicators map[string]any
}

// NewSignal builds a validated signal. The indicator map is copied.
func NewSignal(instrument string, kind enum.SignalKind, strength decimal.Decimal, strategy, reason string, at time.Time, indicators map[string]any) (Signal, error) {
	s := Signal{
		Instrument: instrument,
		Kind:       kind,
		Strength:   strength,
		Strategy:   strategy,
		Reason:     reason,
		Time:       UTC(at),
		Indicators: maps.Clone(indicators),
	}
	if err := s.Validate(); err != nil {
		return Signal{}, err
	}
	return s, nil
}

func (s Signal) Validate() error {
	if !ValidInstrument(s.Instrument) {
		return invalid("signal instrument %q must be BASE/QUOTE", s.Instrument)
	}
	if !s.Kind.IsAvailable() {
		return invalid("signal %s has unknown kind %d", s.Instrument, s.Kind)
	}
	if s.Strength.IsNegative() || s.Strength.GreaterThan(One) {
		return invalid("signal %s strength %s outside [0,1]", s.Instrument, s.Strength)
	}
	if strings.TrimSpace(s.Strategy) == "" {
		return invalid("signal %s has no strategy", s.Instrument)
	}
	if strings.TrimSpace(s.Reason) == "" {
		return invalid("signal %s has no reason", s.Instrument)
	}
	if s.Time.IsZero() {
		return invalid("signal %s has no timestamp", s.Instrument)
	}
	return nil
}

func (s Signal) Direction() enum.Direction {
	return s.Kind.Direction()
}
