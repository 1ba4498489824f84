package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/errors"
	"papertrade/pkg/exception"
)

// Money, prices, quantities and fractions are all exact decimals.
var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
)

// ParseDecimal parses an exact decimal string such as "1001.00".
func ParseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, errors.Mark(errors.Wrapf(err, "parse decimal %q", s), exception.ErrValidation)
	}
	return d, nil
}

// MustDecimal is ParseDecimal for literals known to be valid.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// TimeLayout is the persisted timestamp layout: fixed width, explicit offset,
// so UTC values sort lexically in time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// UTC normalises t to UTC. The zero time stays zero.
func UTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// FormatTime renders t in UTC with an explicit offset, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts only timestamps with an explicit offset.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, errors.Mark(errors.Wrapf(err, "parse time %q", s), exception.ErrValidation)
	}
	return t.UTC(), nil
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidInstrument reports whether s looks like BASE/QUOTE.
func ValidInstrument(s string) bool {
	base, quote, ok := strings.Cut(s, "/")
	return ok && base != "" && quote != "" && !strings.Contains(quote, "/")
}

func invalid(format string, args ...any) error {
	return errors.Wrapf(exception.ErrValidation, format, args...)
}
