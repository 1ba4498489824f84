package strategy

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/internal/risk"
	"papertrade/pkg/exception"
)

// Strategy turns a candle history, oldest first, into at most one entry
// signal. Exits are not a strategy's call; a strategy may offer a
// risk.ExitHint instead.
type Strategy interface {
	Name() string
	Analyze(candles []model.Candle) (model.Signal, bool)
}

// Params are the loosely typed settings of a strategy as read from config.
type Params map[string]any

type factory func(Params) (Strategy, error)

var registry = map[string]factory{
	NameEMARSI:       func(p Params) (Strategy, error) { return NewEMARSI(p) },
	NameEMACrossover: func(p Params) (Strategy, error) { return NewEMACrossover(p) },
}

// New builds a registered strategy by name.
func New(name string, params Params) (Strategy, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.Wrapf(exception.ErrValidation, "unknown strategy %q", name)
	}
	return f(params)
}

// Names lists the registered strategies.
func Names() []string {
	return []string{NameEMARSI, NameEMACrossover}
}

// Hints collects the exit hints offered by strategies.
func Hints(strategies []Strategy) []risk.ExitHint {
	var hints []risk.ExitHint
	for _, s := range strategies {
		if h, ok := s.(risk.ExitHint); ok {
			hints = append(hints, h)
		}
	}
	return hints
}

func (p Params) intOr(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, errors.Wrapf(exception.ErrValidation, "param %s: %v is not an integer", key, v)
		}
		return int(n), nil
	default:
		return 0, errors.Wrapf(exception.ErrValidation, "param %s: unsupported %T", key, v)
	}
}

func (p Params) floatOr(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, errors.Wrapf(exception.ErrValidation, "param %s: unsupported %T", key, v)
	}
}

func positive(key string, v int) error {
	if v <= 0 {
		return errors.Wrapf(exception.ErrValidation, "param %s must be > 0, got %d", key, v)
	}
	return nil
}

func strength(v float64) decimal.Decimal {
	v = math.Max(0, math.Min(1, v))
	return decimal.NewFromFloat(v).Round(4)
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
