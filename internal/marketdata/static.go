package marketdata

import (
	"context"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/pkg/exception"
)

var _ Feed = (*Static)(nil)

// Static serves candles held in memory. It backs dry runs and tests.
type Static struct {
	mu      sync.RWMutex
	candles map[string][]model.Candle
	errs    map[string]error
}

func NewStatic() *Static {
	return &Static{
		candles: make(map[string][]model.Candle),
		errs:    make(map[string]error),
	}
}

// Set replaces the candles of instrument.
func (s *Static) Set(instrument string, candles []model.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[instrument] = slices.Clone(candles)
}

// Append adds candles to the end of the series of instrument.
func (s *Static) Append(instrument string, candles ...model.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[instrument] = append(s.candles[instrument], candles...)
}

// Fail makes every call for instrument return err until it is cleared with nil.
func (s *Static) Fail(instrument string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, instrument)
		return
	}
	s.errs[instrument] = err
}

func (s *Static) FetchCandles(ctx context.Context, instrument, _ string, limit int) ([]model.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Mark(err, exception.ErrTransientIO)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.errs[instrument]; err != nil {
		return nil, err
	}
	candles, ok := s.candles[instrument]
	if !ok {
		return nil, errors.Wrapf(exception.ErrNotFound, "candles of %s", instrument)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return slices.Clone(candles), nil
}

func (s *Static) CurrentPrice(ctx context.Context, instrument string) (decimal.Decimal, error) {
	candles, err := s.FetchCandles(ctx, instrument, "", 1)
	if err != nil {
		return decimal.Zero, err
	}
	last, ok := model.Last(candles)
	if !ok {
		return decimal.Zero, errors.Wrapf(exception.ErrNotFound, "price of %s", instrument)
	}
	return last.Close, nil
}
