package marketdata

import (
	"context"

	"github.com/shopspring/decimal"

	"papertrade/internal/model"
)

// Feed supplies validated candles, oldest first.
type Feed interface {
	FetchCandles(ctx context.Context, instrument, timeframe string, limit int) ([]model.Candle, error)
	CurrentPrice(ctx context.Context, instrument string) (decimal.Decimal, error)
}
