package strategy

import (
	"math"

	"papertrade/internal/model"
)

// Indicator math is float64: these values rank and filter, they are never
// booked as money.

func closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i], _ = c.Close.Float64()
	}
	return out
}

// EMA is the exponential moving average with alpha 2/(span+1), seeded with
// the first value.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 || span <= 0 {
		return out
	}
	alpha := 2 / (float64(span) + 1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI uses simple moving averages of gains and losses over period. Values
// before the first full window are NaN, as is a window with no movement.
func RSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(values) <= period {
		return out
	}

	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	var gainSum, lossSum float64
	for i := 1; i < len(values); i++ {
		gainSum += gains[i]
		lossSum += losses[i]
		if i > period {
			gainSum -= gains[i-period]
			lossSum -= losses[i-period]
		}
		if i < period {
			continue
		}
		switch {
		case gainSum == 0 && lossSum == 0:
			out[i] = math.NaN()
		case lossSum == 0:
			out[i] = 100
		default:
			rs := gainSum / lossSum
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}
