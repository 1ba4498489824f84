// Package strategy turns candles into entry signals.
package strategy
