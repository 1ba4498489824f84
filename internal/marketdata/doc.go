// Package marketdata fetches candles and prices.
package marketdata
