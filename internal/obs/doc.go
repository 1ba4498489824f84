// Package obs counts what the trading loop does and exposes it to
// prometheus. All Metrics methods are safe on a nil receiver.
package obs
