/*
Core implements the trading loop.

# Module
  - tick: fetch candles, reset the daily anchor, exits, then entries, then equity
  - exit phase: universal stop loss / take profit, then the strategy's own exit hint
  - entry phase: strategies in configured order, first accepted signal wins

# Source
 1. candles from the market data feed
 2. signals from the enabled strategies

# Produce
  - open and close requests to the paper trader
  - tick reports and loop metrics

# Sharded
  - none, a single goroutine owns the trader
*/
package core
