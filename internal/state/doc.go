/*
State keeps the open positions in memory, one per instrument.

# Module
  - position manager: open / close through a store transaction
  - recover: reload open positions from the store on startup
  - snapshot: JSON dump of open positions for offline comparison

# Source
  - paper trader open / close requests
  - store on startup

# Produce
  - open position view for risk checks and the trading loop
*/
package state
