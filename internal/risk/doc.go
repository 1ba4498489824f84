/*
Risk admits entries and decides exits.

# Module
  - admission: duplicate, max open positions, daily loss breaker, signal strength
  - sizing: fixed fraction of portfolio value
  - exit: stop loss, take profit, then strategy exit hints

# Source
  - signals from strategies
  - portfolio value and open positions from the paper trader

# Produce
  - decisions with the rule that rejected them
*/
package risk
