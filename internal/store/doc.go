/*
Store is the durable record of positions, trades and the account.

# Module
  - memory: copy-on-write in-process store for tests and dry runs
  - gorm: postgres / sqlite backend, monetary columns as exact decimal text

# Source
  - position manager and paper trader writes

# Produce
  - open positions and account state on startup
  - trade log for reporting

Every write of a position change goes through Transaction so that the
position row, its trade and the account row commit together.
*/
package store
