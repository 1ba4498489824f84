/*
Paper implements the simulated execution engine.

# Module
  - trader: turns an admitted signal into an open position and a cash debit
  - fill model: slippage against the trader and commission on both legs
  - account: cash, daily loss anchor, equity snapshots

# Source
 1. signals accepted by the orchestration loop
 2. exit decisions from the risk manager

# Produce
  - positions, trades and the account row in the durable store
*/
package paper
