package enum

// ExitReason stop loss, take profit, strategy, liquidation, manual
type ExitReason uint8

const (
	_exit_reason_beg ExitReason = iota
	ExitStopLoss
	ExitTakeProfit
	ExitStrategy
	ExitLiquidation
	ExitManual
	_exit_reason_end
)

func (r ExitReason) IsAvailable() bool {
	return r > _exit_reason_beg && r < _exit_reason_end
}

func (r ExitReason) String() string {
	switch r {
	case ExitStopLoss:
		return "stop loss"
	case ExitTakeProfit:
		return "take profit"
	case ExitStrategy:
		return "strategy exit"
	case ExitLiquidation:
		return "liquidation"
	case ExitManual:
		return "manual"
	default:
		return ""
	}
}
