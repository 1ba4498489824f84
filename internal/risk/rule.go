package risk

// Rule names the admission check that rejected a signal.
type Rule uint8

const (
	_rule_beg Rule = iota
	RuleDuplicate
	RuleMaxPositions
	RuleDailyLoss
	RuleSignalStrength
	_rule_end
)

func (r Rule) IsAvailable() bool {
	return r > _rule_beg && r < _rule_end
}

func (r Rule) String() string {
	switch r {
	case RuleDuplicate:
		return "duplicate_instrument"
	case RuleMaxPositions:
		return "max_open_positions"
	case RuleDailyLoss:
		return "daily_loss_breaker"
	case RuleSignalStrength:
		return "signal_strength"
	default:
		return "none"
	}
}

// Rules lists every admission rule in evaluation order.
func Rules() []Rule {
	rules := make([]Rule, 0, _rule_end-_rule_beg-1)
	for r := _rule_beg + 1; r < _rule_end; r++ {
		rules = append(rules, r)
	}
	return rules
}
