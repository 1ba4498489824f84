package enum

// SignalKind entry_long, entry_short. Strategies never emit exits.
type SignalKind uint8

const (
	_signal_kind_beg SignalKind = iota
	SignalEntryLong
	SignalEntryShort
	_signal_kind_end
)

func (k SignalKind) IsAvailable() bool {
	return k > _signal_kind_beg && k < _signal_kind_end
}

func (k SignalKind) String() string {
	switch k {
	case SignalEntryLong:
		return "entry_long"
	case SignalEntryShort:
		return "entry_short"
	default:
		return "unknown"
	}
}

// Direction returns the position direction the signal asks for.
func (k SignalKind) Direction() Direction {
	switch k {
	case SignalEntryLong:
		return DirectionLong
	case SignalEntryShort:
		return DirectionShort
	default:
		return _direction_beg
	}
}
