package enum

import "strings"

// Direction long, short
type Direction uint8

const (
	_direction_beg Direction = iota
	DirectionLong
	DirectionShort
	_direction_end
)

func (d Direction) IsAvailable() bool {
	return d > _direction_beg && d < _direction_end
}

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "unknown"
	}
}

// ParseDirection is the inverse of Direction.String.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long":
		return DirectionLong, true
	case "short":
		return DirectionShort, true
	default:
		return _direction_beg, false
	}
}
