package enum

import "strings"

// PositionStatus open, closed. Closed is terminal.
type PositionStatus uint8

const (
	_position_status_beg PositionStatus = iota
	PositionStatusOpen
	PositionStatusClosed
	_position_status_end
)

func (s PositionStatus) IsAvailable() bool {
	return s > _position_status_beg && s < _position_status_end
}

func (s PositionStatus) String() string {
	switch s {
	case PositionStatusOpen:
		return "open"
	case PositionStatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func ParsePositionStatus(s string) (PositionStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return PositionStatusOpen, true
	case "closed":
		return PositionStatusClosed, true
	default:
		return _position_status_beg, false
	}
}
