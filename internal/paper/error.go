package paper

import (
	"papertrade/internal/risk"
	"papertrade/pkg/exception"
)

// RejectedError is returned by Open when a risk rule refused the signal.
// It matches exception.ErrRiskRejected.
type RejectedError struct {
	Instrument string
	Rule       risk.Rule
	Reason     string
}

func (e *RejectedError) Error() string {
	return exception.ErrRiskRejected.Error() + ", " + e.Instrument + " " + e.Rule.String() + ": " + e.Reason
}

func (e *RejectedError) Is(target error) bool {
	return target == exception.ErrRiskRejected
}
