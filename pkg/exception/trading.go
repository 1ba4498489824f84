package exception

import "github.com/yanun0323/errors"

// Trading errors
var (
	ErrValidation          = errors.New("trading: validation failed")
	ErrDuplicatePosition   = errors.New("trading: duplicate position")
	ErrNoOpenPosition      = errors.New("trading: no open position")
	ErrInsufficientBalance = errors.New("trading: insufficient balance")
	ErrRiskRejected        = errors.New("trading: risk rejected")
	ErrInvalidPrice        = errors.New("trading: invalid price")
	ErrNotInitialised      = errors.New("trading: engine not initialised")
)

// Collaborator errors
var (
	ErrTransientIO  = errors.New("io: transient failure")
	ErrPersistence  = errors.New("store: persistence failed")
	ErrNotFound     = errors.New("store: record not found")
	ErrInvalidState = errors.New("store: invalid stored state")
)
