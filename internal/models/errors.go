package models

import "errors"

// Domain errors. Callers wrap them with a specific message via fmt.Errorf("%w: ...")
// and match with errors.Is.
var (
	ErrInsufficientCredits        = errors.New("insufficient credits")
	ErrInsufficientPayableBalance = errors.New("insufficient payable balance")
	ErrBelowMinimum               = errors.New("amount below minimum")
	ErrMissingEvidence            = errors.New("payment evidence is required")
	ErrInvalidStateTransition     = errors.New("invalid state transition")
	ErrConflict                   = errors.New("concurrent modification")
	ErrAlreadyPaid                = errors.New("already paid")
	ErrNotFound                   = errors.New("not found")
	ErrNegativeCost               = errors.New("booking total cost must not be negative")
	ErrInvalidAmount              = errors.New("invalid amount")
	ErrDisputeWindowClosed        = errors.New("dispute window has closed")
	ErrValidation                 = errors.New("validation failed")
)
