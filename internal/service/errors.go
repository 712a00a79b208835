package service

import "errors"

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrUnknownSource  = errors.New("unknown payment source")
	ErrCardRequired   = errors.New("card is required when payment source is credit card")
	ErrInvalidCard    = errors.New("selected source must be a credit or store card")
	ErrDebtSettled    = errors.New("debt is already paid")
	ErrPeriodRequired = errors.New("period is required")
	ErrForbidden      = errors.New("plan belongs to another user")
)
