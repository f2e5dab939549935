package domain

import "errors"

var (
	ErrValidation       = errors.New("invalid position parameters")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("position already closed")
	ErrPriceUnavailable = errors.New("price feed unavailable")
	ErrQuotaExceeded    = errors.New("guest quota exceeded")
	ErrLockHeld         = errors.New("lock already held")
	ErrRateLimited      = errors.New("rate limited")
)
