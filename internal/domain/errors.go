package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrSigningFailed = errors.New("signing failed")
	ErrLockHeld      = errors.New("lock already held")
	ErrUnsupported   = errors.New("operation not supported by venue")
	ErrUnknownVenue  = errors.New("unknown venue")

	// ErrDataIntegrity is wrapped by every malformed-snapshot error so callers
	// can tell a discarded snapshot apart from a transient venue failure.
	ErrDataIntegrity      = errors.New("data integrity violation")
	ErrCrossedBook        = errors.New("crossed book")
	ErrNegativeQuantity   = errors.New("non-positive quantity")
	ErrNegativePrice      = errors.New("non-positive price")
	ErrNonMonotonicLevels = errors.New("non-monotonic price levels")
	ErrEmptyBook          = errors.New("empty book side")

	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrNotConfirmed          = errors.New("trade not confirmed")
	ErrBudgetExceeded        = errors.New("shared exposure budget exceeded")
)
