package models

import (
	"errors"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Pipeline rejections
	ErrIPBlocked            = errors.New("ip address is blocked")
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrAccountLocked        = errors.New("account is temporarily locked")
	ErrInvalidTwoFactorCode = errors.New("invalid or expired two-factor code")
	ErrTwoFactorDelivery    = errors.New("failed to deliver two-factor code")
	ErrInvalidRefreshToken  = errors.New("invalid or expired refresh token")
)

// AccountLockedError carries the lockout deadline so handlers can report
// remaining minutes without a second lookup. Unwraps to ErrAccountLocked.
type AccountLockedError struct {
	LockedUntil time.Time
}

func (e *AccountLockedError) Error() string { return ErrAccountLocked.Error() }

func (e *AccountLockedError) Unwrap() error { return ErrAccountLocked }
