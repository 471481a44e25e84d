package models

import "time"

// Failure kinds recorded alongside free-form failure reasons.
const (
	FailureInvalidCredentials = "invalid_credentials"
	FailureAccountLocked      = "account_locked"
	FailureIPBlocked          = "ip_blocked"
	FailureRateLimited        = "rate_limited"
	FailureTwoFactorRequired  = "two_factor_required"
	FailureTwoFactorInvalid   = "two_factor_invalid"
)

// LoginAttempt is a single, immutable entry in the attempt ledger.
type LoginAttempt struct {
	ID            string     `db:"id"`
	Email         string     `db:"email"`
	IPAddress     string     `db:"ip_address"`
	UserAgent     *string    `db:"user_agent"`
	AttemptedAt   time.Time  `db:"attempted_at"`
	WasSuccessful bool       `db:"was_successful"`
	FailureReason *string    `db:"failure_reason"`
	FailureKind   *string    `db:"failure_kind"`
}
