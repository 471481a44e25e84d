package models

import "time"

// Block kinds mirror how a block came to exist.
const (
	BlockKindManual             = "manual"
	BlockKindTooManyAttempts    = "too_many_attempts"
	BlockKindSuspiciousActivity = "suspicious_activity"
	BlockKindReportedAbuse      = "reported_abuse"
)

// IPBlock is a blacklist entry for a single IP address. A nil ExpiresAt
// means the block is permanent until explicitly lifted.
type IPBlock struct {
	ID        string     `db:"id"`
	IPAddress string     `db:"ip_address"`
	Reason    string     `db:"reason"`
	BlockKind string     `db:"block_kind"`
	BlockedAt time.Time  `db:"blocked_at"`
	ExpiresAt *time.Time `db:"expires_at"`
	BlockedBy *string    `db:"blocked_by"`
	Notes     *string    `db:"notes"`
}

// IsActive reports whether the block is in force at the given instant.
func (b *IPBlock) IsActive(now time.Time) bool {
	return b.ExpiresAt == nil || now.Before(*b.ExpiresAt)
}
