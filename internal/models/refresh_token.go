package models

import "time"

// RefreshToken is an opaque, store-validated token. The token value itself
// carries no claims; authority comes entirely from the row.
type RefreshToken struct {
	ID              string     `db:"id"`
	Token           string     `db:"token"`
	UserID          string     `db:"user_id"`
	CreatedAt       time.Time  `db:"created_at"`
	ExpiresAt       time.Time  `db:"expires_at"`
	CreatedByIP     string     `db:"created_by_ip"`
	IsRevoked       bool       `db:"is_revoked"`
	RevokedAt       *time.Time `db:"revoked_at"`
	RevokedByIP     *string    `db:"revoked_by_ip"`
	RevokedReason   *string    `db:"revoked_reason"`
	ReplacedByToken *string    `db:"replaced_by_token"`
}

// IsActive reports whether the token can still be redeemed at the given instant.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}

// IsExpired reports whether the token's lifetime has elapsed.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
