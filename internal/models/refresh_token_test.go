package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshTokenIsActive(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	live := RefreshToken{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, live.IsActive(now))
	assert.False(t, live.IsExpired(now))

	revoked := RefreshToken{ExpiresAt: now.Add(time.Hour), IsRevoked: true}
	assert.False(t, revoked.IsActive(now))

	expired := RefreshToken{ExpiresAt: now.Add(-time.Second)}
	assert.False(t, expired.IsActive(now))
	assert.True(t, expired.IsExpired(now))

	// Expiry boundary is exclusive
	boundary := RefreshToken{ExpiresAt: now}
	assert.False(t, boundary.IsActive(now))
	assert.True(t, boundary.IsExpired(now))
}

func TestIPBlockIsActive(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	permanent := IPBlock{}
	assert.True(t, permanent.IsActive(now))

	future := now.Add(time.Hour)
	live := IPBlock{ExpiresAt: &future}
	assert.True(t, live.IsActive(now))

	past := now.Add(-time.Second)
	lapsed := IPBlock{ExpiresAt: &past}
	assert.False(t, lapsed.IsActive(now))
}

func TestAccountLockedErrorUnwrapsToSentinel(t *testing.T) {
	until := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	err := &AccountLockedError{LockedUntil: until}

	assert.True(t, errors.Is(err, ErrAccountLocked))

	var lockErr *AccountLockedError
	assert.True(t, errors.As(error(err), &lockErr))
	assert.Equal(t, until, lockErr.LockedUntil)
}
