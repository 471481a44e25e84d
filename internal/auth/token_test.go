package auth

import (
	"testing"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager() *TokenManager {
	return NewTokenManager("test-secret-0123456789abcdef", "sapfi-auth", "sapfi-users", 30*time.Minute)
}

func TestAccessTokenRoundtrip(t *testing.T) {
	tm := newTestTokenManager()

	token, err := tm.GenerateAccessToken("user-1", "ada@example.com", []string{"user", "admin"}, false)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, []string{"user", "admin"}, claims.Roles)
	assert.Equal(t, models.TokenTypeAccess, claims.Type)
	assert.False(t, claims.TwoFactorPending)
}

func TestPendingTokenCarriesFlag(t *testing.T) {
	tm := newTestTokenManager()

	pending, err := tm.GenerateAccessToken("user-1", "ada@example.com", nil, true)
	require.NoError(t, err)
	assert.True(t, tm.IsTwoFactorPending(pending))

	full, err := tm.GenerateAccessToken("user-1", "ada@example.com", []string{"user"}, false)
	require.NoError(t, err)
	assert.False(t, tm.IsTwoFactorPending(full))
}

func TestExpiredTokenRejected(t *testing.T) {
	tm := newTestTokenManager()
	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tm.SetClock(func() time.Time { return issued })

	token, err := tm.GenerateAccessToken("user-1", "ada@example.com", nil, false)
	require.NoError(t, err)

	tm.SetClock(func() time.Time { return issued.Add(31 * time.Minute) })

	_, err = tm.ValidateToken(token)
	require.Error(t, err)
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	tm := newTestTokenManager()
	other := NewTokenManager("another-secret-0123456789abcdef", "sapfi-auth", "sapfi-users", 30*time.Minute)

	token, err := other.GenerateAccessToken("user-1", "ada@example.com", nil, false)
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	require.Error(t, err)
}

func TestTokenFromOtherIssuerRejected(t *testing.T) {
	tm := newTestTokenManager()
	other := NewTokenManager("test-secret-0123456789abcdef", "someone-else", "sapfi-users", 30*time.Minute)

	token, err := other.GenerateAccessToken("user-1", "ada@example.com", nil, false)
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	require.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	tm := newTestTokenManager()

	_, err := tm.ValidateToken("not-a-jwt")
	require.Error(t, err)

	assert.False(t, tm.IsTwoFactorPending("not-a-jwt"))
}

func TestPasswordResetTokenType(t *testing.T) {
	tm := newTestTokenManager()

	token, err := tm.GeneratePasswordResetToken("user-1", "ada@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypePasswordReset, claims.Type)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestGenerateRefreshValueIsOpaqueAndUnique(t *testing.T) {
	tm := newTestTokenManager()

	first, err := tm.GenerateRefreshValue()
	require.NoError(t, err)
	second, err := tm.GenerateRefreshValue()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	// The value is not a parseable token
	_, err = tm.ValidateToken(first)
	require.Error(t, err)
}
