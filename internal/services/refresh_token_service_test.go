package services

import (
	"context"
	"testing"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/auth"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRefreshService(store *MockRefreshTokenStore) *RefreshTokenService {
	tm := auth.NewTokenManager("test-secret-0123456789abcdef", "sapfi-auth", "sapfi-users", time.Hour)
	return NewRefreshTokenService(store, tm, testSecurityConfig(), discardLogger())
}

func TestIssueMintsToken(t *testing.T) {
	store := &MockRefreshTokenStore{}
	var inserted *models.RefreshToken
	store.InsertFunc = func(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
		inserted = token
		token.ID = "rt-1"
		return token, nil
	}

	svc := newRefreshService(store)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(fixedClock(at))

	token, err := svc.Issue(context.Background(), "user-1", "203.0.113.7")

	require.NoError(t, err)
	require.NotNil(t, inserted)
	assert.NotEmpty(t, token.Token)
	assert.Equal(t, "user-1", token.UserID)
	assert.Equal(t, "203.0.113.7", token.CreatedByIP)
	assert.Equal(t, at.Add(7*24*time.Hour), token.ExpiresAt)
	assert.Zero(t, store.RevokeIfActiveCalls)
}

func TestIssueEvictsOldestAtCapacity(t *testing.T) {
	store := &MockRefreshTokenStore{}
	store.CountActiveByUserFunc = func(ctx context.Context, userID string, now time.Time) (int, error) {
		return 5, nil
	}
	oldest := &models.RefreshToken{ID: "rt-old", Token: "oldest-value", UserID: "user-1"}
	store.GetOldestActiveByUserFunc = func(ctx context.Context, userID string, now time.Time) (*models.RefreshToken, error) {
		return oldest, nil
	}
	var revokedToken, revokedReason string
	store.RevokeIfActiveFunc = func(ctx context.Context, token, ip, reason string, now time.Time) (*models.RefreshToken, error) {
		revokedToken = token
		revokedReason = reason
		return oldest, nil
	}

	svc := newRefreshService(store)

	_, err := svc.Issue(context.Background(), "user-1", "203.0.113.7")

	require.NoError(t, err)
	assert.Equal(t, 1, store.RevokeIfActiveCalls)
	assert.Equal(t, "oldest-value", revokedToken)
	assert.Equal(t, "Exceeded maximum active tokens", revokedReason)
}

func TestIssueEvictionToleratesConcurrentRevoke(t *testing.T) {
	store := &MockRefreshTokenStore{}
	store.CountActiveByUserFunc = func(ctx context.Context, userID string, now time.Time) (int, error) {
		return 5, nil
	}
	store.GetOldestActiveByUserFunc = func(ctx context.Context, userID string, now time.Time) (*models.RefreshToken, error) {
		return &models.RefreshToken{ID: "rt-old", Token: "oldest-value"}, nil
	}
	// Someone else revoked it between the lookup and the guard

	svc := newRefreshService(store)

	token, err := svc.Issue(context.Background(), "user-1", "203.0.113.7")

	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
}

func TestValidateUnknownToken(t *testing.T) {
	svc := newRefreshService(&MockRefreshTokenStore{})

	_, err := svc.Validate(context.Background(), "unknown")

	require.ErrorIs(t, err, models.ErrInvalidRefreshToken)
}

func TestValidateRevokedAndExpiredCollapse(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		token models.RefreshToken
	}{
		{"revoked", models.RefreshToken{Token: "v", IsRevoked: true, ExpiresAt: at.Add(time.Hour)}},
		{"expired", models.RefreshToken{Token: "v", ExpiresAt: at.Add(-time.Hour)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &MockRefreshTokenStore{}
			store.GetByTokenFunc = func(ctx context.Context, token string) (*models.RefreshToken, error) {
				stored := tc.token
				return &stored, nil
			}

			svc := newRefreshService(store)
			svc.SetClock(fixedClock(at))

			_, err := svc.Validate(context.Background(), "v")
			require.ErrorIs(t, err, models.ErrInvalidRefreshToken)
		})
	}
}

func TestRotateIssuesReplacement(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	store := &MockRefreshTokenStore{}
	store.RevokeIfActiveFunc = func(ctx context.Context, token, ip, reason string, now time.Time) (*models.RefreshToken, error) {
		assert.Equal(t, "Rotated", reason)
		return &models.RefreshToken{
			Token:     token,
			UserID:    "user-1",
			ExpiresAt: at.Add(time.Hour),
			IsRevoked: true,
		}, nil
	}

	svc := newRefreshService(store)
	svc.SetClock(fixedClock(at))

	fresh, err := svc.Rotate(context.Background(), "old-value", "203.0.113.7")

	require.NoError(t, err)
	assert.Equal(t, "user-1", fresh.UserID)
	assert.NotEqual(t, "old-value", fresh.Token)
	require.Len(t, store.ReplacedPairs, 1)
	assert.Equal(t, [2]string{"old-value", fresh.Token}, store.ReplacedPairs[0])
}

func TestRotateLoserGetsUniformError(t *testing.T) {
	// Default RevokeIfActive reports no active row, as after a concurrent
	// rotation of the same value
	store := &MockRefreshTokenStore{}
	svc := newRefreshService(store)

	_, err := svc.Rotate(context.Background(), "already-rotated", "203.0.113.7")

	require.ErrorIs(t, err, models.ErrInvalidRefreshToken)
	assert.Empty(t, store.ReplacedPairs)
}

func TestRotateExpiredToken(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	store := &MockRefreshTokenStore{}
	store.RevokeIfActiveFunc = func(ctx context.Context, token, ip, reason string, now time.Time) (*models.RefreshToken, error) {
		return &models.RefreshToken{Token: token, UserID: "user-1", ExpiresAt: at.Add(-time.Minute)}, nil
	}

	svc := newRefreshService(store)
	svc.SetClock(fixedClock(at))

	_, err := svc.Rotate(context.Background(), "stale", "203.0.113.7")

	require.ErrorIs(t, err, models.ErrInvalidRefreshToken)
}

func TestRevokeUnknownToken(t *testing.T) {
	svc := newRefreshService(&MockRefreshTokenStore{})

	err := svc.Revoke(context.Background(), "unknown", "203.0.113.7", "Revoked by user")

	require.ErrorIs(t, err, models.ErrInvalidRefreshToken)
}

func TestReclaimExpiredHasNoGrace(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	store := &MockRefreshTokenStore{}
	var gotCutoff time.Time
	store.DeleteExpiredBeforeFunc = func(ctx context.Context, now time.Time) (int64, error) {
		gotCutoff = now
		return 3, nil
	}

	svc := newRefreshService(store)
	svc.SetClock(fixedClock(at))

	removed, err := svc.ReclaimExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	assert.Equal(t, at, gotCutoff)
}
