package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTwoFactorFixture(t *testing.T, env string) (*TwoFactorService, *miniredis.Miniredis, *MockEmailSender) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	email := &MockEmailSender{}

	svc := NewTwoFactorService(client, email, 10*time.Minute, env, discardLogger())
	return svc, mr, email
}

func twoFactorUser() *models.User {
	return &models.User{ID: "user-1", Email: "ada@example.com", TwoFactorEnabled: true}
}

func TestIssueStoresDigestAndSendsCode(t *testing.T) {
	svc, mr, email := newTwoFactorFixture(t, "development")
	user := twoFactorUser()

	err := svc.Issue(context.Background(), user)

	require.NoError(t, err)
	require.Len(t, email.TwoFactorCodes, 1)
	code := email.TwoFactorCodes[0]
	assert.Len(t, code, 6)

	stored, err := mr.Get(challengeKey(user.ID))
	require.NoError(t, err)
	// Only the digest lands in Redis, never the code itself
	assert.NotEqual(t, code, stored)
	assert.Equal(t, hashCode(code), stored)

	ttl := mr.TTL(challengeKey(user.ID))
	assert.Equal(t, 10*time.Minute, ttl)
}

func TestIssueReplacesOutstandingChallenge(t *testing.T) {
	svc, mr, email := newTwoFactorFixture(t, "development")
	user := twoFactorUser()

	require.NoError(t, svc.Issue(context.Background(), user))
	require.NoError(t, svc.Issue(context.Background(), user))

	require.Len(t, email.TwoFactorCodes, 2)
	stored, err := mr.Get(challengeKey(user.ID))
	require.NoError(t, err)
	// Only the latest code is valid
	assert.Equal(t, hashCode(email.TwoFactorCodes[1]), stored)
}

func TestValidateConsumesChallenge(t *testing.T) {
	svc, mr, email := newTwoFactorFixture(t, "development")
	user := twoFactorUser()
	require.NoError(t, svc.Issue(context.Background(), user))
	code := email.TwoFactorCodes[0]

	err := svc.Validate(context.Background(), user.ID, code)
	require.NoError(t, err)

	assert.False(t, mr.Exists(challengeKey(user.ID)))

	// Resubmitting the same code fails
	err = svc.Validate(context.Background(), user.ID, code)
	require.ErrorIs(t, err, models.ErrInvalidTwoFactorCode)
}

func TestValidateWrongCode(t *testing.T) {
	svc, mr, email := newTwoFactorFixture(t, "development")
	user := twoFactorUser()
	require.NoError(t, svc.Issue(context.Background(), user))

	wrong := "000000"
	if email.TwoFactorCodes[0] == wrong {
		wrong = "000001"
	}

	err := svc.Validate(context.Background(), user.ID, wrong)

	require.ErrorIs(t, err, models.ErrInvalidTwoFactorCode)
	// A failed attempt does not consume the challenge
	assert.True(t, mr.Exists(challengeKey(user.ID)))
}

func TestValidateExpiredChallenge(t *testing.T) {
	svc, mr, email := newTwoFactorFixture(t, "development")
	user := twoFactorUser()
	require.NoError(t, svc.Issue(context.Background(), user))

	mr.FastForward(10*time.Minute + time.Second)

	err := svc.Validate(context.Background(), user.ID, email.TwoFactorCodes[0])
	require.ErrorIs(t, err, models.ErrInvalidTwoFactorCode)
}

func TestIssueDeliveryFailureInProduction(t *testing.T) {
	svc, mr, email := newTwoFactorFixture(t, "production")
	email.SendTwoFactorCodeFunc = func(ctx context.Context, addr, code string, ttl time.Duration) error {
		return errors.New("ses unavailable")
	}
	user := twoFactorUser()

	err := svc.Issue(context.Background(), user)

	require.ErrorIs(t, err, models.ErrTwoFactorDelivery)
	// The undeliverable challenge is invalidated
	assert.False(t, mr.Exists(challengeKey(user.ID)))
}

func TestIssueDeliveryFailureInDevelopment(t *testing.T) {
	svc, mr, email := newTwoFactorFixture(t, "development")
	email.SendTwoFactorCodeFunc = func(ctx context.Context, addr, code string, ttl time.Duration) error {
		return errors.New("no provider configured")
	}
	user := twoFactorUser()

	err := svc.Issue(context.Background(), user)

	// The challenge stands; the code is logged instead
	require.NoError(t, err)
	assert.True(t, mr.Exists(challengeKey(user.ID)))
}

func TestClearDropsChallenge(t *testing.T) {
	svc, mr, _ := newTwoFactorFixture(t, "development")
	user := twoFactorUser()
	require.NoError(t, svc.Issue(context.Background(), user))

	require.NoError(t, svc.Clear(context.Background(), user.ID))
	assert.False(t, mr.Exists(challengeKey(user.ID)))
}
