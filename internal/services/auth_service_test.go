package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/auth"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	pkgauth "github.com/JonathanArroyaveGonzalez/sapfi-auth/pkg/auth"
	pkglogger "github.com/JonathanArroyaveGonzalez/sapfi-auth/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery"

// Hashed once; bcrypt is deliberately slow.
var testPasswordHash = func() string {
	hash, err := pkgauth.HashPassword(testPassword)
	if err != nil {
		panic(err)
	}
	return hash
}()

type authFixture struct {
	users      *MockUserStore
	ipGate     *MockIPGate
	ledger     *MockAttemptLedger
	locker     *MockAccountLocker
	challenges *MockChallengeManager
	sessions   *MockSessionIssuer
	recorder   *MockRecorder
	email      *MockEmailSender
	tm         *auth.TokenManager
	svc        *AuthService
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		users:      &MockUserStore{},
		ipGate:     &MockIPGate{},
		ledger:     &MockAttemptLedger{},
		locker:     &MockAccountLocker{},
		challenges: &MockChallengeManager{},
		sessions:   &MockSessionIssuer{},
		recorder:   &MockRecorder{},
		email:      &MockEmailSender{},
		tm:         auth.NewTokenManager("test-secret-0123456789abcdef", "sapfi-auth", "sapfi-users", time.Hour),
	}

	f.svc = NewAuthService(AuthServiceDeps{
		Users:       f.users,
		IPGate:      f.ipGate,
		Ledger:      f.ledger,
		Locker:      f.locker,
		Challenges:  f.challenges,
		Sessions:    f.sessions,
		Recorder:    f.recorder,
		Email:       f.email,
		TokenMgr:    f.tm,
		Timing:      auth.NewTimingDelay(auth.TimingConfig{}),
		Logger:      discardLogger(),
		AuditLogger: pkglogger.NewAuditLogger(discardLogger()),
		Env:         "test",
	})
	return f
}

func testUser() *models.User {
	return &models.User{
		ID:           "user-1",
		Email:        "ada@example.com",
		PasswordHash: testPasswordHash,
		Name:         "Ada",
		Roles:        []string{"user"},
	}
}

func (f *authFixture) withUser(user *models.User) {
	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		if email == user.Email {
			return user, nil
		}
		return nil, models.ErrNotFound
	}
	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		if id == user.ID {
			return user, nil
		}
		return nil, models.ErrNotFound
	}
}

func loginReq() LoginRequest {
	return LoginRequest{
		Email:     "ada@example.com",
		Password:  testPassword,
		IPAddress: "203.0.113.7",
	}
}

func TestLoginBlockedIP(t *testing.T) {
	f := newAuthFixture()
	f.ipGate.IsBlockedFunc = func(ctx context.Context, ip string) (bool, error) { return true, nil }

	resp, err := f.svc.Login(context.Background(), loginReq())

	require.ErrorIs(t, err, models.ErrIPBlocked)
	assert.Nil(t, resp)
	// Credentials are never consulted for a blocked address
	assert.Zero(t, f.users.GetByEmailCalls)
	require.NotNil(t, f.ledger.LastRecorded())
	assert.Equal(t, models.FailureIPBlocked, *f.ledger.LastRecorded().FailureKind)
}

func TestLoginRateLimited(t *testing.T) {
	f := newAuthFixture()
	f.ledger.IsRateLimitedFunc = func(ctx context.Context, ip string) (bool, error) { return true, nil }

	resp, err := f.svc.Login(context.Background(), loginReq())

	require.ErrorIs(t, err, models.ErrRateLimitExceeded)
	assert.Nil(t, resp)
	assert.Zero(t, f.users.GetByEmailCalls)
	assert.Equal(t, models.FailureRateLimited, *f.ledger.LastRecorded().FailureKind)
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newAuthFixture()

	resp, err := f.svc.Login(context.Background(), loginReq())

	require.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Nil(t, resp)
	// No user row, so no counter to bump
	assert.Zero(t, f.locker.RegisterFailureCalls)
	assert.Equal(t, models.FailureInvalidCredentials, *f.ledger.LastRecorded().FailureKind)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture()
	f.withUser(testUser())

	req := loginReq()
	req.Password = "not the password"
	resp, err := f.svc.Login(context.Background(), req)

	require.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Nil(t, resp)
	assert.Equal(t, 1, f.locker.RegisterFailureCalls)
	assert.Equal(t, models.FailureInvalidCredentials, *f.ledger.LastRecorded().FailureKind)
}

func TestLoginLockedAccountRefusesValidPassword(t *testing.T) {
	f := newAuthFixture()
	f.withUser(testUser())
	until := time.Now().Add(10 * time.Minute)
	f.locker.StatusFunc = func(ctx context.Context, userID string) (*models.LockStatus, error) {
		return &models.LockStatus{IsLocked: true, LockedUntil: &until, FailedAttempts: 5}, nil
	}

	resp, err := f.svc.Login(context.Background(), loginReq())

	require.ErrorIs(t, err, models.ErrAccountLocked)
	var lockErr *models.AccountLockedError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, until, lockErr.LockedUntil)
	assert.Nil(t, resp)
	assert.Zero(t, f.sessions.IssueCalls)
	assert.Equal(t, models.FailureAccountLocked, *f.ledger.LastRecorded().FailureKind)
}

func TestLoginSuccess(t *testing.T) {
	f := newAuthFixture()
	f.withUser(testUser())

	resp, err := f.svc.Login(context.Background(), loginReq())

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.RequiresTwoFactor)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "ada@example.com", resp.User.Email)

	assert.Equal(t, 1, f.locker.ResetCalls)
	assert.Equal(t, 1, f.users.UpdateLastLoginCalls)
	assert.True(t, f.ledger.LastRecorded().WasSuccessful)
	assert.Equal(t, models.AuditLoginSuccess, f.recorder.LastEntry().Action)

	claims, err := f.tm.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.False(t, claims.TwoFactorPending)
	assert.Equal(t, []string{"user"}, claims.Roles)
}

func TestLoginNormalizesEmail(t *testing.T) {
	f := newAuthFixture()
	f.withUser(testUser())

	req := loginReq()
	req.Email = "  ADA@Example.com "
	_, err := f.svc.Login(context.Background(), req)

	require.NoError(t, err)
}

func TestLoginTwoFactorPending(t *testing.T) {
	f := newAuthFixture()
	user := testUser()
	user.TwoFactorEnabled = true
	f.withUser(user)

	resp, err := f.svc.Login(context.Background(), loginReq())

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.RequiresTwoFactor)
	assert.Empty(t, resp.RefreshToken)
	assert.Nil(t, resp.User)
	assert.Equal(t, 1, f.challenges.IssueCalls)
	// No session until the code is verified
	assert.Zero(t, f.sessions.IssueCalls)
	assert.True(t, f.tm.IsTwoFactorPending(resp.AccessToken))
	assert.Equal(t, models.AuditLoginPending2FA, f.recorder.LastEntry().Action)
}

func TestLoginTwoFactorDeliveryFailure(t *testing.T) {
	f := newAuthFixture()
	user := testUser()
	user.TwoFactorEnabled = true
	f.withUser(user)
	f.challenges.IssueFunc = func(ctx context.Context, u *models.User) error {
		return models.ErrTwoFactorDelivery
	}

	resp, err := f.svc.Login(context.Background(), loginReq())

	require.ErrorIs(t, err, models.ErrTwoFactorDelivery)
	assert.Nil(t, resp)
	assert.Equal(t, models.AuditLogin2FASendFailed, f.recorder.LastEntry().Action)
}

func TestLoginAutoBlocksAfterRepeatedFailures(t *testing.T) {
	f := newAuthFixture()
	f.withUser(testUser())
	f.ledger.ShouldAutoBlockFunc = func(ctx context.Context, ip string) (bool, error) { return true, nil }

	req := loginReq()
	req.Password = "not the password"
	_, err := f.svc.Login(context.Background(), req)

	require.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Equal(t, 1, f.ipGate.BlockAutomaticCalls)
}

func TestVerifyTwoFactorSuccess(t *testing.T) {
	f := newAuthFixture()
	user := testUser()
	user.TwoFactorEnabled = true
	f.withUser(user)
	f.challenges.ValidateFunc = func(ctx context.Context, userID, code string) error { return nil }

	pending, err := f.tm.GenerateAccessToken(user.ID, user.Email, nil, true)
	require.NoError(t, err)

	resp, err := f.svc.VerifyTwoFactor(context.Background(), VerifyTwoFactorRequest{
		PendingToken: pending,
		Code:         "123456",
		IPAddress:    "203.0.113.7",
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.RequiresTwoFactor)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.False(t, f.tm.IsTwoFactorPending(resp.AccessToken))
	assert.Equal(t, 1, f.locker.ResetCalls)
}

func TestVerifyTwoFactorWrongCode(t *testing.T) {
	f := newAuthFixture()
	user := testUser()
	f.withUser(user)

	pending, err := f.tm.GenerateAccessToken(user.ID, user.Email, nil, true)
	require.NoError(t, err)

	resp, err := f.svc.VerifyTwoFactor(context.Background(), VerifyTwoFactorRequest{
		PendingToken: pending,
		Code:         "000000",
		IPAddress:    "203.0.113.7",
	})

	require.ErrorIs(t, err, models.ErrInvalidTwoFactorCode)
	assert.Nil(t, resp)
	// Code failures stay out of the account lock counter
	assert.Zero(t, f.locker.RegisterFailureCalls)
	assert.Equal(t, models.FailureTwoFactorInvalid, *f.ledger.LastRecorded().FailureKind)
}

func TestVerifyTwoFactorRejectsNonPendingToken(t *testing.T) {
	f := newAuthFixture()
	user := testUser()
	f.withUser(user)

	full, err := f.tm.GenerateAccessToken(user.ID, user.Email, user.Roles, false)
	require.NoError(t, err)

	_, err = f.svc.VerifyTwoFactor(context.Background(), VerifyTwoFactorRequest{
		PendingToken: full,
		Code:         "123456",
		IPAddress:    "203.0.113.7",
	})

	require.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestRefreshBlockedIP(t *testing.T) {
	f := newAuthFixture()
	f.ipGate.IsBlockedFunc = func(ctx context.Context, ip string) (bool, error) { return true, nil }

	resp, err := f.svc.Refresh(context.Background(), RefreshRequest{
		RefreshToken: "some-token",
		IPAddress:    "203.0.113.7",
	})

	require.ErrorIs(t, err, models.ErrIPBlocked)
	assert.Nil(t, resp)
	assert.Equal(t, models.AuditRefreshBlockedIP, f.recorder.LastEntry().Action)
}

func TestRefreshInvalidToken(t *testing.T) {
	f := newAuthFixture()

	resp, err := f.svc.Refresh(context.Background(), RefreshRequest{
		RefreshToken: "unknown",
		IPAddress:    "203.0.113.7",
	})

	require.ErrorIs(t, err, models.ErrInvalidRefreshToken)
	assert.Nil(t, resp)
	assert.Equal(t, models.AuditRefreshInvalid, f.recorder.LastEntry().Action)
}

func TestRefreshSuccess(t *testing.T) {
	f := newAuthFixture()
	user := testUser()
	f.withUser(user)
	f.sessions.RotateFunc = func(ctx context.Context, token, ip string) (*models.RefreshToken, error) {
		return &models.RefreshToken{ID: "rt-2", Token: "fresh-value", UserID: user.ID}, nil
	}

	resp, err := f.svc.Refresh(context.Background(), RefreshRequest{
		RefreshToken: "old-value",
		IPAddress:    "203.0.113.7",
	})

	require.NoError(t, err)
	assert.Equal(t, "fresh-value", resp.RefreshToken)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.AuditRefreshSuccess, f.recorder.LastEntry().Action)
}

func TestLogoutRevokesAllSessions(t *testing.T) {
	f := newAuthFixture()

	err := f.svc.Logout(context.Background(), "user-1", "203.0.113.7")

	require.NoError(t, err)
	assert.Equal(t, 1, f.sessions.RevokeAllCalls)
	assert.Equal(t, models.AuditLogout, f.recorder.LastEntry().Action)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture()
	f.users.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
		return nil, models.ErrConflict
	}

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Email:    "ada@example.com",
		Password: testPassword,
		Name:     "Ada",
	})

	require.ErrorIs(t, err, models.ErrConflict)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	f := newAuthFixture()

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Email:    "ada@example.com",
		Password: "short",
		Name:     "Ada",
	})

	require.ErrorIs(t, err, models.ErrBadRequest)
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	f := newAuthFixture()

	err := f.svc.ForgotPassword(context.Background(), "nobody@example.com")

	require.NoError(t, err)
	assert.Empty(t, f.email.ResetTokens)
}

func TestForgotPasswordSendsResetToken(t *testing.T) {
	f := newAuthFixture()
	f.withUser(testUser())

	err := f.svc.ForgotPassword(context.Background(), "ada@example.com")

	require.NoError(t, err)
	require.Len(t, f.email.ResetTokens, 1)

	claims, err := f.tm.ValidateToken(f.email.ResetTokens[0])
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypePasswordReset, claims.Type)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestResetPasswordRevokesSessions(t *testing.T) {
	f := newAuthFixture()
	user := testUser()
	f.withUser(user)

	var storedHash string
	f.users.UpdatePasswordHashFunc = func(ctx context.Context, userID, hash string, now time.Time) error {
		storedHash = hash
		return nil
	}

	token, err := f.tm.GeneratePasswordResetToken(user.ID, user.Email, time.Hour)
	require.NoError(t, err)

	err = f.svc.ResetPassword(context.Background(), token, "a brand new password", "203.0.113.7")

	require.NoError(t, err)
	require.NotEmpty(t, storedHash)
	assert.NoError(t, pkgauth.ComparePassword(storedHash, "a brand new password"))
	assert.Equal(t, 1, f.sessions.RevokeAllCalls)
	assert.Equal(t, 1, f.locker.ResetCalls)
	assert.Equal(t, models.AuditPasswordReset, f.recorder.LastEntry().Action)
}

func TestResetPasswordRejectsAccessToken(t *testing.T) {
	f := newAuthFixture()
	user := testUser()
	f.withUser(user)

	access, err := f.tm.GenerateAccessToken(user.ID, user.Email, user.Roles, false)
	require.NoError(t, err)

	err = f.svc.ResetPassword(context.Background(), access, "a brand new password", "203.0.113.7")

	require.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestSetTwoFactorDisableClearsChallenge(t *testing.T) {
	f := newAuthFixture()
	cleared := false
	f.challenges.ClearFunc = func(ctx context.Context, userID string) error {
		cleared = true
		return nil
	}

	err := f.svc.SetTwoFactor(context.Background(), "user-1", false, "203.0.113.7")

	require.NoError(t, err)
	assert.True(t, cleared)
	assert.Equal(t, models.AuditTwoFactorDisabled, f.recorder.LastEntry().Action)
}

func TestLoginEmptyCredentials(t *testing.T) {
	f := newAuthFixture()

	_, err := f.svc.Login(context.Background(), LoginRequest{IPAddress: "203.0.113.7"})

	require.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Zero(t, f.users.GetByEmailCalls)
}

var errDatabase = errors.New("database unavailable")

func TestLoginGateErrorIsInternal(t *testing.T) {
	f := newAuthFixture()
	f.ipGate.IsBlockedFunc = func(ctx context.Context, ip string) (bool, error) { return false, errDatabase }

	_, err := f.svc.Login(context.Background(), loginReq())

	require.ErrorIs(t, err, models.ErrInternalServer)
}
