package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
)

// discardLogger returns a logger that drops everything, for tests
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockUserStore implements UserStore for testing
type MockUserStore struct {
	GetByEmailFunc          func(ctx context.Context, email string) (*models.User, error)
	GetByIDFunc             func(ctx context.Context, id string) (*models.User, error)
	CreateFunc              func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateLastLoginFunc     func(ctx context.Context, userID string, ip *string, now time.Time) error
	SetTwoFactorEnabledFunc func(ctx context.Context, userID string, enabled bool, now time.Time) error
	UpdatePasswordHashFunc  func(ctx context.Context, userID, hash string, now time.Time) error

	GetByEmailCalls      int
	UpdateLastLoginCalls int
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.GetByEmailCalls++
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) UpdateLastLogin(ctx context.Context, userID string, ip *string, now time.Time) error {
	m.UpdateLastLoginCalls++
	if m.UpdateLastLoginFunc != nil {
		return m.UpdateLastLoginFunc(ctx, userID, ip, now)
	}
	return nil
}

func (m *MockUserStore) SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool, now time.Time) error {
	if m.SetTwoFactorEnabledFunc != nil {
		return m.SetTwoFactorEnabledFunc(ctx, userID, enabled, now)
	}
	return nil
}

func (m *MockUserStore) UpdatePasswordHash(ctx context.Context, userID, hash string, now time.Time) error {
	if m.UpdatePasswordHashFunc != nil {
		return m.UpdatePasswordHashFunc(ctx, userID, hash, now)
	}
	return nil
}

// MockIPGate implements IPGate for testing
type MockIPGate struct {
	IsBlockedFunc      func(ctx context.Context, ipAddress string) (bool, error)
	BlockAutomaticFunc func(ctx context.Context, ipAddress, reason string) (*models.IPBlock, error)

	BlockAutomaticCalls int
}

func (m *MockIPGate) IsBlocked(ctx context.Context, ipAddress string) (bool, error) {
	if m.IsBlockedFunc != nil {
		return m.IsBlockedFunc(ctx, ipAddress)
	}
	return false, nil
}

func (m *MockIPGate) BlockAutomatic(ctx context.Context, ipAddress, reason string) (*models.IPBlock, error) {
	m.BlockAutomaticCalls++
	if m.BlockAutomaticFunc != nil {
		return m.BlockAutomaticFunc(ctx, ipAddress, reason)
	}
	return &models.IPBlock{ID: "block-1", IPAddress: ipAddress, Reason: reason, BlockKind: models.BlockKindTooManyAttempts}, nil
}

// MockAttemptLedger implements AttemptLedger for testing
type MockAttemptLedger struct {
	IsRateLimitedFunc   func(ctx context.Context, ipAddress string) (bool, error)
	ShouldAutoBlockFunc func(ctx context.Context, ipAddress string) (bool, error)

	Recorded []*models.LoginAttempt
}

func (m *MockAttemptLedger) Record(ctx context.Context, attempt *models.LoginAttempt) {
	m.Recorded = append(m.Recorded, attempt)
}

func (m *MockAttemptLedger) IsRateLimited(ctx context.Context, ipAddress string) (bool, error) {
	if m.IsRateLimitedFunc != nil {
		return m.IsRateLimitedFunc(ctx, ipAddress)
	}
	return false, nil
}

func (m *MockAttemptLedger) ShouldAutoBlock(ctx context.Context, ipAddress string) (bool, error) {
	if m.ShouldAutoBlockFunc != nil {
		return m.ShouldAutoBlockFunc(ctx, ipAddress)
	}
	return false, nil
}

// LastRecorded returns the most recent ledger entry, or nil
func (m *MockAttemptLedger) LastRecorded() *models.LoginAttempt {
	if len(m.Recorded) == 0 {
		return nil
	}
	return m.Recorded[len(m.Recorded)-1]
}

// MockAccountLocker implements AccountLocker for testing
type MockAccountLocker struct {
	StatusFunc          func(ctx context.Context, userID string) (*models.LockStatus, error)
	RegisterFailureFunc func(ctx context.Context, userID string) (*models.LockStatus, error)
	ResetFunc           func(ctx context.Context, userID string) error

	RegisterFailureCalls int
	ResetCalls           int
}

func (m *MockAccountLocker) Status(ctx context.Context, userID string) (*models.LockStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, userID)
	}
	return &models.LockStatus{}, nil
}

func (m *MockAccountLocker) RegisterFailure(ctx context.Context, userID string) (*models.LockStatus, error) {
	m.RegisterFailureCalls++
	if m.RegisterFailureFunc != nil {
		return m.RegisterFailureFunc(ctx, userID)
	}
	return &models.LockStatus{FailedAttempts: 1}, nil
}

func (m *MockAccountLocker) Reset(ctx context.Context, userID string) error {
	m.ResetCalls++
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, userID)
	}
	return nil
}

// MockChallengeManager implements ChallengeManager for testing
type MockChallengeManager struct {
	IssueFunc    func(ctx context.Context, user *models.User) error
	ValidateFunc func(ctx context.Context, userID, code string) error
	ClearFunc    func(ctx context.Context, userID string) error

	IssueCalls int
}

func (m *MockChallengeManager) Issue(ctx context.Context, user *models.User) error {
	m.IssueCalls++
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, user)
	}
	return nil
}

func (m *MockChallengeManager) Validate(ctx context.Context, userID, code string) error {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, userID, code)
	}
	return models.ErrInvalidTwoFactorCode
}

func (m *MockChallengeManager) Clear(ctx context.Context, userID string) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, userID)
	}
	return nil
}

// MockSessionIssuer implements SessionIssuer for testing
type MockSessionIssuer struct {
	IssueFunc      func(ctx context.Context, userID, ip string) (*models.RefreshToken, error)
	RotateFunc     func(ctx context.Context, token, ip string) (*models.RefreshToken, error)
	RevokeFunc     func(ctx context.Context, token, ip, reason string) error
	RevokeAllFunc  func(ctx context.Context, userID, ip, reason string) (int64, error)
	ListActiveFunc func(ctx context.Context, userID string) ([]*models.RefreshToken, error)

	IssueCalls     int
	RevokeAllCalls int
}

func (m *MockSessionIssuer) Issue(ctx context.Context, userID, ip string) (*models.RefreshToken, error) {
	m.IssueCalls++
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, userID, ip)
	}
	return &models.RefreshToken{ID: "rt-1", Token: "refresh-value", UserID: userID, CreatedByIP: ip}, nil
}

func (m *MockSessionIssuer) Rotate(ctx context.Context, token, ip string) (*models.RefreshToken, error) {
	if m.RotateFunc != nil {
		return m.RotateFunc(ctx, token, ip)
	}
	return nil, models.ErrInvalidRefreshToken
}

func (m *MockSessionIssuer) Revoke(ctx context.Context, token, ip, reason string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, token, ip, reason)
	}
	return nil
}

func (m *MockSessionIssuer) RevokeAll(ctx context.Context, userID, ip, reason string) (int64, error) {
	m.RevokeAllCalls++
	if m.RevokeAllFunc != nil {
		return m.RevokeAllFunc(ctx, userID, ip, reason)
	}
	return 0, nil
}

func (m *MockSessionIssuer) ListActive(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, userID)
	}
	return []*models.RefreshToken{}, nil
}

// MockRecorder implements Recorder for testing
type MockRecorder struct {
	Entries []*models.AuditLog
}

func (m *MockRecorder) Record(ctx context.Context, entry *models.AuditLog) {
	m.Entries = append(m.Entries, entry)
}

// LastEntry returns the most recent audit entry, or nil
func (m *MockRecorder) LastEntry() *models.AuditLog {
	if len(m.Entries) == 0 {
		return nil
	}
	return m.Entries[len(m.Entries)-1]
}

// MockEmailSender implements EmailSender for testing
type MockEmailSender struct {
	SendTwoFactorCodeFunc func(ctx context.Context, email, code string, ttl time.Duration) error
	SendPasswordResetFunc func(ctx context.Context, email, token string, ttl time.Duration) error

	TwoFactorCodes []string
	ResetTokens    []string
}

func (m *MockEmailSender) SendTwoFactorCode(ctx context.Context, email, code string, ttl time.Duration) error {
	m.TwoFactorCodes = append(m.TwoFactorCodes, code)
	if m.SendTwoFactorCodeFunc != nil {
		return m.SendTwoFactorCodeFunc(ctx, email, code, ttl)
	}
	return nil
}

func (m *MockEmailSender) SendPasswordReset(ctx context.Context, email, token string, ttl time.Duration) error {
	m.ResetTokens = append(m.ResetTokens, token)
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, email, token, ttl)
	}
	return nil
}

// MockAttemptRepository implements AttemptRepository for testing
type MockAttemptRepository struct {
	InsertFunc                  func(ctx context.Context, attempt *models.LoginAttempt) error
	CountByIPSinceFunc          func(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountByEmailSinceFunc       func(ctx context.Context, email string, since time.Time) (int, error)
	CountFailedByIPSinceFunc    func(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountFailedByEmailSinceFunc func(ctx context.Context, email string, since time.Time) (int, error)
	ListRecentFunc              func(ctx context.Context, limit int) ([]*models.LoginAttempt, error)
	DeleteOlderThanFunc         func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockAttemptRepository) Insert(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, attempt)
	}
	return nil
}

func (m *MockAttemptRepository) CountByIPSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if m.CountByIPSinceFunc != nil {
		return m.CountByIPSinceFunc(ctx, ipAddress, since)
	}
	return 0, nil
}

func (m *MockAttemptRepository) CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error) {
	if m.CountByEmailSinceFunc != nil {
		return m.CountByEmailSinceFunc(ctx, email, since)
	}
	return 0, nil
}

func (m *MockAttemptRepository) CountFailedByIPSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if m.CountFailedByIPSinceFunc != nil {
		return m.CountFailedByIPSinceFunc(ctx, ipAddress, since)
	}
	return 0, nil
}

func (m *MockAttemptRepository) CountFailedByEmailSince(ctx context.Context, email string, since time.Time) (int, error) {
	if m.CountFailedByEmailSinceFunc != nil {
		return m.CountFailedByEmailSinceFunc(ctx, email, since)
	}
	return 0, nil
}

func (m *MockAttemptRepository) ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, limit)
	}
	return []*models.LoginAttempt{}, nil
}

func (m *MockAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockBlockStore implements BlockStore for testing
type MockBlockStore struct {
	HasActiveBlockFunc      func(ctx context.Context, ipAddress string, now time.Time) (bool, error)
	GetActiveBlockFunc      func(ctx context.Context, ipAddress string, now time.Time) (*models.IPBlock, error)
	UpdateBlockFunc         func(ctx context.Context, block *models.IPBlock) error
	InsertBlockFunc         func(ctx context.Context, block *models.IPBlock) (*models.IPBlock, error)
	ExpireAllFunc           func(ctx context.Context, ipAddress string, expiresAt time.Time, note string) (int64, error)
	ListFunc                func(ctx context.Context, activeOnly bool, now time.Time) ([]*models.IPBlock, error)
	DeleteExpiredBeforeFunc func(ctx context.Context, cutoff time.Time) (int64, error)

	UpdateBlockCalls int
	InsertBlockCalls int
}

func (m *MockBlockStore) HasActiveBlock(ctx context.Context, ipAddress string, now time.Time) (bool, error) {
	if m.HasActiveBlockFunc != nil {
		return m.HasActiveBlockFunc(ctx, ipAddress, now)
	}
	return false, nil
}

func (m *MockBlockStore) GetActiveBlock(ctx context.Context, ipAddress string, now time.Time) (*models.IPBlock, error) {
	if m.GetActiveBlockFunc != nil {
		return m.GetActiveBlockFunc(ctx, ipAddress, now)
	}
	return nil, models.ErrNotFound
}

func (m *MockBlockStore) UpdateBlock(ctx context.Context, block *models.IPBlock) error {
	m.UpdateBlockCalls++
	if m.UpdateBlockFunc != nil {
		return m.UpdateBlockFunc(ctx, block)
	}
	return nil
}

func (m *MockBlockStore) InsertBlock(ctx context.Context, block *models.IPBlock) (*models.IPBlock, error) {
	m.InsertBlockCalls++
	if m.InsertBlockFunc != nil {
		return m.InsertBlockFunc(ctx, block)
	}
	block.ID = "block-1"
	return block, nil
}

func (m *MockBlockStore) ExpireAll(ctx context.Context, ipAddress string, expiresAt time.Time, note string) (int64, error) {
	if m.ExpireAllFunc != nil {
		return m.ExpireAllFunc(ctx, ipAddress, expiresAt, note)
	}
	return 0, nil
}

func (m *MockBlockStore) List(ctx context.Context, activeOnly bool, now time.Time) ([]*models.IPBlock, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, activeOnly, now)
	}
	return []*models.IPBlock{}, nil
}

func (m *MockBlockStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteExpiredBeforeFunc != nil {
		return m.DeleteExpiredBeforeFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockLockStore implements LockStore for testing
type MockLockStore struct {
	IncrementFailedAttemptsFunc func(ctx context.Context, userID string, failedAt time.Time) (int, error)
	ResetFailedAttemptsFunc     func(ctx context.Context, userID string, now time.Time) error
	SetLockoutFunc              func(ctx context.Context, userID string, until *time.Time, now time.Time) error
	GetLockStateFunc            func(ctx context.Context, userID string) (int, *time.Time, error)

	SetLockoutCalls int
}

func (m *MockLockStore) IncrementFailedAttempts(ctx context.Context, userID string, failedAt time.Time) (int, error) {
	if m.IncrementFailedAttemptsFunc != nil {
		return m.IncrementFailedAttemptsFunc(ctx, userID, failedAt)
	}
	return 1, nil
}

func (m *MockLockStore) ResetFailedAttempts(ctx context.Context, userID string, now time.Time) error {
	if m.ResetFailedAttemptsFunc != nil {
		return m.ResetFailedAttemptsFunc(ctx, userID, now)
	}
	return nil
}

func (m *MockLockStore) SetLockout(ctx context.Context, userID string, until *time.Time, now time.Time) error {
	m.SetLockoutCalls++
	if m.SetLockoutFunc != nil {
		return m.SetLockoutFunc(ctx, userID, until, now)
	}
	return nil
}

func (m *MockLockStore) GetLockState(ctx context.Context, userID string) (int, *time.Time, error) {
	if m.GetLockStateFunc != nil {
		return m.GetLockStateFunc(ctx, userID)
	}
	return 0, nil, nil
}

// MockRefreshTokenStore implements RefreshTokenStore for testing
type MockRefreshTokenStore struct {
	InsertFunc                func(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error)
	GetByTokenFunc            func(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeIfActiveFunc        func(ctx context.Context, token, ip, reason string, now time.Time) (*models.RefreshToken, error)
	SetReplacedByFunc         func(ctx context.Context, oldToken, newToken string) error
	RevokeAllForUserFunc      func(ctx context.Context, userID, ip, reason string, now time.Time) (int64, error)
	ListActiveByUserFunc      func(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error)
	CountActiveByUserFunc     func(ctx context.Context, userID string, now time.Time) (int, error)
	GetOldestActiveByUserFunc func(ctx context.Context, userID string, now time.Time) (*models.RefreshToken, error)
	DeleteExpiredBeforeFunc   func(ctx context.Context, now time.Time) (int64, error)

	RevokeIfActiveCalls int
	ReplacedPairs       [][2]string
}

func (m *MockRefreshTokenStore) Insert(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, token)
	}
	token.ID = "rt-1"
	return token, nil
}

func (m *MockRefreshTokenStore) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockRefreshTokenStore) RevokeIfActive(ctx context.Context, token, ip, reason string, now time.Time) (*models.RefreshToken, error) {
	m.RevokeIfActiveCalls++
	if m.RevokeIfActiveFunc != nil {
		return m.RevokeIfActiveFunc(ctx, token, ip, reason, now)
	}
	return nil, models.ErrNotFound
}

func (m *MockRefreshTokenStore) SetReplacedBy(ctx context.Context, oldToken, newToken string) error {
	m.ReplacedPairs = append(m.ReplacedPairs, [2]string{oldToken, newToken})
	if m.SetReplacedByFunc != nil {
		return m.SetReplacedByFunc(ctx, oldToken, newToken)
	}
	return nil
}

func (m *MockRefreshTokenStore) RevokeAllForUser(ctx context.Context, userID, ip, reason string, now time.Time) (int64, error) {
	if m.RevokeAllForUserFunc != nil {
		return m.RevokeAllForUserFunc(ctx, userID, ip, reason, now)
	}
	return 0, nil
}

func (m *MockRefreshTokenStore) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
	if m.ListActiveByUserFunc != nil {
		return m.ListActiveByUserFunc(ctx, userID, now)
	}
	return []*models.RefreshToken{}, nil
}

func (m *MockRefreshTokenStore) CountActiveByUser(ctx context.Context, userID string, now time.Time) (int, error) {
	if m.CountActiveByUserFunc != nil {
		return m.CountActiveByUserFunc(ctx, userID, now)
	}
	return 0, nil
}

func (m *MockRefreshTokenStore) GetOldestActiveByUser(ctx context.Context, userID string, now time.Time) (*models.RefreshToken, error) {
	if m.GetOldestActiveByUserFunc != nil {
		return m.GetOldestActiveByUserFunc(ctx, userID, now)
	}
	return nil, models.ErrNotFound
}

func (m *MockRefreshTokenStore) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredBeforeFunc != nil {
		return m.DeleteExpiredBeforeFunc(ctx, now)
	}
	return 0, nil
}
