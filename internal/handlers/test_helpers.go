package handlers

import (
	"context"
	"io"
	"log/slog"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/services"
	pkglogger "github.com/JonathanArroyaveGonzalez/sapfi-auth/pkg/logger"
)

func discardAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc           func(ctx context.Context, req services.LoginRequest) (*services.LoginResponse, error)
	VerifyTwoFactorFunc func(ctx context.Context, req services.VerifyTwoFactorRequest) (*services.LoginResponse, error)
	RefreshFunc         func(ctx context.Context, req services.RefreshRequest) (*services.LoginResponse, error)
	LogoutFunc          func(ctx context.Context, userID, ip string) error
	RevokeTokenFunc     func(ctx context.Context, userID, token, ip string) error
	ListSessionsFunc    func(ctx context.Context, userID string) ([]*models.RefreshToken, error)
	RegisterFunc        func(ctx context.Context, req services.RegisterRequest) (*services.UserResponse, error)
	ForgotPasswordFunc  func(ctx context.Context, email string) error
	ResetPasswordFunc   func(ctx context.Context, token, newPassword, ip string) error
	SetTwoFactorFunc    func(ctx context.Context, userID string, enabled bool, ip string) error
}

func (m *MockAuthService) Login(ctx context.Context, req services.LoginRequest) (*services.LoginResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, req)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) VerifyTwoFactor(ctx context.Context, req services.VerifyTwoFactorRequest) (*services.LoginResponse, error) {
	if m.VerifyTwoFactorFunc != nil {
		return m.VerifyTwoFactorFunc(ctx, req)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) Refresh(ctx context.Context, req services.RefreshRequest) (*services.LoginResponse, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, req)
	}
	return nil, models.ErrInvalidRefreshToken
}

func (m *MockAuthService) Logout(ctx context.Context, userID, ip string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, userID, ip)
	}
	return nil
}

func (m *MockAuthService) RevokeToken(ctx context.Context, userID, token, ip string) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, userID, token, ip)
	}
	return nil
}

func (m *MockAuthService) ListSessions(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx, userID)
	}
	return []*models.RefreshToken{}, nil
}

func (m *MockAuthService) Register(ctx context.Context, req services.RegisterRequest) (*services.UserResponse, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, req)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	if m.ForgotPasswordFunc != nil {
		return m.ForgotPasswordFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword, ip string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, token, newPassword, ip)
	}
	return nil
}

func (m *MockAuthService) SetTwoFactor(ctx context.Context, userID string, enabled bool, ip string) error {
	if m.SetTwoFactorFunc != nil {
		return m.SetTwoFactorFunc(ctx, userID, enabled, ip)
	}
	return nil
}

// MockBlacklistManager implements BlacklistManager for testing
type MockBlacklistManager struct {
	BlockFunc        func(ctx context.Context, req services.BlockRequest) (*models.IPBlock, error)
	UnblockFunc      func(ctx context.Context, ipAddress, note string) (bool, error)
	ListFunc         func(ctx context.Context, activeOnly bool) ([]*models.IPBlock, error)
	GetBlockInfoFunc func(ctx context.Context, ipAddress string) (*models.IPBlock, error)
}

func (m *MockBlacklistManager) Block(ctx context.Context, req services.BlockRequest) (*models.IPBlock, error) {
	if m.BlockFunc != nil {
		return m.BlockFunc(ctx, req)
	}
	return &models.IPBlock{ID: "block-1", IPAddress: req.IPAddress, Reason: req.Reason, BlockKind: req.BlockKind}, nil
}

func (m *MockBlacklistManager) Unblock(ctx context.Context, ipAddress, note string) (bool, error) {
	if m.UnblockFunc != nil {
		return m.UnblockFunc(ctx, ipAddress, note)
	}
	return true, nil
}

func (m *MockBlacklistManager) List(ctx context.Context, activeOnly bool) ([]*models.IPBlock, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, activeOnly)
	}
	return []*models.IPBlock{}, nil
}

func (m *MockBlacklistManager) GetBlockInfo(ctx context.Context, ipAddress string) (*models.IPBlock, error) {
	if m.GetBlockInfoFunc != nil {
		return m.GetBlockInfoFunc(ctx, ipAddress)
	}
	return nil, models.ErrNotFound
}

// MockLockoutManager implements LockoutManager for testing
type MockLockoutManager struct {
	StatusFunc func(ctx context.Context, userID string) (*models.LockStatus, error)
	UnlockFunc func(ctx context.Context, userID string) error

	UnlockCalls int
}

func (m *MockLockoutManager) Status(ctx context.Context, userID string) (*models.LockStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, userID)
	}
	return &models.LockStatus{}, nil
}

func (m *MockLockoutManager) Unlock(ctx context.Context, userID string) error {
	m.UnlockCalls++
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, userID)
	}
	return nil
}

// MockAttemptViewer implements AttemptViewer for testing
type MockAttemptViewer struct {
	ListRecentFunc          func(ctx context.Context, limit int) ([]*models.LoginAttempt, error)
	HasRepeatedFailuresFunc func(ctx context.Context, email string) (bool, error)
}

func (m *MockAttemptViewer) ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, limit)
	}
	return []*models.LoginAttempt{}, nil
}

func (m *MockAttemptViewer) HasRepeatedFailures(ctx context.Context, email string) (bool, error) {
	if m.HasRepeatedFailuresFunc != nil {
		return m.HasRepeatedFailuresFunc(ctx, email)
	}
	return false, nil
}

// MockAuditViewer implements AuditViewer for testing
type MockAuditViewer struct {
	ListRecentFunc func(ctx context.Context, limit int) ([]*models.AuditLog, error)
	ListByUserFunc func(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error)
}

func (m *MockAuditViewer) ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, limit)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditViewer) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit)
	}
	return []*models.AuditLog{}, nil
}

// MockRecorder implements services.Recorder for testing
type MockRecorder struct {
	Entries []*models.AuditLog
}

func (m *MockRecorder) Record(ctx context.Context, entry *models.AuditLog) {
	m.Entries = append(m.Entries, entry)
}
