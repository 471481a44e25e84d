package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/auth"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/metrics"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	pkgauth "github.com/JonathanArroyaveGonzalez/sapfi-auth/pkg/auth"
	pkglogger "github.com/JonathanArroyaveGonzalez/sapfi-auth/pkg/logger"
)

const passwordResetTTL = time.Hour

// UserStore defines the identity store operations the pipeline needs
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID string, ip *string, now time.Time) error
	SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool, now time.Time) error
	UpdatePasswordHash(ctx context.Context, userID, hash string, now time.Time) error
}

// IPGate is the blacklist check plus the automatic block side effect
type IPGate interface {
	IsBlocked(ctx context.Context, ipAddress string) (bool, error)
	BlockAutomatic(ctx context.Context, ipAddress, reason string) (*models.IPBlock, error)
}

// AttemptLedger records attempts and answers the windowed-count questions
type AttemptLedger interface {
	Record(ctx context.Context, attempt *models.LoginAttempt)
	IsRateLimited(ctx context.Context, ipAddress string) (bool, error)
	ShouldAutoBlock(ctx context.Context, ipAddress string) (bool, error)
}

// AccountLocker manages the per-user failure counter and lockout deadline
type AccountLocker interface {
	Status(ctx context.Context, userID string) (*models.LockStatus, error)
	RegisterFailure(ctx context.Context, userID string) (*models.LockStatus, error)
	Reset(ctx context.Context, userID string) error
}

// ChallengeManager issues and validates two-factor login challenges
type ChallengeManager interface {
	Issue(ctx context.Context, user *models.User) error
	Validate(ctx context.Context, userID, code string) error
	Clear(ctx context.Context, userID string) error
}

// SessionIssuer manages the refresh token set
type SessionIssuer interface {
	Issue(ctx context.Context, userID, ip string) (*models.RefreshToken, error)
	Rotate(ctx context.Context, token, ip string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, token, ip, reason string) error
	RevokeAll(ctx context.Context, userID, ip, reason string) (int64, error)
	ListActive(ctx context.Context, userID string) ([]*models.RefreshToken, error)
}

// Recorder persists durable audit records, best-effort
type Recorder interface {
	Record(ctx context.Context, entry *models.AuditLog)
}

// AuthService is the login orchestrator. It runs every login through the
// gate sequence (IP blacklist, per-IP rate budget, credentials, account
// lock) and only then issues tokens, routing through the two-factor
// challenge when the account requires it.
type AuthService struct {
	users       UserStore
	ipGate      IPGate
	ledger      AttemptLedger
	locker      AccountLocker
	challenges  ChallengeManager
	sessions    SessionIssuer
	recorder    Recorder
	email       EmailSender
	tm          *auth.TokenManager
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	env         string
	now         func() time.Time
}

// AuthServiceDeps bundles the orchestrator's collaborators
type AuthServiceDeps struct {
	Users       UserStore
	IPGate      IPGate
	Ledger      AttemptLedger
	Locker      AccountLocker
	Challenges  ChallengeManager
	Sessions    SessionIssuer
	Recorder    Recorder
	Email       EmailSender
	TokenMgr    *auth.TokenManager
	Timing      *auth.TimingDelay
	Logger      *slog.Logger
	AuditLogger *pkglogger.AuditLogger
	Env         string
}

// NewAuthService creates a new AuthService
func NewAuthService(deps AuthServiceDeps) *AuthService {
	return &AuthService{
		users:       deps.Users,
		ipGate:      deps.IPGate,
		ledger:      deps.Ledger,
		locker:      deps.Locker,
		challenges:  deps.Challenges,
		sessions:    deps.Sessions,
		recorder:    deps.Recorder,
		email:       deps.Email,
		tm:          deps.TokenMgr,
		timing:      deps.Timing,
		logger:      deps.Logger,
		auditLogger: deps.AuditLogger,
		env:         deps.Env,
		now:         time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// LoginRequest carries the credentials plus the request origin
type LoginRequest struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent *string
}

// VerifyTwoFactorRequest completes a pending two-factor login
type VerifyTwoFactorRequest struct {
	PendingToken string
	Code         string
	IPAddress    string
	UserAgent    *string
}

// RefreshRequest redeems a refresh token
type RefreshRequest struct {
	RefreshToken string
	IPAddress    string
	UserAgent    *string
}

// RegisterRequest creates a new account
type RegisterRequest struct {
	Email     string
	Password  string
	Name      string
	IPAddress string
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Roles            []string   `json:"roles"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

// LoginResponse represents the result of login, verify and refresh
type LoginResponse struct {
	AccessToken       string        `json:"access_token"`
	RefreshToken      string        `json:"refresh_token,omitempty"`
	ExpiresIn         int64         `json:"expires_in"`
	RequiresTwoFactor bool          `json:"requires_two_factor"`
	User              *UserResponse `json:"user,omitempty"`
}

func toUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		Roles:            user.Roles,
		TwoFactorEnabled: user.TwoFactorEnabled,
		LastLoginAt:      user.LastLoginAt,
	}
}

func strPtr(s string) *string { return &s }

// Login runs the full gate sequence. Gate order is fixed: the blacklist is
// consulted before the rate budget, and credentials are never verified for
// a blocked or rate-limited request.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	start := s.now()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, models.ErrUnauthorized
	}

	// IpGate
	blocked, err := s.ipGate.IsBlocked(ctx, req.IPAddress)
	if err != nil {
		s.logger.Error("ip gate check failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if blocked {
		s.rejectLogin(ctx, "", email, req, models.FailureIPBlocked,
			models.AuditStatusBlocked, metrics.OutcomeIPBlocked, start)
		return nil, models.ErrIPBlocked
	}

	// RateGate
	limited, err := s.ledger.IsRateLimited(ctx, req.IPAddress)
	if err != nil {
		s.logger.Error("rate gate check failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if limited {
		s.rejectLogin(ctx, "", email, req, models.FailureRateLimited,
			models.AuditStatusBlocked, metrics.OutcomeRateLimited, start)
		return nil, models.ErrRateLimitExceeded
	}

	// CredentialCheck
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.rejectLogin(ctx, "", email, req, models.FailureInvalidCredentials,
				models.AuditStatusFailed, metrics.OutcomeInvalidCredentials, start)
			s.maybeAutoBlock(ctx, req.IPAddress)
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		if _, lerr := s.locker.RegisterFailure(ctx, user.ID); lerr != nil {
			s.logger.Error("failed to register credential failure",
				slog.String("user_id", user.ID), slog.Any("error", lerr))
		}
		s.rejectLogin(ctx, user.ID, email, req, models.FailureInvalidCredentials,
			models.AuditStatusFailed, metrics.OutcomeInvalidCredentials, start)
		s.maybeAutoBlock(ctx, req.IPAddress)
		return nil, models.ErrUnauthorized
	}

	// LockGate: a correct password against a locked account is still refused
	status, err := s.locker.Status(ctx, user.ID)
	if err != nil {
		s.logger.Error("lock gate check failed",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if status.IsLocked {
		s.rejectLogin(ctx, user.ID, email, req, models.FailureAccountLocked,
			models.AuditStatusBlocked, metrics.OutcomeAccountLocked, start)
		return nil, &models.AccountLockedError{LockedUntil: *status.LockedUntil}
	}

	if user.TwoFactorEnabled {
		return s.beginTwoFactor(ctx, user, email, req, start)
	}

	return s.completeLogin(ctx, user, req.IPAddress, req.UserAgent, start)
}

// beginTwoFactor issues the challenge and a pending token that is only good
// for the verification step
func (s *AuthService) beginTwoFactor(ctx context.Context, user *models.User, email string, req LoginRequest, start time.Time) (*LoginResponse, error) {
	if err := s.challenges.Issue(ctx, user); err != nil {
		s.recorder.Record(ctx, &models.AuditLog{
			UserID:       user.ID,
			Action:       models.AuditLogin2FASendFailed,
			IPAddress:    strPtr(req.IPAddress),
			UserAgent:    req.UserAgent,
			Status:       models.AuditStatusFailed,
			ErrorMessage: strPtr(err.Error()),
		})
		if errors.Is(err, models.ErrTwoFactorDelivery) {
			return nil, err
		}
		s.logger.Error("failed to issue two-factor challenge",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	pending, err := s.tm.GenerateAccessToken(user.ID, user.Email, nil, true)
	if err != nil {
		s.logger.Error("failed to generate pending token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.ledger.Record(ctx, &models.LoginAttempt{
		Email:         email,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		WasSuccessful: false,
		FailureReason: strPtr("awaiting two-factor code"),
		FailureKind:   strPtr(models.FailureTwoFactorRequired),
	})
	s.recorder.Record(ctx, &models.AuditLog{
		UserID:    user.ID,
		Action:    models.AuditLoginPending2FA,
		IPAddress: strPtr(req.IPAddress),
		UserAgent: req.UserAgent,
		Status:    models.AuditStatusPending,
	})
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		Action:    models.AuditLoginPending2FA,
		UserID:    user.ID,
		IPAddress: req.IPAddress,
		Success:   true,
	})
	metrics.LoginAttempts.WithLabelValues(metrics.OutcomePending2FA).Inc()

	s.timing.WaitFrom(start, true)
	return &LoginResponse{
		AccessToken:       pending,
		ExpiresIn:         int64(s.tm.AccessTokenTTL().Seconds()),
		RequiresTwoFactor: true,
	}, nil
}

// VerifyTwoFactor completes a pending login. The challenge is consumed on
// success, so resubmitting the same code fails.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, req VerifyTwoFactorRequest) (*LoginResponse, error) {
	start := s.now()

	claims, err := s.tm.ValidateToken(req.PendingToken)
	if err != nil || claims.Type != models.TokenTypeAccess || !claims.TwoFactorPending {
		return nil, models.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for two-factor verification", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.challenges.Validate(ctx, user.ID, req.Code); err != nil {
		if errors.Is(err, models.ErrInvalidTwoFactorCode) {
			// Code failures are recorded but kept out of the account lock
			// counter; the challenge TTL and consume-on-success already bound
			// guessing, and a wrong code should not lock out the password.
			s.ledger.Record(ctx, &models.LoginAttempt{
				Email:         user.Email,
				IPAddress:     req.IPAddress,
				UserAgent:     req.UserAgent,
				WasSuccessful: false,
				FailureReason: strPtr("invalid two-factor code"),
				FailureKind:   strPtr(models.FailureTwoFactorInvalid),
			})
			s.recorder.Record(ctx, &models.AuditLog{
				UserID:    user.ID,
				Action:    models.AuditTwoFactorFailed,
				IPAddress: strPtr(req.IPAddress),
				UserAgent: req.UserAgent,
				Status:    models.AuditStatusFailed,
			})
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				Action:        models.AuditTwoFactorFailed,
				UserID:        user.ID,
				IPAddress:     req.IPAddress,
				Success:       false,
				FailureReason: models.FailureTwoFactorInvalid,
			})
			metrics.LoginAttempts.WithLabelValues(metrics.OutcomeTwoFactorFailed).Inc()
			s.timing.WaitFrom(start, false)
			return nil, models.ErrInvalidTwoFactorCode
		}
		s.logger.Error("two-factor validation failed",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return s.completeLogin(ctx, user, req.IPAddress, req.UserAgent, start)
}

// completeLogin resets failure state, stamps last-login metadata and issues
// the session token pair
func (s *AuthService) completeLogin(ctx context.Context, user *models.User, ip string, userAgent *string, start time.Time) (*LoginResponse, error) {
	now := s.now()

	if err := s.locker.Reset(ctx, user.ID); err != nil {
		s.logger.Error("failed to reset failure counter",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, strPtr(ip), now); err != nil {
		s.logger.Error("failed to update last login",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}

	access, err := s.tm.GenerateAccessToken(user.ID, user.Email, user.Roles, false)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refresh, err := s.sessions.Issue(ctx, user.ID, ip)
	if err != nil {
		s.logger.Error("failed to issue refresh token",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.ledger.Record(ctx, &models.LoginAttempt{
		Email:         user.Email,
		IPAddress:     ip,
		UserAgent:     userAgent,
		WasSuccessful: true,
	})
	s.recorder.Record(ctx, &models.AuditLog{
		UserID:    user.ID,
		Action:    models.AuditLoginSuccess,
		IPAddress: strPtr(ip),
		UserAgent: userAgent,
		Status:    models.AuditStatusSuccess,
	})
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		Action:    models.AuditLoginSuccess,
		UserID:    user.ID,
		IPAddress: ip,
		Success:   true,
	})
	metrics.LoginAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()

	user.LastLoginAt = &now
	s.timing.WaitFrom(start, true)
	return &LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		ExpiresIn:    int64(s.tm.AccessTokenTTL().Seconds()),
		User:         toUserResponse(user),
	}, nil
}

// rejectLogin records a gate rejection in the ledger, the durable audit
// trail, the process log and metrics, then applies the timing delay
func (s *AuthService) rejectLogin(ctx context.Context, userID, email string, req LoginRequest, failureKind, auditStatus, outcome string, start time.Time) {
	s.ledger.Record(ctx, &models.LoginAttempt{
		Email:         email,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		WasSuccessful: false,
		FailureReason: strPtr(failureKind),
		FailureKind:   strPtr(failureKind),
	})
	s.recorder.Record(ctx, &models.AuditLog{
		UserID:    userID,
		Action:    models.AuditLoginFailed,
		IPAddress: strPtr(req.IPAddress),
		UserAgent: req.UserAgent,
		Details:   strPtr(failureKind),
		Status:    auditStatus,
	})
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		Action:        models.AuditLoginFailed,
		UserID:        userID,
		IPAddress:     req.IPAddress,
		Success:       false,
		FailureReason: failureKind,
	})
	metrics.LoginAttempts.WithLabelValues(outcome).Inc()
	s.timing.WaitFrom(start, false)
}

// maybeAutoBlock applies a temporary blacklist entry when the IP's recent
// failures cross the threshold. Best-effort: a failure here never changes
// the login outcome.
func (s *AuthService) maybeAutoBlock(ctx context.Context, ipAddress string) {
	should, err := s.ledger.ShouldAutoBlock(ctx, ipAddress)
	if err != nil {
		s.logger.Error("auto-block check failed",
			slog.String("ip_address", ipAddress), slog.Any("error", err))
		return
	}
	if !should {
		return
	}

	block, err := s.ipGate.BlockAutomatic(ctx, ipAddress, "Too many failed login attempts")
	if err != nil {
		s.logger.Error("failed to apply automatic block",
			slog.String("ip_address", ipAddress), slog.Any("error", err))
		return
	}

	s.recorder.Record(ctx, &models.AuditLog{
		Action:       models.AuditIPBlocked,
		IPAddress:    strPtr(ipAddress),
		Details:      strPtr(block.Reason),
		Status:       models.AuditStatusSuccess,
		ResourceID:   strPtr(block.ID),
		ResourceType: strPtr("ip_block"),
	})
	s.auditLogger.LogSecurityAction(models.AuditIPBlocked, "system", ipAddress, map[string]string{
		"block_kind": block.BlockKind,
	})
	metrics.IPBlocksApplied.WithLabelValues(block.BlockKind).Inc()
}

// Refresh redeems a refresh token for a new session pair. All invalid
// presentations collapse to the same error.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*LoginResponse, error) {
	blocked, err := s.ipGate.IsBlocked(ctx, req.IPAddress)
	if err != nil {
		s.logger.Error("ip gate check failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if blocked {
		s.recorder.Record(ctx, &models.AuditLog{
			Action:    models.AuditRefreshBlockedIP,
			IPAddress: strPtr(req.IPAddress),
			UserAgent: req.UserAgent,
			Status:    models.AuditStatusBlocked,
		})
		metrics.RefreshAttempts.WithLabelValues(metrics.OutcomeIPBlocked).Inc()
		return nil, models.ErrIPBlocked
	}

	fresh, err := s.sessions.Rotate(ctx, req.RefreshToken, req.IPAddress)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRefreshToken) {
			s.recorder.Record(ctx, &models.AuditLog{
				Action:    models.AuditRefreshInvalid,
				IPAddress: strPtr(req.IPAddress),
				UserAgent: req.UserAgent,
				Status:    models.AuditStatusFailed,
			})
			metrics.RefreshAttempts.WithLabelValues(metrics.OutcomeInvalidCredentials).Inc()
			return nil, models.ErrInvalidRefreshToken
		}
		s.logger.Error("refresh token rotation failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.users.GetByID(ctx, fresh.UserID)
	if err != nil {
		s.logger.Error("failed to get user for refresh",
			slog.String("user_id", fresh.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	access, err := s.tm.GenerateAccessToken(user.ID, user.Email, user.Roles, false)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.recorder.Record(ctx, &models.AuditLog{
		UserID:    user.ID,
		Action:    models.AuditRefreshSuccess,
		IPAddress: strPtr(req.IPAddress),
		UserAgent: req.UserAgent,
		Status:    models.AuditStatusSuccess,
	})
	metrics.RefreshAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()

	return &LoginResponse{
		AccessToken:  access,
		RefreshToken: fresh.Token,
		ExpiresIn:    int64(s.tm.AccessTokenTTL().Seconds()),
		User:         toUserResponse(user),
	}, nil
}

// Logout revokes every active session for the user
func (s *AuthService) Logout(ctx context.Context, userID, ip string) error {
	count, err := s.sessions.RevokeAll(ctx, userID, ip, "Logout")
	if err != nil {
		s.logger.Error("logout revocation failed",
			slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.recorder.Record(ctx, &models.AuditLog{
		UserID:    userID,
		Action:    models.AuditLogout,
		IPAddress: strPtr(ip),
		Details:   strPtr(fmt.Sprintf("revoked %d tokens", count)),
		Status:    models.AuditStatusSuccess,
	})
	return nil
}

// RevokeToken invalidates a single refresh token
func (s *AuthService) RevokeToken(ctx context.Context, userID, token, ip string) error {
	if err := s.sessions.Revoke(ctx, token, ip, "Revoked by user"); err != nil {
		return err
	}

	s.recorder.Record(ctx, &models.AuditLog{
		UserID:    userID,
		Action:    models.AuditTokenRevoked,
		IPAddress: strPtr(ip),
		Status:    models.AuditStatusSuccess,
	})
	return nil
}

// ListSessions returns the user's active refresh tokens
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	return s.sessions.ListActive(ctx, userID)
}

// Register creates a new account
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Roles:        []string{"user"},
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.recorder.Record(ctx, &models.AuditLog{
		UserID:    user.ID,
		Action:    models.AuditRegister,
		IPAddress: strPtr(req.IPAddress),
		Status:    models.AuditStatusSuccess,
	})
	s.logger.Info("user registered", slog.String("user_id", user.ID))

	return toUserResponse(user), nil
}

// ForgotPassword starts the reset flow. The response is identical whether or
// not the email exists.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		s.logger.Error("failed to get user for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, err := s.tm.GeneratePasswordResetToken(user.ID, user.Email, passwordResetTTL)
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.email.SendPasswordReset(ctx, user.Email, token, passwordResetTTL); err != nil {
		s.logger.Error("failed to send reset email",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	return nil
}

// ResetPassword completes the reset flow. Every existing session is revoked
// so a stolen refresh token dies with the old password.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword, ip string) error {
	claims, err := s.tm.ValidateToken(token)
	if err != nil || claims.Type != models.TokenTypePasswordReset {
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.UpdatePasswordHash(ctx, claims.Subject, hash, s.now()); err != nil {
		s.logger.Error("failed to update password",
			slog.String("user_id", claims.Subject), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.sessions.RevokeAll(ctx, claims.Subject, ip, "Password reset"); err != nil {
		s.logger.Error("failed to revoke sessions after password reset",
			slog.String("user_id", claims.Subject), slog.Any("error", err))
	}
	if err := s.locker.Reset(ctx, claims.Subject); err != nil {
		s.logger.Error("failed to reset failure counter after password reset",
			slog.String("user_id", claims.Subject), slog.Any("error", err))
	}

	s.recorder.Record(ctx, &models.AuditLog{
		UserID:    claims.Subject,
		Action:    models.AuditPasswordReset,
		IPAddress: strPtr(ip),
		Status:    models.AuditStatusSuccess,
	})
	return nil
}

// SetTwoFactor enables or disables the two-factor requirement. Disabling
// drops any outstanding challenge.
func (s *AuthService) SetTwoFactor(ctx context.Context, userID string, enabled bool, ip string) error {
	if err := s.users.SetTwoFactorEnabled(ctx, userID, enabled, s.now()); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to update two-factor flag",
			slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	action := models.AuditTwoFactorEnabled
	if !enabled {
		action = models.AuditTwoFactorDisabled
		if err := s.challenges.Clear(ctx, userID); err != nil {
			s.logger.Error("failed to clear two-factor challenge",
				slog.String("user_id", userID), slog.Any("error", err))
		}
	}

	s.recorder.Record(ctx, &models.AuditLog{
		UserID:    userID,
		Action:    action,
		IPAddress: strPtr(ip),
		Status:    models.AuditStatusSuccess,
	})
	return nil
}
