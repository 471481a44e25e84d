package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/config"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
)

// LockStore defines the per-user lockout fields of the identity store
type LockStore interface {
	IncrementFailedAttempts(ctx context.Context, userID string, failedAt time.Time) (int, error)
	ResetFailedAttempts(ctx context.Context, userID string, now time.Time) error
	SetLockout(ctx context.Context, userID string, until *time.Time, now time.Time) error
	GetLockState(ctx context.Context, userID string) (int, *time.Time, error)
}

// LockoutService manages the per-user failed-attempt counter and the lockout
// deadline derived from it. The counter on the user row is the authoritative
// signal; the ledger-derived count is advisory.
type LockoutService struct {
	store  LockStore
	cfg    config.SecurityConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(store LockStore, cfg config.SecurityConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *LockoutService) SetClock(now func() time.Time) {
	s.now = now
}

// Status returns the account's current lock state. A deadline in the past
// means the lock has lapsed; the counter is only cleared by a successful
// login or an explicit unlock.
func (s *LockoutService) Status(ctx context.Context, userID string) (*models.LockStatus, error) {
	failed, until, err := s.store.GetLockState(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.LockStatus{
		IsLocked:       until != nil && s.now().Before(*until),
		LockedUntil:    until,
		FailedAttempts: failed,
	}, nil
}

// RegisterFailure bumps the counter and applies the lockout when the
// threshold is reached. Returns the post-increment state.
func (s *LockoutService) RegisterFailure(ctx context.Context, userID string) (*models.LockStatus, error) {
	now := s.now()
	count, err := s.store.IncrementFailedAttempts(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	status := &models.LockStatus{FailedAttempts: count}
	if count >= s.cfg.MaxFailedAttempts {
		until := now.Add(s.cfg.LockoutDuration)
		if err := s.store.SetLockout(ctx, userID, &until, now); err != nil {
			return nil, err
		}
		status.IsLocked = true
		status.LockedUntil = &until

		s.logger.Warn("account locked after repeated failures",
			slog.String("user_id", userID),
			slog.Int("failed_attempts", count),
			slog.Time("locked_until", until))
	}

	return status, nil
}

// Reset clears the counter and any lockout deadline, as after a successful
// login
func (s *LockoutService) Reset(ctx context.Context, userID string) error {
	now := s.now()
	if err := s.store.ResetFailedAttempts(ctx, userID, now); err != nil {
		return err
	}
	return s.store.SetLockout(ctx, userID, nil, now)
}

// Unlock is the administrative reset. Identical effect to Reset, logged as
// an explicit action.
func (s *LockoutService) Unlock(ctx context.Context, userID string) error {
	if err := s.Reset(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("account unlocked", slog.String("user_id", userID))
	return nil
}
