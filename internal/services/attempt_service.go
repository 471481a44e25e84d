package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/config"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
)

// AttemptRepository defines the persistence interface for the attempt ledger
type AttemptRepository interface {
	Insert(ctx context.Context, attempt *models.LoginAttempt) error
	CountByIPSince(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error)
	CountFailedByIPSince(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountFailedByEmailSince(ctx context.Context, email string, since time.Time) (int, error)
	ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AttemptService owns the append-only login attempt ledger and the windowed
// counts derived from it. Recording is best-effort: a ledger write failure is
// logged but never turns into a login failure.
type AttemptService struct {
	repo   AttemptRepository
	cfg    config.SecurityConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewAttemptService creates a new AttemptService
func NewAttemptService(repo AttemptRepository, cfg config.SecurityConfig, logger *slog.Logger) *AttemptService {
	return &AttemptService{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *AttemptService) SetClock(now func() time.Time) {
	s.now = now
}

// Record appends an attempt to the ledger. Never returns an error.
func (s *AttemptService) Record(ctx context.Context, attempt *models.LoginAttempt) {
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = s.now().UTC()
	}

	if err := s.repo.Insert(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("ip_address", attempt.IPAddress),
			slog.Any("error", err))
	}
}

// IsRateLimited reports whether the IP has exceeded the per-IP attempt budget.
// All attempts count, successes included: a burst of valid logins from one
// address is as suspicious as a burst of failures.
func (s *AttemptService) IsRateLimited(ctx context.Context, ipAddress string) (bool, error) {
	since := s.now().Add(-s.cfg.RateLimitWindow)
	count, err := s.repo.CountByIPSince(ctx, ipAddress, since)
	if err != nil {
		return false, err
	}
	return count >= s.cfg.RateLimitMaxPerIP, nil
}

// ShouldAutoBlock reports whether the IP's recent failures warrant a
// temporary blacklist entry.
func (s *AttemptService) ShouldAutoBlock(ctx context.Context, ipAddress string) (bool, error) {
	since := s.now().Add(-s.cfg.AutoBlockWindow)
	count, err := s.repo.CountFailedByIPSince(ctx, ipAddress, since)
	if err != nil {
		return false, err
	}
	return count >= s.cfg.AutoBlockThreshold, nil
}

// HasRepeatedFailures is the ledger-derived lockout signal for an account.
// Advisory only: the authoritative lock state lives on the user row.
func (s *AttemptService) HasRepeatedFailures(ctx context.Context, email string) (bool, error) {
	since := s.now().Add(-s.cfg.AccountLockWindow)
	count, err := s.repo.CountFailedByEmailSince(ctx, email, since)
	if err != nil {
		return false, err
	}
	return count >= s.cfg.AccountLockThreshold, nil
}

// ListRecent returns the most recent ledger entries, newest first
func (s *AttemptService) ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListRecent(ctx, limit)
}

// Reclaim deletes ledger entries older than the retention horizon and
// returns the number removed
func (s *AttemptService) Reclaim(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.cfg.AttemptRetentionDays)
	return s.repo.DeleteOlderThan(ctx, cutoff)
}
