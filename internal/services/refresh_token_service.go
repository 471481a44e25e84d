package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/auth"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/config"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
)

const (
	revokeReasonRotated  = "Rotated"
	revokeReasonCapacity = "Exceeded maximum active tokens"
)

// RefreshTokenStore defines the persistence interface for refresh tokens
type RefreshTokenStore interface {
	Insert(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error)
	GetByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeIfActive(ctx context.Context, token, ip, reason string, now time.Time) (*models.RefreshToken, error)
	SetReplacedBy(ctx context.Context, oldToken, newToken string) error
	RevokeAllForUser(ctx context.Context, userID, ip, reason string, now time.Time) (int64, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error)
	CountActiveByUser(ctx context.Context, userID string, now time.Time) (int, error)
	GetOldestActiveByUser(ctx context.Context, userID string, now time.Time) (*models.RefreshToken, error)
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}

// RefreshTokenService manages the per-user refresh token set: issuance under
// the active-token cap, single-use rotation, revocation and reclamation.
type RefreshTokenService struct {
	store  RefreshTokenStore
	tm     *auth.TokenManager
	cfg    config.SecurityConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRefreshTokenService creates a new RefreshTokenService
func NewRefreshTokenService(store RefreshTokenStore, tm *auth.TokenManager, cfg config.SecurityConfig, logger *slog.Logger) *RefreshTokenService {
	return &RefreshTokenService{
		store:  store,
		tm:     tm,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *RefreshTokenService) SetClock(now func() time.Time) {
	s.now = now
}

// Issue mints a new refresh token for the user. When the user is at the
// active-token cap the oldest active token is revoked first, so the set
// never exceeds the configured maximum.
func (s *RefreshTokenService) Issue(ctx context.Context, userID, ip string) (*models.RefreshToken, error) {
	now := s.now()

	count, err := s.store.CountActiveByUser(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	if count >= s.cfg.MaxActiveTokensPerUser {
		oldest, err := s.store.GetOldestActiveByUser(ctx, userID, now)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		if oldest != nil {
			// A concurrent revocation of the same token is fine; the
			// guard just reports no rows.
			if _, err := s.store.RevokeIfActive(ctx, oldest.Token, ip, revokeReasonCapacity, now); err != nil && !errors.Is(err, models.ErrNotFound) {
				return nil, err
			}
			s.logger.Info("evicted oldest refresh token at capacity",
				slog.String("user_id", userID))
		}
	}

	value, err := s.tm.GenerateRefreshValue()
	if err != nil {
		return nil, err
	}

	return s.store.Insert(ctx, &models.RefreshToken{
		Token:       value,
		UserID:      userID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.RefreshTokenExpiry),
		CreatedByIP: ip,
	})
}

// Validate resolves the opaque value to an active token. Unknown, revoked
// and expired values all collapse to the same error so callers cannot
// distinguish them.
func (s *RefreshTokenService) Validate(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, err := s.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidRefreshToken
		}
		return nil, err
	}

	if !stored.IsActive(s.now()) {
		return nil, models.ErrInvalidRefreshToken
	}
	return stored, nil
}

// Rotate redeems the token for a fresh one. The revocation is the guard:
// whichever concurrent caller revokes the row first proceeds, every other
// presentation of the same value fails. The replacement link is recorded
// for forensics once the new token exists.
func (s *RefreshTokenService) Rotate(ctx context.Context, token, ip string) (*models.RefreshToken, error) {
	now := s.now()

	old, err := s.store.RevokeIfActive(ctx, token, ip, revokeReasonRotated, now)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidRefreshToken
		}
		return nil, err
	}

	if old.IsExpired(now) {
		return nil, models.ErrInvalidRefreshToken
	}

	fresh, err := s.Issue(ctx, old.UserID, ip)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetReplacedBy(ctx, old.Token, fresh.Token); err != nil {
		s.logger.Error("failed to record rotation linkage",
			slog.String("user_id", old.UserID),
			slog.Any("error", err))
	}

	return fresh, nil
}

// Revoke invalidates a single token
func (s *RefreshTokenService) Revoke(ctx context.Context, token, ip, reason string) error {
	_, err := s.store.RevokeIfActive(ctx, token, ip, reason, s.now())
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrInvalidRefreshToken
	}
	return err
}

// RevokeAll invalidates every active token for the user, returning the count
func (s *RefreshTokenService) RevokeAll(ctx context.Context, userID, ip, reason string) (int64, error) {
	return s.store.RevokeAllForUser(ctx, userID, ip, reason, s.now())
}

// ListActive returns the user's active tokens, newest first
func (s *RefreshTokenService) ListActive(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	return s.store.ListActiveByUser(ctx, userID, s.now())
}

// ReclaimExpired deletes tokens past their expiry, returning the count.
// Expired rows carry no authority, so no grace period applies.
func (s *RefreshTokenService) ReclaimExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredBefore(ctx, s.now())
}
