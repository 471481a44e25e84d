package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/redis/go-redis/v9"
)

// TwoFactorService issues and validates short-lived login challenge codes.
// Codes live in Redis under a per-user key with the configured TTL; issuing
// a new code replaces any outstanding one, so each user has at most one
// pending challenge. Only a digest of the code is stored.
type TwoFactorService struct {
	client *redis.Client
	email  EmailSender
	ttl    time.Duration
	env    string
	logger *slog.Logger
}

// NewTwoFactorService creates a new TwoFactorService
func NewTwoFactorService(client *redis.Client, email EmailSender, ttl time.Duration, env string, logger *slog.Logger) *TwoFactorService {
	return &TwoFactorService{
		client: client,
		email:  email,
		ttl:    ttl,
		env:    env,
		logger: logger,
	}
}

func challengeKey(userID string) string {
	return "2fa:challenge:" + userID
}

// generateCode returns a 6-digit numeric code from a CSPRNG
func generateCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate two-factor code: %w", err)
	}
	n := binary.BigEndian.Uint64(buf) % 1000000
	return fmt.Sprintf("%06d", n), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Issue generates a fresh challenge for the user, stores its digest and
// delivers the code by email. In production a delivery failure invalidates
// the challenge and fails the login step; in development the code is logged
// instead so the flow works without an email provider.
func (s *TwoFactorService) Issue(ctx context.Context, user *models.User) error {
	code, err := generateCode()
	if err != nil {
		return err
	}

	key := challengeKey(user.ID)
	if err := s.client.Set(ctx, key, hashCode(code), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store two-factor challenge: %w", err)
	}

	if err := s.email.SendTwoFactorCode(ctx, user.Email, code, s.ttl); err != nil {
		if s.env == "production" {
			s.client.Del(ctx, key)
			s.logger.Error("two-factor code delivery failed",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
			return models.ErrTwoFactorDelivery
		}
		s.logger.Warn("two-factor code delivery failed, code logged for development",
			slog.String("user_id", user.ID),
			slog.String("code", code),
			slog.Any("error", err))
	}

	return nil
}

// Validate checks the submitted code against the outstanding challenge. The
// digest comparison is constant-time; a match consumes the challenge so a
// code can be redeemed exactly once.
func (s *TwoFactorService) Validate(ctx context.Context, userID, code string) error {
	key := challengeKey(userID)

	stored, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.ErrInvalidTwoFactorCode
		}
		return fmt.Errorf("failed to load two-factor challenge: %w", err)
	}

	submitted := hashCode(code)
	if subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) != 1 {
		return models.ErrInvalidTwoFactorCode
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Error("failed to consume two-factor challenge",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
	return nil
}

// Clear drops any outstanding challenge for the user
func (s *TwoFactorService) Clear(ctx context.Context, userID string) error {
	return s.client.Del(ctx, challengeKey(userID)).Err()
}
