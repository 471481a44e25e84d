package services

import (
	"context"
	"log/slog"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
)

// AuditStore defines the persistence interface for durable audit records
type AuditStore interface {
	Insert(ctx context.Context, log *models.AuditLog) error
	ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error)
}

// AuditService persists security audit records. Recording is best-effort:
// a failed write is logged and swallowed so the audit trail never blocks
// the operation it describes.
type AuditService struct {
	store  AuditStore
	logger *slog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(store AuditStore, logger *slog.Logger) *AuditService {
	return &AuditService{
		store:  store,
		logger: logger,
	}
}

// Record persists an audit entry. Never returns an error.
func (s *AuditService) Record(ctx context.Context, entry *models.AuditLog) {
	if err := s.store.Insert(ctx, entry); err != nil {
		s.logger.Error("failed to persist audit record",
			slog.String("action", entry.Action),
			slog.Any("error", err))
	}
}

// ListRecent returns the most recent audit entries, newest first
func (s *AuditService) ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListRecent(ctx, limit)
}

// ListByUser returns the most recent audit entries for a user, newest first
func (s *AuditService) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListByUser(ctx, userID, limit)
}
