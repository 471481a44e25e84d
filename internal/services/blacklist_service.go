package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/config"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
)

// Expired blocks stay queryable this long before reclamation deletes them.
const blockRetentionGrace = 30 * 24 * time.Hour

// BlockStore defines the persistence interface for the IP blacklist
type BlockStore interface {
	HasActiveBlock(ctx context.Context, ipAddress string, now time.Time) (bool, error)
	GetActiveBlock(ctx context.Context, ipAddress string, now time.Time) (*models.IPBlock, error)
	UpdateBlock(ctx context.Context, block *models.IPBlock) error
	InsertBlock(ctx context.Context, block *models.IPBlock) (*models.IPBlock, error)
	ExpireAll(ctx context.Context, ipAddress string, expiresAt time.Time, note string) (int64, error)
	List(ctx context.Context, activeOnly bool, now time.Time) ([]*models.IPBlock, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BlockRequest describes a block to apply to an IP
type BlockRequest struct {
	IPAddress string
	Reason    string
	BlockKind string
	Duration  *time.Duration // nil = permanent until lifted
	BlockedBy *string
	Notes     *string
}

// BlacklistService manages the IP blacklist: the IpGate check, manual and
// automatic blocks, unblocking and reclamation.
type BlacklistService struct {
	store  BlockStore
	cfg    config.SecurityConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewBlacklistService creates a new BlacklistService
func NewBlacklistService(store BlockStore, cfg config.SecurityConfig, logger *slog.Logger) *BlacklistService {
	return &BlacklistService{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *BlacklistService) SetClock(now func() time.Time) {
	s.now = now
}

// IsBlocked reports whether the IP currently has an active block
func (s *BlacklistService) IsBlocked(ctx context.Context, ipAddress string) (bool, error) {
	return s.store.HasActiveBlock(ctx, ipAddress, s.now())
}

// GetBlockInfo returns the active block for the IP, or ErrNotFound
func (s *BlacklistService) GetBlockInfo(ctx context.Context, ipAddress string) (*models.IPBlock, error) {
	return s.store.GetActiveBlock(ctx, ipAddress, s.now())
}

// Block applies a block to the IP. If an active block already exists it is
// rewritten in place rather than stacked, so an IP holds at most one live
// block at a time.
func (s *BlacklistService) Block(ctx context.Context, req BlockRequest) (*models.IPBlock, error) {
	if req.IPAddress == "" {
		return nil, fmt.Errorf("%w: ip address is required", models.ErrBadRequest)
	}
	if req.BlockKind == "" {
		req.BlockKind = models.BlockKindManual
	}

	now := s.now()
	var expiresAt *time.Time
	if req.Duration != nil {
		t := now.Add(*req.Duration)
		expiresAt = &t
	}

	existing, err := s.store.GetActiveBlock(ctx, req.IPAddress, now)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		existing.Reason = req.Reason
		existing.BlockKind = req.BlockKind
		existing.BlockedAt = now
		existing.ExpiresAt = expiresAt
		if req.Notes != nil {
			existing.Notes = req.Notes
		}
		if err := s.store.UpdateBlock(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info("ip block renewed",
			slog.String("ip_address", req.IPAddress),
			slog.String("block_kind", req.BlockKind))
		return existing, nil
	}

	block, err := s.store.InsertBlock(ctx, &models.IPBlock{
		IPAddress: req.IPAddress,
		Reason:    req.Reason,
		BlockKind: req.BlockKind,
		BlockedAt: now,
		ExpiresAt: expiresAt,
		BlockedBy: req.BlockedBy,
		Notes:     req.Notes,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ip blocked",
		slog.String("ip_address", req.IPAddress),
		slog.String("block_kind", req.BlockKind))
	return block, nil
}

// BlockAutomatic applies the configured temporary block in response to
// repeated failures from the IP
func (s *BlacklistService) BlockAutomatic(ctx context.Context, ipAddress, reason string) (*models.IPBlock, error) {
	duration := s.cfg.AutoBlockDuration
	return s.Block(ctx, BlockRequest{
		IPAddress: ipAddress,
		Reason:    reason,
		BlockKind: models.BlockKindTooManyAttempts,
		Duration:  &duration,
	})
}

// Unblock lifts every block on the IP by backdating expiry to just before
// now and appending the note. Returns false when the IP has no block rows at
// all; lifting an already-expired block still reports true.
func (s *BlacklistService) Unblock(ctx context.Context, ipAddress, note string) (bool, error) {
	expiresAt := s.now().Add(-time.Second)
	rows, err := s.store.ExpireAll(ctx, ipAddress, expiresAt, note)
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	s.logger.Info("ip unblocked", slog.String("ip_address", ipAddress))
	return true, nil
}

// List returns block entries, optionally restricted to active ones
func (s *BlacklistService) List(ctx context.Context, activeOnly bool) ([]*models.IPBlock, error) {
	return s.store.List(ctx, activeOnly, s.now())
}

// ReclaimExpired deletes blocks whose expiry passed more than the grace
// period ago. Recently expired blocks are kept for forensics.
func (s *BlacklistService) ReclaimExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-blockRetentionGrace)
	return s.store.DeleteExpiredBefore(ctx, cutoff)
}
