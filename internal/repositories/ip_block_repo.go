package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/database"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/jackc/pgx/v5"
)

// IPBlockRepository handles persistence for the IP blacklist.
type IPBlockRepository struct {
	db *database.DB
}

// NewIPBlockRepository creates a new IPBlockRepository
func NewIPBlockRepository(db *database.DB) *IPBlockRepository {
	return &IPBlockRepository{db: db}
}

const ipBlockColumns = `id, ip_address, reason, block_kind, blocked_at, expires_at, blocked_by, notes`

func scanIPBlockRow(row pgx.Row) (*models.IPBlock, error) {
	var b models.IPBlock
	err := row.Scan(
		&b.ID, &b.IPAddress, &b.Reason, &b.BlockKind,
		&b.BlockedAt, &b.ExpiresAt, &b.BlockedBy, &b.Notes,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &b, nil
}

// HasActiveBlock reports whether an active block exists for the IP at the given instant
func (r *IPBlockRepository) HasActiveBlock(ctx context.Context, ipAddress string, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM ip_blocks
			WHERE ip_address = $1 AND (expires_at IS NULL OR expires_at > $2)
		)
	`

	var exists bool
	err := r.db.Pool.QueryRow(ctx, query, ipAddress, now).Scan(&exists)
	return exists, database.MapPostgresError(err)
}

// GetActiveBlock returns the most recent active block for the IP, if any
func (r *IPBlockRepository) GetActiveBlock(ctx context.Context, ipAddress string, now time.Time) (*models.IPBlock, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM ip_blocks
		WHERE ip_address = $1 AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY blocked_at DESC
		LIMIT 1
	`, ipBlockColumns)

	return scanIPBlockRow(r.db.Pool.QueryRow(ctx, query, ipAddress, now))
}

// UpdateBlock rewrites an existing block row in place
func (r *IPBlockRepository) UpdateBlock(ctx context.Context, block *models.IPBlock) error {
	query := `
		UPDATE ip_blocks
		SET reason = $2, block_kind = $3, blocked_at = $4, expires_at = $5, notes = $6
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		block.ID, block.Reason, block.BlockKind, block.BlockedAt, block.ExpiresAt, block.Notes,
	)
	return database.MapPostgresError(err)
}

// InsertBlock creates a new block row and returns it with its generated ID
func (r *IPBlockRepository) InsertBlock(ctx context.Context, block *models.IPBlock) (*models.IPBlock, error) {
	query := fmt.Sprintf(`
		INSERT INTO ip_blocks (ip_address, reason, block_kind, blocked_at, expires_at, blocked_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s
	`, ipBlockColumns)

	return scanIPBlockRow(r.db.Pool.QueryRow(ctx, query,
		block.IPAddress, block.Reason, block.BlockKind, block.BlockedAt,
		block.ExpiresAt, block.BlockedBy, block.Notes,
	))
}

// ExpireAll sets the expiry of every block row for the IP to the given
// instant, appending the note. Returns the number of rows touched; zero
// means the IP was never blocked.
func (r *IPBlockRepository) ExpireAll(ctx context.Context, ipAddress string, expiresAt time.Time, note string) (int64, error) {
	query := `
		UPDATE ip_blocks
		SET expires_at = $2,
		    notes = COALESCE(notes || E'\n', '') || $3
		WHERE ip_address = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, ipAddress, expiresAt, note)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// List returns blocks newest-first, optionally restricted to active ones
func (r *IPBlockRepository) List(ctx context.Context, activeOnly bool, now time.Time) ([]*models.IPBlock, error) {
	query := fmt.Sprintf(`SELECT %s FROM ip_blocks ORDER BY blocked_at DESC`, ipBlockColumns)
	args := []interface{}{}
	if activeOnly {
		query = fmt.Sprintf(`
			SELECT %s FROM ip_blocks
			WHERE expires_at IS NULL OR expires_at > $1
			ORDER BY blocked_at DESC
		`, ipBlockColumns)
		args = append(args, now)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	blocks := make([]*models.IPBlock, 0)
	for rows.Next() {
		block, err := scanIPBlockRow(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return blocks, nil
}

// DeleteExpiredBefore removes blocks whose expiry is older than the cutoff.
// The cutoff normally trails expiry by a grace period so recently expired
// blocks stay queryable for forensics.
func (r *IPBlockRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM ip_blocks WHERE expires_at IS NOT NULL AND expires_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
