package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/database"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/jackc/pgx/v5"
)

// RefreshTokenRepository handles persistence for opaque refresh tokens.
// The token value column carries a unique constraint; concurrent issuance of
// a duplicate value fails at the database rather than silently colliding.
type RefreshTokenRepository struct {
	db *database.DB
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository
func NewRefreshTokenRepository(db *database.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

const refreshTokenColumns = `id, token, user_id, created_at, expires_at, created_by_ip,
	is_revoked, revoked_at, revoked_by_ip, revoked_reason, replaced_by_token`

func scanRefreshTokenRow(row pgx.Row) (*models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(
		&t.ID, &t.Token, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.CreatedByIP,
		&t.IsRevoked, &t.RevokedAt, &t.RevokedByIP, &t.RevokedReason, &t.ReplacedByToken,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &t, nil
}

// Insert stores a newly issued refresh token
func (r *RefreshTokenRepository) Insert(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	query := fmt.Sprintf(`
		INSERT INTO refresh_tokens (token, user_id, created_at, expires_at, created_by_ip, is_revoked)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING %s
	`, refreshTokenColumns)

	return scanRefreshTokenRow(r.db.Pool.QueryRow(ctx, query,
		token.Token, token.UserID, token.CreatedAt, token.ExpiresAt, token.CreatedByIP,
	))
}

// GetByToken looks up a refresh token by its opaque value
func (r *RefreshTokenRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM refresh_tokens WHERE token = $1`, refreshTokenColumns)
	return scanRefreshTokenRow(r.db.Pool.QueryRow(ctx, query, token))
}

// RevokeIfActive marks the token revoked, guarded by its current unrevoked
// state. The guard makes concurrent rotation attempts race safely: exactly
// one caller wins, the rest see ErrNotFound.
func (r *RefreshTokenRepository) RevokeIfActive(ctx context.Context, token, ip, reason string, now time.Time) (*models.RefreshToken, error) {
	query := fmt.Sprintf(`
		UPDATE refresh_tokens
		SET is_revoked = true, revoked_at = $2, revoked_by_ip = $3, revoked_reason = $4
		WHERE token = $1 AND is_revoked = false
		RETURNING %s
	`, refreshTokenColumns)

	return scanRefreshTokenRow(r.db.Pool.QueryRow(ctx, query, token, now, ip, reason))
}

// SetReplacedBy records rotation linkage on an already-revoked token
func (r *RefreshTokenRepository) SetReplacedBy(ctx context.Context, oldToken, newToken string) error {
	query := `UPDATE refresh_tokens SET replaced_by_token = $2 WHERE token = $1`

	_, err := r.db.Pool.Exec(ctx, query, oldToken, newToken)
	return database.MapPostgresError(err)
}

// RevokeAllForUser revokes every active token belonging to the user,
// returning how many were revoked
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID, ip, reason string, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = true, revoked_at = $2, revoked_by_ip = $3, revoked_reason = $4
		WHERE user_id = $1 AND is_revoked = false AND expires_at > $2
	`

	result, err := r.db.Pool.Exec(ctx, query, userID, now, ip, reason)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// ListActiveByUser returns the user's active tokens, newest first
func (r *RefreshTokenRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM refresh_tokens
		WHERE user_id = $1 AND is_revoked = false AND expires_at > $2
		ORDER BY created_at DESC
	`, refreshTokenColumns)

	rows, err := r.db.Pool.Query(ctx, query, userID, now)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	tokens := make([]*models.RefreshToken, 0)
	for rows.Next() {
		token, err := scanRefreshTokenRow(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return tokens, nil
}

// CountActiveByUser returns the number of active tokens the user holds
func (r *RefreshTokenRepository) CountActiveByUser(ctx context.Context, userID string, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM refresh_tokens
		WHERE user_id = $1 AND is_revoked = false AND expires_at > $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, userID, now).Scan(&count)
	return count, database.MapPostgresError(err)
}

// GetOldestActiveByUser returns the user's longest-lived active token
func (r *RefreshTokenRepository) GetOldestActiveByUser(ctx context.Context, userID string, now time.Time) (*models.RefreshToken, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM refresh_tokens
		WHERE user_id = $1 AND is_revoked = false AND expires_at > $2
		ORDER BY created_at ASC
		LIMIT 1
	`, refreshTokenColumns)

	return scanRefreshTokenRow(r.db.Pool.QueryRow(ctx, query, userID, now))
}

// DeleteExpiredBefore removes tokens whose lifetime elapsed before the given
// instant. Delete-if-still-expired semantics: a row that was concurrently
// re-checked by a live request is untouched unless its expiry truly passed.
func (r *RefreshTokenRepository) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
