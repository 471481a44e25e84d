package repositories

import (
	"context"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/database"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/jackc/pgx/v5"
)

// LoginAttemptRepository handles database operations for the attempt ledger.
// Rows are append-only; the only delete path is retention reclamation.
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Insert appends a login attempt to the ledger
func (r *LoginAttemptRepository) Insert(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, ip_address, user_agent, attempted_at, was_successful, failure_reason, failure_kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.AttemptedAt,
		attempt.WasSuccessful,
		attempt.FailureReason,
		attempt.FailureKind,
	)
	return database.MapPostgresError(err)
}

// CountByIPSince returns all attempts (success and failure) from an IP since the cutoff
func (r *LoginAttemptRepository) CountByIPSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND attempted_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, ipAddress, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// CountByEmailSince returns all attempts for an email since the cutoff
func (r *LoginAttemptRepository) CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND attempted_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, email, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// CountFailedByIPSince returns failed attempts from an IP since the cutoff
func (r *LoginAttemptRepository) CountFailedByIPSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND was_successful = false AND attempted_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, ipAddress, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// CountFailedByEmailSince returns failed attempts for an email since the cutoff
func (r *LoginAttemptRepository) CountFailedByEmailSince(ctx context.Context, email string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND was_successful = false AND attempted_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, email, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// ListRecent returns the most recent attempts, newest first
func (r *LoginAttemptRepository) ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, email, ip_address, user_agent, attempted_at, was_successful, failure_reason, failure_kind
		FROM login_attempts
		ORDER BY attempted_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanLoginAttemptRows(rows)
}

// DeleteOlderThan removes attempts recorded before the cutoff, returning the
// number of rows removed
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE attempted_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

func scanLoginAttemptRows(rows pgx.Rows) ([]*models.LoginAttempt, error) {
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)
	for rows.Next() {
		var a models.LoginAttempt
		err := rows.Scan(
			&a.ID, &a.Email, &a.IPAddress, &a.UserAgent,
			&a.AttemptedAt, &a.WasSuccessful, &a.FailureReason, &a.FailureKind,
		)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return attempts, nil
}
