package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/database"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/jackc/pgx/v5"
)

// UserRepository is the identity store adapter: credentials, roles, the 2FA
// flag, the per-user failed-attempt counter and lockout fields.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, name, roles, two_factor_enabled,
	failed_attempts, last_failed_at, locked_until, last_login_at, last_login_ip,
	password_changed_at, created_at, updated_at`

func scanUserRow(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Roles, &u.TwoFactorEnabled,
		&u.FailedAttempts, &u.LastFailedAt, &u.LockedUntil, &u.LastLoginAt, &u.LastLoginIP,
		&u.PasswordChangedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &u, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO users (email, password_hash, name, roles, two_factor_enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s
	`, userColumns)

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.Email, user.PasswordHash, user.Name, user.Roles, user.TwoFactorEnabled,
	))
}

// GetRoles returns the user's role names
func (r *UserRepository) GetRoles(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT roles FROM users WHERE id = $1`

	var roles []string
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&roles)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return roles, nil
}

// IncrementFailedAttempts bumps the dedicated failed-attempt counter in a
// single statement and returns the new count. The increment is atomic at the
// row level, so concurrent failures never lose updates.
func (r *UserRepository) IncrementFailedAttempts(ctx context.Context, userID string, failedAt time.Time) (int, error) {
	query := `
		UPDATE users
		SET failed_attempts = failed_attempts + 1, last_failed_at = $2, updated_at = $2
		WHERE id = $1
		RETURNING failed_attempts
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, userID, failedAt).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// ResetFailedAttempts clears the counter and last-failure timestamp
func (r *UserRepository) ResetFailedAttempts(ctx context.Context, userID string, now time.Time) error {
	query := `
		UPDATE users
		SET failed_attempts = 0, last_failed_at = NULL, updated_at = $2
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, userID, now)
	return database.MapPostgresError(err)
}

// SetLockout sets (or clears, with nil) the lockout deadline
func (r *UserRepository) SetLockout(ctx context.Context, userID string, until *time.Time, now time.Time) error {
	query := `UPDATE users SET locked_until = $2, updated_at = $3 WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, userID, until, now)
	return database.MapPostgresError(err)
}

// GetLockState returns the lockout fields for a user
func (r *UserRepository) GetLockState(ctx context.Context, userID string) (failedAttempts int, lockedUntil *time.Time, err error) {
	query := `SELECT failed_attempts, locked_until FROM users WHERE id = $1`

	err = r.db.Pool.QueryRow(ctx, query, userID).Scan(&failedAttempts, &lockedUntil)
	if err != nil {
		return 0, nil, database.MapPostgresError(err)
	}
	return failedAttempts, lockedUntil, nil
}

// UpdateLastLogin records the timestamp and source IP of a completed login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID string, ip *string, now time.Time) error {
	query := `
		UPDATE users
		SET last_login_at = $2, last_login_ip = $3, updated_at = $2
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, userID, now, ip)
	return database.MapPostgresError(err)
}

// SetTwoFactorEnabled toggles the user's 2FA flag
func (r *UserRepository) SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool, now time.Time) error {
	query := `UPDATE users SET two_factor_enabled = $2, updated_at = $3 WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, userID, enabled, now)
	return database.MapPostgresError(err)
}

// UpdatePasswordHash replaces the stored hash and stamps the change time
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, userID, hash string, now time.Time) error {
	query := `
		UPDATE users
		SET password_hash = $2, password_changed_at = $3, updated_at = $3
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, userID, hash, now)
	return database.MapPostgresError(err)
}
