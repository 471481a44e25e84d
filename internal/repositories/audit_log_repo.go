package repositories

import (
	"context"
	"fmt"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/database"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/jackc/pgx/v5"
)

// AuditLogRepository handles audit record persistence.
type AuditLogRepository struct {
	db *database.DB
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

const auditLogColumns = `id, user_id, action, ip_address, user_agent, details,
	status, error_message, resource_id, resource_type, created_at`

func scanAuditLogRow(row pgx.Row) (*models.AuditLog, error) {
	var log models.AuditLog
	err := row.Scan(
		&log.ID, &log.UserID, &log.Action, &log.IPAddress, &log.UserAgent,
		&log.Details, &log.Status, &log.ErrorMessage, &log.ResourceID,
		&log.ResourceType, &log.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &log, nil
}

// Insert persists an audit entry
func (r *AuditLogRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (user_id, action, ip_address, user_agent, details, status, error_message, resource_id, resource_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		log.UserID, log.Action, log.IPAddress, log.UserAgent, log.Details,
		log.Status, log.ErrorMessage, log.ResourceID, log.ResourceType,
	)
	return database.MapPostgresError(err)
}

// ListRecent returns the most recent entries, newest first
func (r *AuditLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audit_logs ORDER BY created_at DESC LIMIT $1
	`, auditLogColumns)

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanAuditLogRows(rows)
}

// ListByUser returns the most recent entries for a user, newest first
func (r *AuditLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, auditLogColumns)

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanAuditLogRows(rows)
}

func scanAuditLogRows(rows pgx.Rows) ([]*models.AuditLog, error) {
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log, err := scanAuditLogRow(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return logs, nil
}
