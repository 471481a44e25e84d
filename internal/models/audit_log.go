package models

import "time"

// Audit actions emitted by the authentication pipeline.
const (
	AuditLoginSuccess       = "LOGIN_SUCCESS"
	AuditLoginFailed        = "LOGIN_FAILED"
	AuditLoginPending2FA    = "LOGIN_PENDING_2FA"
	AuditLogin2FASendFailed = "LOGIN_2FA_SEND_FAILED"
	AuditTwoFactorFailed    = "2FA_VALIDATION_FAILED"
	AuditRefreshSuccess     = "REFRESH_TOKEN_SUCCESS"
	AuditRefreshInvalid     = "REFRESH_TOKEN_INVALID"
	AuditRefreshBlockedIP   = "REFRESH_TOKEN_BLOCKED_IP"
	AuditLogout             = "LOGOUT"
	AuditTokenRevoked       = "TOKEN_REVOKED"
	AuditIPBlocked          = "IP_BLOCKED"
	AuditIPUnblocked        = "IP_UNBLOCKED"
	AuditAccountUnlocked    = "ACCOUNT_UNLOCKED"
	AuditRegister           = "REGISTER"
	AuditPasswordReset      = "PASSWORD_RESET"
	AuditTwoFactorEnabled   = "2FA_ENABLED"
	AuditTwoFactorDisabled  = "2FA_DISABLED"
)

// Audit entry statuses.
const (
	AuditStatusSuccess = "SUCCESS"
	AuditStatusFailed  = "FAILED"
	AuditStatusBlocked = "BLOCKED"
	AuditStatusPending = "PENDING"
	AuditStatusWarning = "WARNING"
)

type AuditLog struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	Action       string    `db:"action"`
	IPAddress    *string   `db:"ip_address"`
	UserAgent    *string   `db:"user_agent"`
	Details      *string   `db:"details"`
	Status       string    `db:"status"`
	ErrorMessage *string   `db:"error_message"`
	ResourceID   *string   `db:"resource_id"`
	ResourceType *string   `db:"resource_type"`
	CreatedAt    time.Time `db:"created_at"`
}
