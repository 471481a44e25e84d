package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/auth"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/services"
	pkghttp "github.com/JonathanArroyaveGonzalez/sapfi-auth/pkg/http"
	pkglogger "github.com/JonathanArroyaveGonzalez/sapfi-auth/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// BlacklistManager defines the blacklist operations exposed to admins
type BlacklistManager interface {
	Block(ctx context.Context, req services.BlockRequest) (*models.IPBlock, error)
	Unblock(ctx context.Context, ipAddress, note string) (bool, error)
	List(ctx context.Context, activeOnly bool) ([]*models.IPBlock, error)
	GetBlockInfo(ctx context.Context, ipAddress string) (*models.IPBlock, error)
}

// LockoutManager defines the account lock operations exposed to admins
type LockoutManager interface {
	Status(ctx context.Context, userID string) (*models.LockStatus, error)
	Unlock(ctx context.Context, userID string) error
}

// AttemptViewer exposes the attempt ledger read side
type AttemptViewer interface {
	ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error)
	HasRepeatedFailures(ctx context.Context, email string) (bool, error)
}

// AuditViewer exposes the durable audit trail read side
type AuditViewer interface {
	ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error)
}

// SecurityHandler exposes the administrative security surface: manual
// blocks, unlocks and the forensic views
type SecurityHandler struct {
	blacklist   BlacklistManager
	lockout     LockoutManager
	attempts    AttemptViewer
	audits      AuditViewer
	recorder    services.Recorder
	auditLogger *pkglogger.AuditLogger
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(blacklist BlacklistManager, lockout LockoutManager, attempts AttemptViewer, audits AuditViewer, recorder services.Recorder, auditLogger *pkglogger.AuditLogger) *SecurityHandler {
	return &SecurityHandler{
		blacklist:   blacklist,
		lockout:     lockout,
		attempts:    attempts,
		audits:      audits,
		recorder:    recorder,
		auditLogger: auditLogger,
	}
}

// BlockIPRequest represents the request body for blocking an IP
type BlockIPRequest struct {
	IPAddress       string  `json:"ip_address" validate:"required,ip"`
	Reason          string  `json:"reason" validate:"required,min=3"`
	BlockKind       string  `json:"block_kind" validate:"omitempty,oneof=manual too_many_attempts suspicious_activity reported_abuse"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,gt=0"`
	Notes           *string `json:"notes"`
}

// UnblockIPRequest represents the request body for unblocking an IP
type UnblockIPRequest struct {
	IPAddress string `json:"ip_address" validate:"required,ip"`
	Note      string `json:"note" validate:"required,min=3"`
}

// UnlockAccountRequest represents the request body for unlocking an account
type UnlockAccountRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// AccountStatusResponse combines the authoritative lock state with the
// advisory ledger signal
type AccountStatusResponse struct {
	IsLocked            bool       `json:"is_locked"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	FailedAttempts      int        `json:"failed_attempts"`
	HasRepeatedFailures bool       `json:"has_repeated_failures"`
}

func actor(r *http.Request) string {
	if claims := auth.GetUserFromContext(r); claims != nil {
		return claims.Subject
	}
	return "unknown"
}

// BlockIP applies a manual block
func (h *SecurityHandler) BlockIP(w http.ResponseWriter, r *http.Request) {
	var req BlockIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	by := actor(r)
	blockReq := services.BlockRequest{
		IPAddress: req.IPAddress,
		Reason:    req.Reason,
		BlockKind: req.BlockKind,
		BlockedBy: &by,
		Notes:     req.Notes,
	}
	if req.DurationMinutes != nil {
		d := time.Duration(*req.DurationMinutes) * time.Minute
		blockReq.Duration = &d
	}

	block, err := h.blacklist.Block(r.Context(), blockReq)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.recorder.Record(r.Context(), &models.AuditLog{
		UserID:       by,
		Action:       models.AuditIPBlocked,
		IPAddress:    &req.IPAddress,
		Details:      &req.Reason,
		Status:       models.AuditStatusSuccess,
		ResourceID:   &block.ID,
		ResourceType: resourceIPBlock(),
	})
	h.auditLogger.LogSecurityAction(models.AuditIPBlocked, by, req.IPAddress, map[string]string{
		"block_kind": block.BlockKind,
	})

	pkghttp.WriteJSON(w, http.StatusCreated, block)
}

// UnblockIP lifts every block on an IP
func (h *SecurityHandler) UnblockIP(w http.ResponseWriter, r *http.Request) {
	var req UnblockIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	found, err := h.blacklist.Unblock(r.Context(), req.IPAddress, req.Note)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if !found {
		pkghttp.WriteNotFound(w, "No block records exist for this IP")
		return
	}

	by := actor(r)
	h.recorder.Record(r.Context(), &models.AuditLog{
		UserID:    by,
		Action:    models.AuditIPUnblocked,
		IPAddress: &req.IPAddress,
		Details:   &req.Note,
		Status:    models.AuditStatusSuccess,
	})
	h.auditLogger.LogSecurityAction(models.AuditIPUnblocked, by, req.IPAddress, nil)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "IP unblocked"})
}

// ListBlockedIPs returns block entries; ?active=true restricts to live blocks
func (h *SecurityHandler) ListBlockedIPs(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	blocks, err := h.blacklist.List(r.Context(), activeOnly)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, blocks)
}

// GetBlockInfo returns the active block for an IP
func (h *SecurityHandler) GetBlockInfo(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")

	block, err := h.blacklist.GetBlockInfo(r.Context(), ip)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "No active block for this IP")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, block)
}

// UnlockAccount clears an account's failure counter and lockout deadline
func (h *SecurityHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	var req UnlockAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.lockout.Unlock(r.Context(), req.UserID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	by := actor(r)
	h.recorder.Record(r.Context(), &models.AuditLog{
		UserID: by,
		Action: models.AuditAccountUnlocked,
		Status: models.AuditStatusSuccess,
	})
	h.auditLogger.LogSecurityAction(models.AuditAccountUnlocked, by, req.UserID, nil)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Account unlocked"})
}

// GetAccountStatus returns the lock state for a user
func (h *SecurityHandler) GetAccountStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	email := r.URL.Query().Get("email")

	status, err := h.lockout.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := AccountStatusResponse{
		IsLocked:       status.IsLocked,
		LockedUntil:    status.LockedUntil,
		FailedAttempts: status.FailedAttempts,
	}
	if email != "" {
		repeated, err := h.attempts.HasRepeatedFailures(r.Context(), email)
		if err == nil {
			resp.HasRepeatedFailures = repeated
		}
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ListLoginAttempts returns the most recent ledger entries
func (h *SecurityHandler) ListLoginAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.attempts.ListRecent(r.Context(), queryLimit(r))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, attempts)
}

// ListAuditLogs returns the most recent audit entries
func (h *SecurityHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.audits.ListRecent(r.Context(), queryLimit(r))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, logs)
}

// ListUserAuditLogs returns the most recent audit entries for one user
func (h *SecurityHandler) ListUserAuditLogs(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	logs, err := h.audits.ListByUser(r.Context(), userID, queryLimit(r))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, logs)
}

func queryLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 100
}

func resourceIPBlock() *string {
	s := "ip_block"
	return &s
}
