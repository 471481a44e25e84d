package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/auth"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/services"
	pkghttp "github.com/JonathanArroyaveGonzalez/sapfi-auth/pkg/http"
)

// AuthServiceInterface defines the interface for the login pipeline
type AuthServiceInterface interface {
	Login(ctx context.Context, req services.LoginRequest) (*services.LoginResponse, error)
	VerifyTwoFactor(ctx context.Context, req services.VerifyTwoFactorRequest) (*services.LoginResponse, error)
	Refresh(ctx context.Context, req services.RefreshRequest) (*services.LoginResponse, error)
	Logout(ctx context.Context, userID, ip string) error
	RevokeToken(ctx context.Context, userID, token, ip string) error
	ListSessions(ctx context.Context, userID string) ([]*models.RefreshToken, error)
	Register(ctx context.Context, req services.RegisterRequest) (*services.UserResponse, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword, ip string) error
	SetTwoFactor(ctx context.Context, userID string, enabled bool, ip string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyTwoFactorRequest represents the request body for two-factor verification
type VerifyTwoFactorRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RevokeTokenRequest represents the request body for revoking a single token
type RevokeTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,min=1"`
}

// ForgotPasswordRequest represents the request body for starting a password reset
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for completing a password reset
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// SessionResponse is the non-sensitive view of an active refresh token
type SessionResponse struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedByIP string    `json:"created_by_ip"`
}

func (h *AuthHandler) clientInfo(r *http.Request) (string, *string) {
	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	var ua *string
	if v := r.Header.Get("User-Agent"); v != "" {
		ua = &v
	}
	return ip, ua
}

// writeLoginError maps pipeline rejections to HTTP responses without leaking
// which gate fired beyond what the client is allowed to learn
func writeLoginError(w http.ResponseWriter, err error) {
	var lockErr *models.AccountLockedError

	switch {
	case errors.As(err, &lockErr):
		minutes := int(time.Until(lockErr.LockedUntil).Minutes()) + 1
		pkghttp.WriteError(w, http.StatusLocked, "account_locked",
			fmt.Sprintf("Account temporarily locked. Try again in %d minutes.", minutes))
	case errors.Is(err, models.ErrIPBlocked):
		pkghttp.WriteForbidden(w, "Access denied")
	case errors.Is(err, models.ErrRateLimitExceeded):
		pkghttp.WriteTooManyRequests(w, "Too many login attempts. Please try again later.")
	case errors.Is(err, models.ErrInvalidTwoFactorCode):
		pkghttp.WriteUnauthorized(w, "Invalid or expired verification code")
	case errors.Is(err, models.ErrTwoFactorDelivery):
		pkghttp.WriteInternalError(w, "Unable to deliver verification code")
	case errors.Is(err, models.ErrInvalidRefreshToken),
		errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip, ua := h.clientInfo(r)
	resp, err := h.service.Login(r.Context(), services.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: ip,
		UserAgent: ua,
	})
	if err != nil {
		writeLoginError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// VerifyTwoFactor completes a pending login. The pending token arrives in
// the Authorization header, the code in the body.
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	pendingToken := bearerToken(r)
	if pendingToken == "" {
		pkghttp.WriteUnauthorized(w, "Missing authorization header")
		return
	}

	var req VerifyTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip, ua := h.clientInfo(r)
	resp, err := h.service.VerifyTwoFactor(r.Context(), services.VerifyTwoFactorRequest{
		PendingToken: pendingToken,
		Code:         req.Code,
		IPAddress:    ip,
		UserAgent:    ua,
	})
	if err != nil {
		writeLoginError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// RefreshToken redeems a refresh token for a new session pair
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip, ua := h.clientInfo(r)
	resp, err := h.service.Refresh(r.Context(), services.RefreshRequest{
		RefreshToken: req.RefreshToken,
		IPAddress:    ip,
		UserAgent:    ua,
	})
	if err != nil {
		writeLoginError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Logout revokes every active session for the authenticated user
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	ip, _ := h.clientInfo(r)
	if err := h.service.Logout(r.Context(), claims.Subject, ip); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// RevokeToken revokes a single refresh token owned by the caller
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req RevokeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip, _ := h.clientInfo(r)
	if err := h.service.RevokeToken(r.Context(), claims.Subject, req.Token, ip); err != nil {
		if errors.Is(err, models.ErrInvalidRefreshToken) {
			pkghttp.WriteNotFound(w, "Token not found or already revoked")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Token revoked"})
}

// ListSessions returns the caller's active sessions without token values
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	tokens, err := h.service.ListSessions(r.Context(), claims.Subject)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	sessions := make([]SessionResponse, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionResponse{
			ID:          t.ID,
			CreatedAt:   t.CreatedAt,
			ExpiresAt:   t.ExpiresAt,
			CreatedByIP: t.CreatedByIP,
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, sessions)
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip, _ := h.clientInfo(r)
	user, err := h.service.Register(r.Context(), services.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		IPAddress: ip,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this email already exists")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, user)
}

// ForgotPassword starts the password reset flow. Always responds 200 so the
// endpoint cannot be used to probe for registered emails.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "If the email exists, a reset link has been sent",
	})
}

// ResetPassword completes the password reset flow
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip, _ := h.clientInfo(r)
	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword, ip); err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid or expired reset token")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// EnableTwoFactor turns on the two-factor requirement for the caller
func (h *AuthHandler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	h.setTwoFactor(w, r, true)
}

// DisableTwoFactor turns off the two-factor requirement for the caller
func (h *AuthHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	h.setTwoFactor(w, r, false)
}

func (h *AuthHandler) setTwoFactor(w http.ResponseWriter, r *http.Request, enabled bool) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	ip, _ := h.clientInfo(r)
	if err := h.service.SetTwoFactor(r.Context(), claims.Subject, enabled, ip); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"two_factor_enabled": enabled})
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
