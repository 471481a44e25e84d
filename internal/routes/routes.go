package routes

import (
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/auth"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/handlers"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	securityHandler *handlers.SecurityHandler,
	tokenManager *auth.TokenManager,
) {
	// Transport-level rate limiting for the unauthenticated surface. The
	// login pipeline applies its own ledger-based budget behind this.
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))

		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/verify-2fa", authHandler.VerifyTwoFactor)
		r.Post("/auth/refresh", authHandler.RefreshToken)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
		r.Post("/auth/reset-password", authHandler.ResetPassword)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))

		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/revoke-token", authHandler.RevokeToken)
		r.Get("/auth/sessions", authHandler.ListSessions)
		r.Post("/auth/2fa/enable", authHandler.EnableTwoFactor)
		r.Post("/auth/2fa/disable", authHandler.DisableTwoFactor)

		// Admin-only security surface
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))

			r.Post("/security/block-ip", securityHandler.BlockIP)
			r.Post("/security/unblock-ip", securityHandler.UnblockIP)
			r.Get("/security/blocked-ips", securityHandler.ListBlockedIPs)
			r.Get("/security/blocked-ips/{ip}", securityHandler.GetBlockInfo)
			r.Post("/security/unlock-account", securityHandler.UnlockAccount)
			r.Get("/security/accounts/{id}/status", securityHandler.GetAccountStatus)
			r.Get("/security/login-attempts", securityHandler.ListLoginAttempts)
			r.Get("/security/audit-logs", securityHandler.ListAuditLogs)
			r.Get("/security/audit-logs/user/{id}", securityHandler.ListUserAuditLogs)
		})
	})
}
