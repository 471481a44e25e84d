package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcome labels.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeIPBlocked          = "ip_blocked"
	OutcomeRateLimited        = "rate_limited"
	OutcomeAccountLocked      = "account_locked"
	OutcomePending2FA         = "pending_2fa"
	OutcomeTwoFactorFailed    = "2fa_failed"
	OutcomeError              = "error"
)

// Reclamation store labels.
const (
	StoreLoginAttempts = "login_attempts"
	StoreIPBlocks      = "ip_blocks"
	StoreRefreshTokens = "refresh_tokens"
)

var (
	// LoginAttempts counts login pipeline outcomes.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sapfi_auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts by pipeline outcome.",
	}, []string{"outcome"})

	// RefreshAttempts counts refresh pipeline outcomes.
	RefreshAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sapfi_auth",
		Name:      "refresh_attempts_total",
		Help:      "Refresh token redemptions by outcome.",
	}, []string{"outcome"})

	// IPBlocksApplied counts blocks applied by kind.
	IPBlocksApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sapfi_auth",
		Name:      "ip_blocks_applied_total",
		Help:      "IP blocks applied, by block kind.",
	}, []string{"block_kind"})

	// ReclaimedRows counts rows removed by the background reclamation job.
	ReclaimedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sapfi_auth",
		Name:      "reclaimed_rows_total",
		Help:      "Rows removed by background reclamation, by store.",
	}, []string{"store"})

	// ReclamationFailures counts sweep errors by store.
	ReclamationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sapfi_auth",
		Name:      "reclamation_failures_total",
		Help:      "Background reclamation sweep failures, by store.",
	}, []string{"store"})
)
