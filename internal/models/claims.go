package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminators carried in the "type" claim.
const (
	TokenTypeAccess        = "access"
	TokenTypePasswordReset = "password_reset"
)

// TokenClaims is the claim set of every signed token this service issues.
// TwoFactorPending marks an access token issued after a correct password but
// before the one-time code has been verified; such a token grants nothing
// beyond the verify-2fa endpoint.
type TokenClaims struct {
	Type             string   `json:"type"`
	Email            string   `json:"email,omitempty"`
	Roles            []string `json:"roles,omitempty"`
	TwoFactorPending bool     `json:"2fa_pending"`
	jwt.RegisteredClaims
}
