package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager issues and validates signed access tokens and generates the
// opaque values used for refresh tokens. Access tokens are never stored;
// their authority is the signature plus expiry.
type TokenManager struct {
	secret            string
	issuer            string
	audience          string
	accessTokenExpiry time.Duration
	now               func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret, issuer, audience string, accessExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:            secret,
		issuer:            issuer,
		audience:          audience,
		accessTokenExpiry: accessExpiry,
		now:               time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (tm *TokenManager) SetClock(now func() time.Time) {
	tm.now = now
}

// AccessTokenTTL returns the configured access token lifetime
func (tm *TokenManager) AccessTokenTTL() time.Duration {
	return tm.accessTokenExpiry
}

// GenerateAccessToken creates a signed access token. twoFactorPending marks a
// token issued after a correct password but before code verification; it is
// only good for the verify-2fa endpoint.
func (tm *TokenManager) GenerateAccessToken(userID, email string, roles []string, twoFactorPending bool) (string, error) {
	now := tm.now()

	claims := &models.TokenClaims{
		Type:             models.TokenTypeAccess,
		Email:            email,
		Roles:            roles,
		TwoFactorPending: twoFactorPending,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{tm.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// GeneratePasswordResetToken creates a short-lived single-purpose token for
// the reset-password flow.
func (tm *TokenManager) GeneratePasswordResetToken(userID, email string, ttl time.Duration) (string, error) {
	now := tm.now()

	claims := &models.TokenClaims{
		Type:  models.TokenTypePasswordReset,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{tm.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign password reset token: %w", err)
	}

	return tokenString, nil
}

// GenerateRefreshValue returns a 512-bit opaque random value, base64-encoded.
// It carries no claims; validity is decided by the refresh token store.
func (tm *TokenManager) GenerateRefreshValue() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// ValidateToken verifies signature, issuer, audience and expiry (zero
// clock-skew tolerance) and returns the claims.
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(tm.secret), nil
		},
		jwt.WithIssuer(tm.issuer),
		jwt.WithAudience(tm.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return tm.now() }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type == "" {
		return nil, fmt.Errorf("invalid token: missing type")
	}

	return claims, nil
}

// IsTwoFactorPending reports whether the token still awaits code verification.
// Invalid tokens report false; callers needing the distinction use ValidateToken.
func (tm *TokenManager) IsTwoFactorPending(tokenString string) bool {
	claims, err := tm.ValidateToken(tokenString)
	if err != nil {
		return false
	}
	return claims.TwoFactorPending
}
