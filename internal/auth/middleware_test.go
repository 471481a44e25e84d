package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	tm := newTestTokenManager()
	token, err := tm.GenerateAccessToken("user-1", "ada@example.com", []string{"user"}, false)
	require.NoError(t, err)

	var gotSubject string
	handler := AuthMiddleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserFromContext(r)
		require.NotNil(t, claims)
		gotSubject = claims.Subject
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/auth/sessions", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", gotSubject)
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	tm := newTestTokenManager()
	handler := AuthMiddleware(tm)(okHandler(t))

	r := httptest.NewRequest("GET", "/auth/sessions", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareMalformedHeader(t *testing.T) {
	tm := newTestTokenManager()
	handler := AuthMiddleware(tm)(okHandler(t))

	for _, header := range []string{"Basic abc", "Bearer", "just-a-token"} {
		r := httptest.NewRequest("GET", "/auth/sessions", nil)
		r.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestAuthMiddlewareRejectsPendingToken(t *testing.T) {
	tm := newTestTokenManager()
	pending, err := tm.GenerateAccessToken("user-1", "ada@example.com", nil, true)
	require.NoError(t, err)

	handler := AuthMiddleware(tm)(okHandler(t))

	r := httptest.NewRequest("GET", "/auth/sessions", nil)
	r.Header.Set("Authorization", "Bearer "+pending)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	// A pending token is only good for the verification endpoint
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "two-factor verification required")
}

func TestAuthMiddlewareRejectsPasswordResetToken(t *testing.T) {
	tm := newTestTokenManager()
	token, err := tm.GeneratePasswordResetToken("user-1", "ada@example.com", time.Hour)
	require.NoError(t, err)

	handler := AuthMiddleware(tm)(okHandler(t))

	r := httptest.NewRequest("GET", "/auth/sessions", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	tm := newTestTokenManager()

	adminToken, err := tm.GenerateAccessToken("user-1", "ada@example.com", []string{"admin", "user"}, false)
	require.NoError(t, err)
	userToken, err := tm.GenerateAccessToken("user-2", "bob@example.com", []string{"user"}, false)
	require.NoError(t, err)

	handler := AuthMiddleware(tm)(RequireRole("admin")(okHandler(t)))

	r := httptest.NewRequest("GET", "/security/blocked-ips", nil)
	r.Header.Set("Authorization", "Bearer "+adminToken)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest("GET", "/security/blocked-ips", nil)
	r.Header.Set("Authorization", "Bearer "+userToken)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetUserFromContextWithoutMiddleware(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Nil(t, GetUserFromContext(r))
}
