package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthHandler(svc *MockAuthService) *AuthHandler {
	return NewAuthHandler(svc, nil)
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest("POST", path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func TestLoginHandlerSuccess(t *testing.T) {
	svc := &MockAuthService{}
	svc.LoginFunc = func(ctx context.Context, req services.LoginRequest) (*services.LoginResponse, error) {
		assert.Equal(t, "ada@example.com", req.Email)
		return &services.LoginResponse{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresIn:    3600,
		}, nil
	}

	w := postJSON(t, newAuthHandler(svc).Login, "/auth/login",
		`{"email":"ada@example.com","password":"correct horse battery"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp services.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "access", resp.AccessToken)
	assert.Equal(t, "refresh", resp.RefreshToken)
}

func TestLoginHandlerValidation(t *testing.T) {
	svc := &MockAuthService{}
	handler := newAuthHandler(svc)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing email", `{"password":"x"}`},
		{"invalid email", `{"email":"not-an-email","password":"x"}`},
		{"missing password", `{"email":"ada@example.com"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, handler.Login, "/auth/login", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestLoginHandlerStatusMapping(t *testing.T) {
	until := time.Now().Add(14*time.Minute + 30*time.Second)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid credentials", models.ErrUnauthorized, http.StatusUnauthorized},
		{"blocked ip", models.ErrIPBlocked, http.StatusForbidden},
		{"rate limited", models.ErrRateLimitExceeded, http.StatusTooManyRequests},
		{"locked account", &models.AccountLockedError{LockedUntil: until}, http.StatusLocked},
		{"delivery failure", models.ErrTwoFactorDelivery, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &MockAuthService{}
			svc.LoginFunc = func(ctx context.Context, req services.LoginRequest) (*services.LoginResponse, error) {
				return nil, tc.err
			}

			w := postJSON(t, newAuthHandler(svc).Login, "/auth/login",
				`{"email":"ada@example.com","password":"x"}`)

			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestLoginHandlerLockedIncludesMinutes(t *testing.T) {
	svc := &MockAuthService{}
	svc.LoginFunc = func(ctx context.Context, req services.LoginRequest) (*services.LoginResponse, error) {
		return nil, &models.AccountLockedError{LockedUntil: time.Now().Add(14*time.Minute + 30*time.Second)}
	}

	w := postJSON(t, newAuthHandler(svc).Login, "/auth/login",
		`{"email":"ada@example.com","password":"x"}`)

	require.Equal(t, http.StatusLocked, w.Code)
	assert.Contains(t, w.Body.String(), "15 minutes")
}

func TestVerifyTwoFactorRequiresBearer(t *testing.T) {
	svc := &MockAuthService{}

	w := postJSON(t, newAuthHandler(svc).VerifyTwoFactor, "/auth/verify-2fa",
		`{"code":"123456"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyTwoFactorPassesPendingToken(t *testing.T) {
	svc := &MockAuthService{}
	var gotToken, gotCode string
	svc.VerifyTwoFactorFunc = func(ctx context.Context, req services.VerifyTwoFactorRequest) (*services.LoginResponse, error) {
		gotToken = req.PendingToken
		gotCode = req.Code
		return &services.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
	}

	r := httptest.NewRequest("POST", "/auth/verify-2fa", strings.NewReader(`{"code":"123456"}`))
	r.Header.Set("Authorization", "Bearer pending-token")
	w := httptest.NewRecorder()
	newAuthHandler(svc).VerifyTwoFactor(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending-token", gotToken)
	assert.Equal(t, "123456", gotCode)
}

func TestVerifyTwoFactorRejectsMalformedCode(t *testing.T) {
	svc := &MockAuthService{}
	handler := newAuthHandler(svc)

	for _, code := range []string{"12345", "1234567", "abcdef"} {
		r := httptest.NewRequest("POST", "/auth/verify-2fa",
			strings.NewReader(`{"code":"`+code+`"}`))
		r.Header.Set("Authorization", "Bearer pending-token")
		w := httptest.NewRecorder()
		handler.VerifyTwoFactor(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code, "code %q", code)
	}
}

func TestRefreshHandlerInvalidToken(t *testing.T) {
	svc := &MockAuthService{}

	w := postJSON(t, newAuthHandler(svc).RefreshToken, "/auth/refresh",
		`{"refresh_token":"stale"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authentication failed")
}

func TestRegisterHandlerConflict(t *testing.T) {
	svc := &MockAuthService{}
	svc.RegisterFunc = func(ctx context.Context, req services.RegisterRequest) (*services.UserResponse, error) {
		return nil, models.ErrConflict
	}

	w := postJSON(t, newAuthHandler(svc).Register, "/auth/register",
		`{"email":"ada@example.com","password":"correct horse battery","name":"Ada"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterHandlerCreated(t *testing.T) {
	svc := &MockAuthService{}
	svc.RegisterFunc = func(ctx context.Context, req services.RegisterRequest) (*services.UserResponse, error) {
		return &services.UserResponse{ID: "user-1", Email: req.Email, Name: req.Name}, nil
	}

	w := postJSON(t, newAuthHandler(svc).Register, "/auth/register",
		`{"email":"ada@example.com","password":"correct horse battery","name":"Ada"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestForgotPasswordAlwaysUniformResponse(t *testing.T) {
	svc := &MockAuthService{}
	handler := newAuthHandler(svc)

	first := postJSON(t, handler.ForgotPassword, "/auth/forgot-password",
		`{"email":"known@example.com"}`)
	second := postJSON(t, handler.ForgotPassword, "/auth/forgot-password",
		`{"email":"unknown@example.com"}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}
