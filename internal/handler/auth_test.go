package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/session"
)

// authStubService scripts the auth-facing slice of service.UserService.
type authStubService struct {
	stubUserService

	registerUser *domain.User
	registerErr  error
	loginResult  *domain.LoginResult
	loginErr     error

	loggedOutTokens []string
}

func (s *authStubService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return s.registerUser, nil
}

func (s *authStubService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.loginResult, nil
}

func (s *authStubService) Logout(ctx context.Context, token string) error {
	s.loggedOutTokens = append(s.loggedOutTokens, token)
	return nil
}

// recordingLimiter records login outcome callbacks per IP.
type recordingLimiter struct {
	failed []string
	reset  []string
}

func (l *recordingLimiter) RecordFailedLogin(ip string) { l.failed = append(l.failed, ip) }
func (l *recordingLimiter) ResetLogin(ip string)        { l.reset = append(l.reset, ip) }

func testUser() *domain.User {
	return &domain.User{
		ID:    uuid.New(),
		Email: "founder@example.com",
		Name:  "Founder",
	}
}

func TestAuthHandler_Register(t *testing.T) {
	user := testUser()
	svc := &authStubService{registerUser: user}
	h := NewAuthHandler(svc, nil, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"founder@example.com","password":"hunter2hunter2","name":"Founder"}`))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		User userResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, user.ID.String(), body.User.ID)
	assert.Equal(t, "founder@example.com", body.User.Email)
}

func TestAuthHandler_Register_ValidationError(t *testing.T) {
	svc := &authStubService{registerErr: domain.Invalid("UserService.Register", "Email is required")}
	h := NewAuthHandler(svc, nil, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"","password":"hunter2hunter2","name":"Founder"}`))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Login_SetsCookieAndReturnsToken(t *testing.T) {
	user := testUser()
	limiter := &recordingLimiter{}
	svc := &authStubService{loginResult: &domain.LoginResult{User: user, Token: "tok_raw"}}
	h := NewAuthHandler(svc, limiter, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"founder@example.com","password":"hunter2hunter2"}`))
	req.RemoteAddr = "203.0.113.7:4444"
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		User  userResponse `json:"user"`
		Token string       `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "tok_raw", body.Token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.Equal(t, "tok_raw", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	// Successful login clears the failure counter for that IP.
	assert.Equal(t, []string{"203.0.113.7"}, limiter.reset)
	assert.Empty(t, limiter.failed)
}

func TestAuthHandler_Login_BadCredentialsRecorded(t *testing.T) {
	limiter := &recordingLimiter{}
	svc := &authStubService{loginErr: domain.Unauthorized("UserService.Login", "Invalid email or password")}
	h := NewAuthHandler(svc, limiter, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"founder@example.com","password":"wrong"}`))
	req.Header.Set("X-Forwarded-For", "198.51.100.2, 10.0.0.1")
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []string{"198.51.100.2"}, limiter.failed)
	assert.Empty(t, limiter.reset)
}

func TestAuthHandler_Login_InternalErrorNotRecorded(t *testing.T) {
	limiter := &recordingLimiter{}
	svc := &authStubService{loginErr: domain.Internal(errors.New("pool closed"), "UserService.Login", "")}
	h := NewAuthHandler(svc, limiter, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"founder@example.com","password":"hunter2hunter2"}`))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, limiter.failed)
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	svc := &authStubService{}
	h := NewAuthHandler(svc, nil, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "tok_raw"})
	rec := httptest.NewRecorder()

	h.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"tok_raw"}, svc.loggedOutTokens)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

func TestAuthHandler_Logout_WithoutSession(t *testing.T) {
	svc := &authStubService{}
	h := NewAuthHandler(svc, nil, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()

	h.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.loggedOutTokens)
}
