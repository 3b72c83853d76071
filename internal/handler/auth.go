// Package handler contains HTTP handlers for the Sommet application.
//
// This file implements authentication handlers for user registration, login,
// and logout.
package handler

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sommetlabs/sommet/internal/auth"
	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/service"
	"github.com/sommetlabs/sommet/internal/session"
)

// LoginLimiter records login outcomes so failed attempts count against the
// per-IP limit. Implemented by middleware.AuthRateLimiter; declared here so
// the handler package does not import middleware (middleware imports handler
// for error responses).
type LoginLimiter interface {
	RecordFailedLogin(ip string)
	ResetLogin(ip string)
}

// AuthHandler handles authentication-related HTTP requests.
//
// Routes handled:
// - POST /api/auth/register -> Register
// - POST /api/auth/login    -> Login
// - POST /api/auth/logout   -> Logout
// - GET  /api/auth/me       -> Me
//
// On login the raw session token is returned in the body for API clients
// and also set as an HttpOnly cookie for browser clients. Both paths are
// accepted by the auth middleware.
type AuthHandler struct {
	userService service.UserService
	limiter     LoginLimiter // nil disables failed-login tracking
	logger      *slog.Logger
	isSecure    bool // Secure cookie flag, true in production
}

// NewAuthHandler creates a new AuthHandler with the required dependencies.
func NewAuthHandler(userService service.UserService, limiter LoginLimiter, logger *slog.Logger, isSecure bool) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		limiter:     limiter,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// userResponse is the public shape of a user record.
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.Name,
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user": toUserResponse(user),
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if h.limiter != nil && domain.ErrorCode(err) == domain.EUNAUTHORIZED {
			h.limiter.RecordFailedLogin(clientIP(r))
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if h.limiter != nil {
		h.limiter.ResetLogin(clientIP(r))
	}

	h.setSessionCookie(w, result.Token)

	respondJSON(w, http.StatusOK, map[string]any{
		"user":  toUserResponse(result.User),
		"token": result.Token,
	})
}

// Logout handles POST /api/auth/logout. Idempotent: logging out with an
// invalid or missing token still succeeds and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)
	if token != "" {
		if err := h.userService.Logout(r.Context(), token); err != nil {
			h.logger.Warn("logout failed", "error", err)
		}
	}

	h.clearSessionCookie(w)

	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me handles GET /api/auth/me. Returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user": toUserResponse(user),
	})
}

// clientIP extracts the client IP, honoring proxy headers. Kept in sync
// with the middleware's version; handler cannot import middleware.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, _ := strings.Cut(xff, ","); strings.TrimSpace(first) != "" {
			return strings.TrimSpace(first)
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// extractToken pulls the session token from the Authorization header or the
// session cookie. Same precedence as the auth middleware.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     session.CookiePath,
		MaxAge:   session.CookieMaxAge,
		HttpOnly: true,
		Secure:   h.isSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(time.Duration(session.CookieMaxAge) * time.Second),
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     session.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
