package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// AuthConfig contains admin authentication settings. There is one admin
// identity; the password is stored only as a bcrypt hash.
type AuthConfig struct {
	// AdminUsername is the admin login name.
	AdminUsername string

	// AdminPasswordHash is the bcrypt hash of the admin password.
	AdminPasswordHash string

	// JWTSecret signs admin session tokens.
	JWTSecret string

	// TokenTTL is the admin session lifetime.
	TokenTTL time.Duration
}

// DefaultAuthConfig returns defaults with no credentials set: every admin
// request is rejected until the deployment configures them.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		AdminUsername: "admin",
		TokenTTL:      12 * time.Hour,
	}
}

// Enabled reports whether admin authentication is configured.
func (c AuthConfig) Enabled() bool {
	return c.AdminPasswordHash != "" && c.JWTSecret != ""
}

type adminClaims struct {
	jwt.RegisteredClaims
}

// ─────────────────────────────────────────────────────────────────────────────
// Login
// ─────────────────────────────────────────────────────────────────────────────

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAdminLogin verifies the admin credentials and issues a session token.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	auth := s.config.Auth
	if !auth.Enabled() {
		writeJSONError(w, http.StatusServiceUnavailable, "auth_not_configured", "Admin authentication is not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed request body")
		return
	}

	// bcrypt comparison runs even on a wrong username so both failure modes
	// take roughly the same time.
	hash := auth.AdminPasswordHash
	usernameOK := req.Username == auth.AdminUsername
	passwordErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password))
	if !usernameOK || passwordErr != nil {
		s.logger.Warn("admin login rejected", "username", req.Username, "ip", r.RemoteAddr)
		writeJSONError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	}

	expiresAt := time.Now().Add(auth.TokenTTL)
	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   auth.AdminUsername,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(auth.JWTSecret))
	if err != nil {
		s.logger.Error("failed to sign admin token", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "Failed to issue token")
		return
	}

	s.logger.Info("admin logged in", "ip", r.RemoteAddr)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// adminAuthMiddleware requires a valid admin session token.
func (s *Server) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := s.config.Auth
		if !auth.Enabled() {
			writeJSONError(w, http.StatusServiceUnavailable, "auth_not_configured", "Admin authentication is not configured")
			return
		}

		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing_token", "Authorization header with a bearer token is required")
			return
		}

		claims := &adminClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(auth.JWTSecret), nil
		})
		if err != nil || !token.Valid || claims.Subject != auth.AdminUsername {
			writeJSONError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
