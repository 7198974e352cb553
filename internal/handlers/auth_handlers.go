package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"supplies-portal/internal/auth"
	"supplies-portal/internal/middleware"
	"supplies-portal/internal/models"
	"supplies-portal/internal/platform/logger"
	"supplies-portal/internal/services"
	"supplies-portal/internal/web"
)

const (
	MaxFailedAttempts   = 5
	LockoutDurationMins = 15
)

var errLoginLocked = errors.New("too many failed login attempts")

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	User    *UserResponse `json:"user,omitempty"`
	Token   string        `json:"token,omitempty"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// LoginAuditor records login attempts and counts recent failures.
// *repository.AuditRepository satisfies it.
type LoginAuditor interface {
	services.AuditLogger
	CountFailedLoginsByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
}

// Session bundles what the login, logout and refresh handlers need.
// Audit may be nil.
type Session struct {
	Credentials  *auth.CredentialStore
	JWT          *auth.JWTManager
	Audit        LoginAuditor
	SecureCookie bool
	Log          logger.Logger
}

// HandleLogin handles API login with JSON or form bodies
func HandleLogin(s *Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest

		// Parse request - support both JSON and form data
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondErrorWithRequest(w, r, http.StatusBadRequest, "Invalid request body")
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				respondErrorWithRequest(w, r, http.StatusBadRequest, "Invalid form data")
				return
			}
			req.Username = r.FormValue("username")
			req.Password = r.FormValue("password")
		}

		if strings.TrimSpace(req.Username) == "" || req.Password == "" {
			respondErrorWithRequest(w, r, http.StatusBadRequest, "Username and password are required")
			return
		}

		identity, token, err := s.login(r, req.Username, req.Password)
		if err != nil {
			status, message := loginErrorStatus(err)
			respondErrorWithRequest(w, r, status, message)
			return
		}

		s.setCookie(w, token)
		respondJSON(w, http.StatusOK, AuthResponse{
			Success: true,
			Message: "Login successful",
			User: &UserResponse{
				Username:  identity.Username,
				Name:      identity.DisplayName,
				ExpiresAt: time.Now().Add(s.JWT.SessionDuration()).UTC().Format(time.RFC3339),
			},
			Token: token,
		})
	}
}

// HandleLoginPage renders the login form, or skips it for a live session
func HandleLoginPage(am *middleware.AuthMiddleware, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if am.Identify(r) != nil {
			http.Redirect(w, r, "/forecast", http.StatusSeeOther)
			return
		}
		renderPage(w, http.StatusOK, "login.html", &web.Page{
			Title: "Sign in",
			Nonce: middleware.CSPNonce(r.Context()),
		}, log)
	}
}

// HandleLoginForm handles the login form post from the login page
func HandleLoginForm(s *Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := &web.Page{Title: "Sign in", Nonce: middleware.CSPNonce(r.Context())}

		if err := r.ParseForm(); err != nil {
			page.Error = "Invalid form data"
			renderPage(w, http.StatusBadRequest, "login.html", page, s.Log)
			return
		}
		username := r.FormValue("username")
		password := r.FormValue("password")
		if strings.TrimSpace(username) == "" || password == "" {
			page.Error = "Username and password are required"
			renderPage(w, http.StatusBadRequest, "login.html", page, s.Log)
			return
		}

		_, token, err := s.login(r, username, password)
		if err != nil {
			status, message := loginErrorStatus(err)
			page.Error = message
			renderPage(w, status, "login.html", page, s.Log)
			return
		}

		s.setCookie(w, token)
		http.Redirect(w, r, "/forecast", http.StatusSeeOther)
	}
}

// HandleLogout revokes the session token and clears the cookie
func HandleLogout(s *Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logout(w, r)
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Logout successful",
		})
	}
}

// HandleLogoutPage is HandleLogout for the navigation form
func HandleLogoutPage(s *Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logout(w, r)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// HandleGetCurrentUser returns the current authenticated user's information
func HandleGetCurrentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userCtx := middleware.GetUserContext(r)
		if userCtx == nil {
			respondErrorWithRequest(w, r, http.StatusUnauthorized, "Not authenticated")
			return
		}

		resp := UserResponse{Username: userCtx.Username, Name: userCtx.DisplayName}
		if !userCtx.ExpiresAt.IsZero() {
			resp.ExpiresAt = userCtx.ExpiresAt.UTC().Format(time.RFC3339)
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

// HandleRefreshToken exchanges the current token for a fresh one
func HandleRefreshToken(s *Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.GetToken(r)
		if token == "" {
			respondErrorWithRequest(w, r, http.StatusUnauthorized, "No token provided")
			return
		}

		newToken, err := s.JWT.RefreshToken(token)
		if err != nil {
			s.Log.Warn("token refresh failed", logger.Fields{"ip": middleware.ClientIP(r), "err": err})
			respondErrorWithRequest(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		s.setCookie(w, newToken)
		respondJSON(w, http.StatusOK, AuthResponse{
			Success: true,
			Message: "Token refreshed successfully",
			Token:   newToken,
		})
	}
}

// HandleGetCSRFToken returns a new CSRF token
func HandleGetCSRFToken(csrf *middleware.CSRFProtection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"csrf_token": csrf.GenerateToken()})
	}
}

// login checks the lockout window and the credentials, records the
// attempt, and issues a session token.
func (s *Session) login(r *http.Request, username, password string) (*auth.Identity, string, error) {
	ctx := r.Context()
	ipAddress := middleware.ClientIP(r)
	userAgent := r.UserAgent()
	attempted := strings.ToLower(strings.TrimSpace(username))

	if s.Audit != nil {
		since := time.Now().Add(-LockoutDurationMins * time.Minute)
		failed, err := s.Audit.CountFailedLoginsByIP(ctx, ipAddress, since)
		if err != nil {
			s.Log.Warn("failed to count failed logins", logger.Fields{"ip": ipAddress, "err": err})
		} else if failed >= MaxFailedAttempts {
			s.Log.Warn("login locked out", logger.Fields{"ip": ipAddress, "user": attempted, "failed": failed})
			return nil, "", errLoginLocked
		}
	}

	identity, err := s.Credentials.Verify(username, password)
	if err != nil {
		s.record(ctx, attempted, models.ActionLoginFailed, map[string]interface{}{"reason": "invalid_credentials"}, ipAddress, userAgent)
		return nil, "", err
	}

	token, err := s.JWT.GenerateToken(identity.Username, identity.DisplayName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.record(ctx, identity.Username, models.ActionLoginSuccess, nil, ipAddress, userAgent)
	s.Log.Info("user logged in", logger.Fields{"user": identity.Username, "ip": ipAddress})
	return identity, token, nil
}

func (s *Session) logout(w http.ResponseWriter, r *http.Request) {
	if userCtx := middleware.GetUserContext(r); userCtx != nil {
		if claims := userCtx.Claims(); claims != nil {
			s.JWT.Revoke(claims)
		}
		s.record(r.Context(), userCtx.Username, models.ActionLogout, nil, middleware.ClientIP(r), r.UserAgent())
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Session) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.JWT.SessionDuration().Seconds()),
		HttpOnly: true,
		Secure:   s.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Session) record(ctx context.Context, username, action string, details map[string]interface{}, ipAddress, userAgent string) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.LogAction(ctx, username, action, "user", username, details, ipAddress, userAgent); err != nil {
		s.Log.Warn("failed to record audit entry", logger.Fields{"action": action, "err": err})
	}
}

func loginErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errLoginLocked):
		return http.StatusTooManyRequests, "Too many failed attempts. Try again later."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	}
	return http.StatusInternalServerError, "An error occurred"
}
