package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"supplies-portal/internal/auth"
)

type contextKey string

const (
	UserContextKey contextKey = "user"

	// AuthCookieName is the session cookie holding the JWT.
	AuthCookieName = "auth_token"
)

// UserContext holds user information in the request context
type UserContext struct {
	Username    string
	DisplayName string
	TokenID     string
	ExpiresAt   time.Time

	claims *auth.Claims
}

// Claims returns the token claims the context was built from.
func (u *UserContext) Claims() *auth.Claims {
	return u.claims
}

// AuthMiddleware validates JWT tokens and adds user context
type AuthMiddleware struct {
	jwtManager *auth.JWTManager
}

func NewAuthMiddleware(jwtManager *auth.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
	}
}

// RequireAuth ensures the user is authenticated. API requests without a
// valid session get a 401.
func (am *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx := am.Identify(r)
		if userCtx == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userCtx)))
	})
}

// RequireAuthPage is RequireAuth for HTML pages: unauthenticated browsers
// are sent to the login page instead.
func (am *AuthMiddleware) RequireAuthPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx := am.Identify(r)
		if userCtx == nil {
			if r.Header.Get("HX-Request") == "true" {
				w.Header().Set("HX-Redirect", "/login")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userCtx)))
	})
}

// Identify returns the user for a valid session token, or nil.
func (am *AuthMiddleware) Identify(r *http.Request) *UserContext {
	token := GetToken(r)
	if token == "" {
		return nil
	}

	claims, err := am.jwtManager.ValidateToken(token)
	if err != nil {
		return nil
	}

	userCtx := &UserContext{
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
		TokenID:     claims.ID,
		claims:      claims,
	}
	if claims.ExpiresAt != nil {
		userCtx.ExpiresAt = claims.ExpiresAt.Time
	}
	return userCtx
}

// GetToken extracts the JWT from the session cookie or Authorization header
func GetToken(r *http.Request) string {
	// Try cookie first
	if cookie, err := r.Cookie(AuthCookieName); err == nil {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	return ""
}

// WithUser stores the user in ctx
func WithUser(ctx context.Context, userCtx *UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey, userCtx)
}

// GetUserContext retrieves user context from request
func GetUserContext(r *http.Request) *UserContext {
	if userCtx, ok := r.Context().Value(UserContextKey).(*UserContext); ok {
		return userCtx
	}
	return nil
}

// GetUsername retrieves the username from request context
func GetUsername(ctx context.Context) string {
	if userCtx, ok := ctx.Value(UserContextKey).(*UserContext); ok {
		return userCtx.Username
	}
	return ""
}
