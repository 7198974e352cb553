package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
	ErrRevokedToken = errors.New("revoked token")
)

// Claims are the session token contents
type Claims struct {
	Username    string `json:"username"` // lower-cased login name
	DisplayName string `json:"name"`     // shown in the navigation
	jwt.RegisteredClaims
}

// JWTManager issues and validates session tokens. Logged-out token ids are
// remembered until their natural expiry so they cannot be replayed.
type JWTManager struct {
	secret          []byte
	sessionDuration time.Duration
	now             func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // token id -> expiry
}

// NewJWTManager creates a manager signing with the given HMAC secret
func NewJWTManager(secret string, sessionDuration time.Duration) *JWTManager {
	return &JWTManager{
		secret:          []byte(secret),
		sessionDuration: sessionDuration,
		now:             time.Now,
		revoked:         make(map[string]time.Time),
	}
}

// GenerateToken creates a new JWT token for an authenticated identity
func (m *JWTManager) GenerateToken(username, displayName string) (string, error) {
	now := m.now()
	claims := Claims{
		Username:    username,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(), // revocation key
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.sessionDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken validates a JWT token and returns the claims
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		// Callers distinguish expiry so refresh can still succeed
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}

	// Reject tokens that were logged out
	if m.isRevoked(claims.ID) {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// RefreshToken issues a new token for the same identity and revokes the old
// one. Expired tokens may be refreshed; revoked ones may not.
func (m *JWTManager) RefreshToken(tokenString string) (string, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil && !errors.Is(err, ErrExpiredToken) {
		return "", err
	}

	// Expired tokens fail validation, so read their claims after checking the signature only.
	if claims == nil {
		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return m.secret, nil
		}, jwt.WithoutClaimsValidation(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return "", ErrInvalidToken
		}
		var ok bool
		claims, ok = token.Claims.(*Claims)
		if !ok || claims.Username == "" {
			return "", ErrInvalidToken
		}
		if m.isRevoked(claims.ID) {
			return "", ErrRevokedToken
		}
	}

	// Generate new token with same identity but new expiration
	newToken, err := m.GenerateToken(claims.Username, claims.DisplayName)
	if err != nil {
		return "", err
	}
	m.Revoke(claims)
	return newToken, nil
}

// Revoke marks the token id as logged out until the token would expire.
func (m *JWTManager) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	expiry := m.now().Add(m.sessionDuration)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Prune ids whose tokens have expired anyway
	now := m.now()
	for id, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, id)
		}
	}
	m.revoked[claims.ID] = expiry
}

func (m *JWTManager) isRevoked(id string) bool {
	if id == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[id]
	return ok
}

// SessionDuration returns the configured session duration
func (m *JWTManager) SessionDuration() time.Duration {
	return m.sessionDuration
}
