package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 2*time.Hour)

	tests := []struct {
		name        string
		username    string
		displayName string
	}{
		{name: "Valid user", username: "mario", displayName: "Mario Rossi"},
		{name: "User with special characters", username: "user@example.com", displayName: "Zoë"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := manager.GenerateToken(tt.username, tt.displayName)
			if err != nil {
				t.Fatalf("Failed to generate token: %v", err)
			}

			claims, err := manager.ValidateToken(token)
			if err != nil {
				t.Fatalf("Failed to validate token: %v", err)
			}
			if claims.Username != tt.username || claims.DisplayName != tt.displayName {
				t.Errorf("Unexpected claims: %+v", claims)
			}
			if claims.ID == "" {
				t.Error("Expected token id to be set")
			}
			if claims.ExpiresAt == nil || claims.IssuedAt == nil || claims.NotBefore == nil {
				t.Error("Expected registered time claims to be set")
			}
		})
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	manager := NewJWTManager("test-secret-key", 2*time.Hour)
	other := NewJWTManager("other-secret", 2*time.Hour)

	foreign, err := other.GenerateToken("mario", "Mario")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "Empty token", token: ""},
		{name: "Invalid token format", token: "not.a.valid.token"},
		{name: "Malformed token", token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid"},
		{name: "Wrong secret", token: foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := manager.ValidateToken(tt.token)
			if err != ErrInvalidToken {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
			if claims != nil {
				t.Error("Expected nil claims with error")
			}
		})
	}
}

func TestValidateTokenExpired(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	start := time.Now()
	manager.now = func() time.Time { return start }

	token, err := manager.GenerateToken("mario", "Mario")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	manager.now = func() time.Time { return start.Add(2 * time.Hour) }
	if _, err := manager.ValidateToken(token); err != ErrExpiredToken {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestRevokeToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.GenerateToken("mario", "Mario")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}

	manager.Revoke(claims)

	if _, err := manager.ValidateToken(token); err != ErrRevokedToken {
		t.Errorf("Expected ErrRevokedToken after logout, got %v", err)
	}
	if _, err := manager.RefreshToken(token); err != ErrRevokedToken {
		t.Errorf("Expected revoked token to be unrefreshable, got %v", err)
	}

	// A fresh login is unaffected.
	again, err := manager.GenerateToken("mario", "Mario")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if _, err := manager.ValidateToken(again); err != nil {
		t.Errorf("Expected new token to be valid, got %v", err)
	}
}

func TestRevokePrunesExpiredEntries(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	start := time.Now()
	manager.now = func() time.Time { return start }

	manager.Revoke(&Claims{RegisteredClaims: jwt.RegisteredClaims{ID: "old", ExpiresAt: jwt.NewNumericDate(start.Add(time.Minute))}})

	manager.now = func() time.Time { return start.Add(2 * time.Minute) }
	manager.Revoke(&Claims{RegisteredClaims: jwt.RegisteredClaims{ID: "new"}})

	if _, ok := manager.revoked["old"]; ok {
		t.Error("Expected expired revocation to be pruned")
	}
	if _, ok := manager.revoked["new"]; !ok {
		t.Error("Expected new revocation to be recorded")
	}
}

func TestRefreshToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 2*time.Hour)

	original, err := manager.GenerateToken("mario", "Mario Rossi")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	refreshed, err := manager.RefreshToken(original)
	if err != nil {
		t.Fatalf("Failed to refresh token: %v", err)
	}
	if refreshed == original {
		t.Error("Refreshed token should differ from the original")
	}

	claims, err := manager.ValidateToken(refreshed)
	if err != nil {
		t.Fatalf("Failed to validate refreshed token: %v", err)
	}
	if claims.Username != "mario" || claims.DisplayName != "Mario Rossi" {
		t.Errorf("Unexpected claims: %+v", claims)
	}

	if _, err := manager.ValidateToken(original); err != ErrRevokedToken {
		t.Errorf("Expected original token to be revoked, got %v", err)
	}
}

func TestRefreshTokenExpired(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	start := time.Now()
	manager.now = func() time.Time { return start }

	token, err := manager.GenerateToken("mario", "Mario")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	manager.now = func() time.Time { return start.Add(3 * time.Hour) }
	refreshed, err := manager.RefreshToken(token)
	if err != nil {
		t.Fatalf("Refresh should work for expired tokens: %v", err)
	}
	if _, err := manager.ValidateToken(refreshed); err != nil {
		t.Errorf("Expected refreshed token to be valid, got %v", err)
	}
}

func TestRefreshTokenInvalid(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	other := NewJWTManager("other-secret", time.Hour)
	foreign, _ := other.GenerateToken("mario", "Mario")

	for _, token := range []string{"", "not.a.valid.token", foreign} {
		newToken, err := manager.RefreshToken(token)
		if err == nil {
			t.Errorf("Expected error for token %q", token)
		}
		if newToken != "" {
			t.Error("Expected empty token on error")
		}
	}
}

func TestTokenSigningMethod(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.GenerateToken("mario", "Mario")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}
	if parsed.Method != jwt.SigningMethodHS256 {
		t.Errorf("Expected signing method HS256, got %v", parsed.Method)
	}
}

func TestConcurrentTokenOperations(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	const goroutines = 50

	done := make(chan bool, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			token, err := manager.GenerateToken("user", "User")
			if err != nil {
				t.Errorf("Failed to generate token: %v", err)
			}
			claims, err := manager.ValidateToken(token)
			if err != nil {
				t.Errorf("Failed to validate token: %v", err)
			} else {
				manager.Revoke(claims)
			}
			done <- true
		}()
	}

	for i := 0; i < goroutines; i++ {
		<-done
	}
}

func BenchmarkValidateToken(b *testing.B) {
	manager := NewJWTManager("benchmark-secret", 2*time.Hour)
	token, _ := manager.GenerateToken("bench", "Bench")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = manager.ValidateToken(token)
	}
}
