package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		expectError bool
	}{
		{name: "Valid password", password: "validPassword123"},
		{name: "Minimum length password", password: "12345678"},
		{name: "Too short password", password: "1234567", expectError: true},
		{name: "Empty password", password: "", expectError: true},
		{name: "Eight runes, more bytes", password: "àèìòùàèì"},
		{name: "Seven runes, more bytes", password: "àèìòùàè", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)

			if tt.expectError {
				if !errors.Is(err, ErrWeakPassword) {
					t.Errorf("Expected ErrWeakPassword, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if !strings.HasPrefix(hash, "$2a$") && !strings.HasPrefix(hash, "$2b$") {
				t.Error("Hash doesn't appear to be bcrypt format")
			}
			cost, err := bcrypt.Cost([]byte(hash))
			if err != nil || cost != bcryptCost {
				t.Errorf("Expected cost %d, got %d (%v)", bcryptCost, cost, err)
			}
		})
	}
}

func TestVerifyPassword(t *testing.T) {
	password := "testPassword123"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	tests := []struct {
		name        string
		hash        string
		password    string
		expectError bool
	}{
		{name: "Correct password", hash: hash, password: password},
		{name: "Wrong password", hash: hash, password: "wrongPassword", expectError: true},
		{name: "Empty password", hash: hash, password: "", expectError: true},
		{name: "Empty hash", hash: "", password: password, expectError: true},
		{name: "Malformed hash", hash: "not-a-bcrypt-hash", password: password, expectError: true},
		{name: "Case sensitive", hash: hash, password: "TESTPASSWORD123", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyPassword(tt.hash, tt.password)

			if tt.expectError && err != ErrInvalidPassword {
				t.Errorf("Expected ErrInvalidPassword, got %v", err)
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestGenerateSecret(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		secret, err := GenerateSecret()
		if err != nil {
			t.Fatalf("Failed to generate secret: %v", err)
		}
		raw, err := base64.URLEncoding.DecodeString(secret)
		if err != nil || len(raw) != 32 {
			t.Errorf("Secret is not 32 base64url bytes: %q", secret)
		}
		if seen[secret] {
			t.Error("Generated duplicate secret")
		}
		seen[secret] = true
	}
}
