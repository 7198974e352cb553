package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestCredentialStore(t *testing.T) *CredentialStore {
	t.Helper()
	// MinCost keeps the test fast.
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	return NewCredentialStore(map[string]Credential{
		"mario":  {Name: "Mario Rossi", PasswordHash: string(hash)},
		"Luigi":  {PasswordHash: string(hash)},
		"broken": {Name: "Broken", PasswordHash: "plaintext"},
	})
}

func TestCredentialStore_Verify(t *testing.T) {
	store := newTestCredentialStore(t)

	tests := []struct {
		name        string
		username    string
		password    string
		wantName    string
		expectError bool
	}{
		{name: "Valid login", username: "mario", password: "secret-pass", wantName: "Mario Rossi"},
		{name: "Username is case-insensitive", username: " MARIO ", password: "secret-pass", wantName: "Mario Rossi"},
		{name: "Display name defaults to username", username: "luigi", password: "secret-pass", wantName: "luigi"},
		{name: "Wrong password", username: "mario", password: "nope", expectError: true},
		{name: "Unknown user", username: "peach", password: "secret-pass", expectError: true},
		{name: "Empty username", username: "", password: "secret-pass", expectError: true},
		{name: "Empty password", username: "mario", password: "", expectError: true},
		{name: "Malformed stored hash", username: "broken", password: "plaintext", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := store.Verify(tt.username, tt.password)

			if tt.expectError {
				if err != ErrInvalidCredentials {
					t.Errorf("Expected ErrInvalidCredentials, got %v", err)
				}
				if id != nil {
					t.Error("Expected nil identity on failure")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if id.DisplayName != tt.wantName {
				t.Errorf("Expected display name %q, got %q", tt.wantName, id.DisplayName)
			}
		})
	}
}

func TestCredentialStore_Usernames(t *testing.T) {
	store := newTestCredentialStore(t)

	got := store.Usernames()
	want := []string{"broken", "luigi", "mario"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
		}
	}
}
