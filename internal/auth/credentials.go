package auth

import (
	"errors"
	"sort"
	"strings"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Credential is one configured user: a display name and a bcrypt hash.
type Credential struct {
	Name         string
	PasswordHash string
}

// Identity is the authenticated user.
type Identity struct {
	Username    string `json:"username"`
	DisplayName string `json:"name"`
}

// CredentialStore verifies logins against a fixed set of users. Usernames
// are matched case-insensitively.
type CredentialStore struct {
	users map[string]Credential
}

func NewCredentialStore(users map[string]Credential) *CredentialStore {
	normalized := make(map[string]Credential, len(users))
	for username, c := range users {
		key := normalizeUsername(username)
		if c.Name == "" {
			c.Name = key
		}
		normalized[key] = c
	}
	return &CredentialStore{users: normalized}
}

// Verify returns the identity for a valid username/password pair.
// Unknown users, empty input and malformed hashes all yield
// ErrInvalidCredentials.
func (s *CredentialStore) Verify(username, password string) (*Identity, error) {
	key := normalizeUsername(username)
	if key == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	c, ok := s.users[key]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(c.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &Identity{Username: key, DisplayName: c.Name}, nil
}

// Usernames lists the configured users in sorted order.
func (s *CredentialStore) Usernames() []string {
	names := make([]string, 0, len(s.users))
	for u := range s.users {
		names = append(names, u)
	}
	sort.Strings(names)
	return names
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
