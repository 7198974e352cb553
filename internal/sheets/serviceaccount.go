// Package sheets implements tabular.Store on top of the Google Sheets v4
// REST API, authenticating as a service account.
package sheets

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"supplies-portal/internal/platform/httpclient"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ScopeSpreadsheets = "https://www.googleapis.com/auth/spreadsheets"
	defaultTokenURI   = "https://oauth2.googleapis.com/token"
	jwtBearerGrant    = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionLifetime = time.Hour
	refreshSkew       = time.Minute
)

var (
	ErrInvalidServiceAccount = errors.New("service account json must be valid JSON with client_email and private_key")
)

// ServiceAccount is the subset of a Google service account key file we use.
type ServiceAccount struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

// ParseServiceAccount decodes a service account key file.
func ParseServiceAccount(raw string) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal([]byte(raw), &sa); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServiceAccount, err)
	}
	if strings.TrimSpace(sa.ClientEmail) == "" || strings.TrimSpace(sa.PrivateKey) == "" {
		return nil, ErrInvalidServiceAccount
	}
	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}
	return &sa, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// TokenSource exchanges signed JWT assertions for OAuth access tokens and
// caches them until shortly before they expire.
type TokenSource struct {
	account *ServiceAccount
	key     *rsa.PrivateKey
	http    *httpclient.Client
	scopes  []string
	now     func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewTokenSource(account *ServiceAccount, client *httpclient.Client, scopes ...string) (*TokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account private key: %w", err)
	}
	if len(scopes) == 0 {
		scopes = []string{ScopeSpreadsheets}
	}
	return &TokenSource{
		account: account,
		key:     key,
		http:    client,
		scopes:  scopes,
		now:     time.Now,
	}, nil
}

// Token returns a valid access token, fetching a new one when needed.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	if ts.token != "" && now.Before(ts.expiry.Add(-refreshSkew)) {
		return ts.token, nil
	}

	assertion, err := ts.assertion(now)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	var resp tokenResponse
	if err := ts.http.PostForm(ctx, ts.account.TokenURI, form, &resp); err != nil {
		return "", fmt.Errorf("failed to fetch access token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("token endpoint returned no access_token")
	}

	ts.token = resp.AccessToken
	ts.expiry = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	return ts.token, nil
}

func (ts *TokenSource) assertion(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   ts.account.ClientEmail,
		"scope": strings.Join(ts.scopes, " "),
		"aud":   ts.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if ts.account.PrivateKeyID != "" {
		token.Header["kid"] = ts.account.PrivateKeyID
	}
	signed, err := token.SignedString(ts.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token assertion: %w", err)
	}
	return signed, nil
}
