package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	var nonce string
	handler := SecurityHeaders(true, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonce = CSPNonce(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	tests := []struct {
		header   string
		contains string
	}{
		{"Content-Security-Policy", "default-src 'self'"},
		{"Content-Security-Policy", "frame-ancestors 'none'"},
		{"Strict-Transport-Security", "max-age=31536000"},
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"Permissions-Policy", "geolocation=()"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			value := w.Header().Get(tt.header)
			if !strings.Contains(value, tt.contains) {
				t.Errorf("Expected %s header to contain '%s', got '%s'", tt.header, tt.contains, value)
			}
		})
	}

	if nonce == "" {
		t.Fatal("Expected CSP nonce in request context")
	}
	if !strings.Contains(w.Header().Get("Content-Security-Policy"), "'nonce-"+nonce+"'") {
		t.Error("Expected CSP header to carry the context nonce")
	}
}

func TestSecurityHeaders_CSPDisabled(t *testing.T) {
	var nonce string
	handler := SecurityHeaders(false, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonce = CSPNonce(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Header().Get("Content-Security-Policy") != "" {
		t.Error("Expected CSP header to be empty when disabled")
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("Expected HSTS header to be empty when disabled")
	}
	if w.Header().Get("X-Frame-Options") == "" {
		t.Error("Expected X-Frame-Options to be set")
	}
	if nonce != "" {
		t.Error("Expected no nonce when CSP is disabled")
	}
}

func TestCSRFProtection_SafeMethods(t *testing.T) {
	csrf := NewCSRFProtection("test-secret")
	defer csrf.Stop()

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/", nil)
			w := httptest.NewRecorder()

			csrf.Middleware(okHandler()).ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200 for safe method %s, got %d", method, w.Code)
			}
		})
	}
}

func TestCSRFProtection_UnsafeMethodsWithoutToken(t *testing.T) {
	csrf := NewCSRFProtection("test-secret")
	defer csrf.Stop()

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/", nil)
			w := httptest.NewRecorder()

			csrf.Middleware(okHandler()).ServeHTTP(w, req)

			if w.Code != http.StatusForbidden {
				t.Errorf("Expected status 403 for unsafe method %s without token, got %d", method, w.Code)
			}
		})
	}
}

func TestCSRFProtection_ValidToken(t *testing.T) {
	csrf := NewCSRFProtection("test-secret")
	defer csrf.Stop()
	handler := csrf.Middleware(okHandler())

	t.Run("Token in header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		req.Header.Set("X-CSRF-Token", csrf.GenerateToken())
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200 with valid token, got %d", w.Code)
		}
	})

	t.Run("Token in form", func(t *testing.T) {
		form := url.Values{"csrf_token": {csrf.GenerateToken()}}
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200 with valid form token, got %d", w.Code)
		}
	})
}

func TestCSRFProtection_OneTimeUse(t *testing.T) {
	csrf := NewCSRFProtection("test-secret")
	defer csrf.Stop()

	token := csrf.GenerateToken()
	if !csrf.ValidateToken(token) {
		t.Fatal("Expected first use to succeed")
	}
	if csrf.ValidateToken(token) {
		t.Error("Expected second use to fail")
	}
}

func TestCSRFProtection_RejectsForgedAndExpired(t *testing.T) {
	csrf := NewCSRFProtection("test-secret")
	defer csrf.Stop()
	other := NewCSRFProtection("other-secret")
	defer other.Stop()

	if csrf.ValidateToken(other.GenerateToken()) {
		t.Error("Expected token signed with another secret to fail")
	}
	if csrf.ValidateToken("garbage") || csrf.ValidateToken("") {
		t.Error("Expected malformed tokens to fail")
	}

	csrf.ttl = -time.Second
	if csrf.ValidateToken(csrf.GenerateToken()) {
		t.Error("Expected expired token to fail")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()
	handler := rl.Middleware(okHandler())

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 3; i++ {
		if code := send("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i+1, code)
		}
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after burst, got %d", code)
	}
	if code := send("10.0.0.2"); code != http.StatusOK {
		t.Errorf("Expected other IP to be unaffected, got %d", code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"Forwarded for", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "127.0.0.1:80", "1.2.3.4"},
		{"Real IP", map[string]string{"X-Real-IP": "5.6.7.8"}, "127.0.0.1:80", "5.6.7.8"},
		{"Remote addr", nil, "9.9.9.9:5555", "9.9.9.9"},
		{"Remote addr without port", nil, "9.9.9.9", "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %s, want %s", got, tt.want)
			}
		})
	}
}
