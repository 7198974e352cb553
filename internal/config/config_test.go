package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("CSRF_SECRET", "csrf-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Security.SessionDuration != 12*time.Hour {
		t.Errorf("SessionDuration = %v, want 12h", cfg.Security.SessionDuration)
	}
	if cfg.Store.Backend != BackendDatabase || cfg.Store.CacheTTL != 30*time.Second {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Forecast.MedicationsSheet != "FARMACI" || cfg.Forecast.ScheduleSheet != "POSOLOGIA" || cfg.Forecast.PurchasesSheet != "INVENTARIO" {
		t.Errorf("unexpected worksheet names: %+v", cfg.Forecast)
	}
	if cfg.Forecast.LeadTimeDays != 7 || cfg.Forecast.WarnWithinDays != 14 {
		t.Errorf("unexpected forecast knobs: %+v", cfg.Forecast)
	}
	if cfg.Forecast.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Forecast.Location)
	}
	if cfg.Database.DSN() != "./data/portal.db" {
		t.Errorf("DSN = %s", cfg.Database.DSN())
	}
}

func TestLoadForTools_SkipsSessionSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CSRF_SECRET", "")

	cfg, err := LoadForTools()
	if err != nil {
		t.Fatalf("LoadForTools() error = %v", err)
	}
	if cfg.Store.Backend != BackendDatabase {
		t.Errorf("Backend = %s, want %s", cfg.Store.Backend, BackendDatabase)
	}

	t.Setenv("STORE_BACKEND", "excel")
	if _, err := LoadForTools(); err == nil {
		t.Error("LoadForTools() should still validate settings")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}, "JWT_SECRET"},
		{"missing csrf secret", map[string]string{"CSRF_SECRET": ""}, "CSRF_SECRET"},
		{"negative lead time", map[string]string{"LEAD_TIME_DAYS": "-1"}, "LEAD_TIME_DAYS"},
		{"zero warn window", map[string]string{"WARN_WITHIN_DAYS": "0"}, "WARN_WITHIN_DAYS"},
		{"bad integer", map[string]string{"LEAD_TIME_DAYS": "seven"}, "integer"},
		{"bad duration", map[string]string{"CACHE_TTL": "soon"}, "duration"},
		{"bad backend", map[string]string{"STORE_BACKEND": "excel"}, "STORE_BACKEND"},
		{"pgx without url", map[string]string{"DATABASE_DRIVER": "pgx"}, "DATABASE_URL"},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func writeSecrets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}
	return path
}

func TestLoadSecrets(t *testing.T) {
	path := writeSecrets(t, `
[auth.credentials.usernames.mario]
name = "Mario Rossi"
password = "$2a$12$abc"

[auth.credentials.usernames.luigi]
password = "$2a$12$def"

[google_sheets]
gcp_service_account_json = '''{"client_email":"a@b","private_key":"k"}'''
sheet_id = "sheet-123"
worksheet = " REGISTRO "
`)

	s, err := LoadSecrets(path, true)
	if err != nil {
		t.Fatalf("LoadSecrets() error = %v", err)
	}
	if len(s.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(s.Users))
	}
	if s.Users["mario"].Name != "Mario Rossi" || s.Users["mario"].Password != "$2a$12$abc" {
		t.Errorf("unexpected user: %+v", s.Users["mario"])
	}
	if s.Users["luigi"].Name != "luigi" {
		t.Errorf("display name should default to username, got %q", s.Users["luigi"].Name)
	}
	if s.GoogleSheets.SheetID != "sheet-123" || s.GoogleSheets.Worksheet != "REGISTRO" {
		t.Errorf("unexpected google_sheets: %+v", s.GoogleSheets)
	}
}

func TestLoadSecrets_MissingSections(t *testing.T) {
	path := writeSecrets(t, `title = "empty"`)

	_, err := LoadSecrets(path, true)
	if err == nil || err.Error() != "missing secrets: auth, google_sheets" {
		t.Errorf("unexpected error: %v", err)
	}

	path = writeSecrets(t, `
[auth.credentials.usernames.mario]
password = "x"
`)
	if _, err := LoadSecrets(path, false); err != nil {
		t.Errorf("google_sheets should be optional, got %v", err)
	}
	if _, err := LoadSecrets(path, true); err == nil {
		t.Error("expected error when google_sheets is required")
	}
}

func TestLoadSecrets_FileNotFound(t *testing.T) {
	_, err := LoadSecrets(filepath.Join(t.TempDir(), "nope.toml"), false)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected *ConfigError, got %v", err)
	}
}
