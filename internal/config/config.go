package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Store    StoreConfig
	Forecast ForecastConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Driver string
	Path   string
	URL    string
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "pgx" {
		return d.URL
	}
	return d.Path
}

type SecurityConfig struct {
	JWTSecret         string
	CSRFSecret        string
	SessionDuration   time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	LoginRateLimit    int
	LoginRateWindow   time.Duration
	CSPEnabled        bool
	HSTSEnabled       bool
	AllowedOrigins    []string
}

type StoreConfig struct {
	Backend       string
	SecretsPath   string
	SheetsAPIURL  string
	SheetsTimeout time.Duration
	CacheTTL      time.Duration
}

// ForecastConfig names the three source worksheets and the forecast knobs.
type ForecastConfig struct {
	MedicationsSheet string
	ScheduleSheet    string
	PurchasesSheet   string
	LeadTimeDays     int
	WarnWithinDays   int
	Location         *time.Location
}

type LogConfig struct {
	Level  string
	Format string
	App    string
}

const (
	BackendDatabase = "database"
	BackendSheets   = "sheets"
	BackendMemory   = "memory"
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadForTools is Load without the session secrets, which the admin
// commands never use.
func LoadForTools() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.validateSettings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read() (*Config, error) {
	sessionDuration, err := getDuration("SESSION_DURATION", 12*time.Hour)
	if err != nil {
		return nil, err
	}
	rateLimitWindow, err := getDuration("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	loginRateWindow, err := getDuration("LOGIN_RATE_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	sheetsTimeout, err := getDuration("SHEETS_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getDuration("CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	rateLimitReqs, err := getInt("RATE_LIMIT_REQUESTS", 100)
	if err != nil {
		return nil, err
	}
	loginRateLimit, err := getInt("LOGIN_RATE_LIMIT", 5)
	if err != nil {
		return nil, err
	}
	leadTime, err := getInt("LEAD_TIME_DAYS", 7)
	if err != nil {
		return nil, err
	}
	warnWithin, err := getInt("WARN_WITHIN_DAYS", 14)
	if err != nil {
		return nil, err
	}

	cspEnabled, _ := strconv.ParseBool(getEnv("CSP_ENABLED", "true"))
	hstsEnabled, _ := strconv.ParseBool(getEnv("HSTS_ENABLED", "true"))

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, &ConfigError{fmt.Sprintf("TIMEZONE is not a valid time zone: %v", err)}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DATABASE_DRIVER", "sqlite3"),
			Path:   getEnv("DATABASE_PATH", "./data/portal.db"),
			URL:    getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			CSRFSecret:        getEnv("CSRF_SECRET", ""),
			SessionDuration:   sessionDuration,
			RateLimitRequests: rateLimitReqs,
			RateLimitWindow:   rateLimitWindow,
			LoginRateLimit:    loginRateLimit,
			LoginRateWindow:   loginRateWindow,
			CSPEnabled:        cspEnabled,
			HSTSEnabled:       hstsEnabled,
			AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "")),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("STORE_BACKEND", BackendDatabase)),
			SecretsPath:   getEnv("SECRETS_PATH", ".streamlit/secrets.toml"),
			SheetsAPIURL:  getEnv("SHEETS_API_URL", "https://sheets.googleapis.com"),
			SheetsTimeout: sheetsTimeout,
			CacheTTL:      cacheTTL,
		},
		Forecast: ForecastConfig{
			MedicationsSheet: getEnv("MEDICATIONS_SHEET", "FARMACI"),
			ScheduleSheet:    getEnv("SCHEDULE_SHEET", "POSOLOGIA"),
			PurchasesSheet:   getEnv("PURCHASES_SHEET", "INVENTARIO"),
			LeadTimeDays:     leadTime,
			WarnWithinDays:   warnWithin,
			Location:         loc,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			App:    getEnv("APP_NAME", "supplies-portal"),
		},
	}
	return cfg, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.Security.CSRFSecret == "" {
		return ErrMissingCSRFSecret
	}
	return c.validateSettings()
}

func (c *Config) validateSettings() error {
	switch c.Database.Driver {
	case "sqlite3":
	case "pgx":
		if c.Database.URL == "" {
			return &ConfigError{"DATABASE_URL is required when DATABASE_DRIVER=pgx"}
		}
	default:
		return &ConfigError{fmt.Sprintf("DATABASE_DRIVER must be sqlite3 or pgx, got %q", c.Database.Driver)}
	}

	switch c.Store.Backend {
	case BackendDatabase, BackendSheets, BackendMemory:
	default:
		return &ConfigError{fmt.Sprintf("STORE_BACKEND must be database, sheets or memory, got %q", c.Store.Backend)}
	}

	if c.Forecast.LeadTimeDays < 0 {
		return &ConfigError{"LEAD_TIME_DAYS must be >= 0"}
	}
	if c.Forecast.WarnWithinDays < 1 {
		return &ConfigError{"WARN_WITHIN_DAYS must be >= 1"}
	}
	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ConfigError{fmt.Sprintf("%s must be an integer, got %q", key, raw)}
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ConfigError{fmt.Sprintf("%s must be a duration, got %q", key, raw)}
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var (
	ErrMissingJWTSecret  = &ConfigError{"JWT_SECRET environment variable is required"}
	ErrMissingCSRFSecret = &ConfigError{"CSRF_SECRET environment variable is required"}
)

type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
