package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL connection settings for the local storage backend.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// APIConfig describes how the client reaches the vault backend.
type APIConfig struct {
	BaseURL    string
	TimeoutSec int
}

// Timeout returns the per-request HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// UIConfig holds the timings and sizes used by the controllers.
type UIConfig struct {
	PageSize          int
	RefetchDelayMs    int
	SearchDebounceMs  int
	RedirectDelayMs   int
	ExpiringSoonHours int
	DashboardURL      string
}

func (c UIConfig) RefetchDelay() time.Duration {
	return time.Duration(c.RefetchDelayMs) * time.Millisecond
}

func (c UIConfig) SearchDebounce() time.Duration {
	return time.Duration(c.SearchDebounceMs) * time.Millisecond
}

func (c UIConfig) RedirectDelay() time.Duration {
	return time.Duration(c.RedirectDelayMs) * time.Millisecond
}

func (c UIConfig) ExpiringSoon() time.Duration {
	return time.Duration(c.ExpiringSoonHours) * time.Hour
}

// OAuthConfig configures the identity provider. The refresh token is an
// operator identity for vaultctl; browsers sign in through the
// authorization-code endpoints instead.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	// RedirectURL overrides the callback derived from the request host.
	RedirectURL  string
	RefreshToken string
	Scopes       []string
}

// Enabled reports whether enough settings are present to mint tokens.
func (c OAuthConfig) Enabled() bool {
	return c.TokenURL != "" && c.ClientID != "" && c.RefreshToken != ""
}

// CodeFlowEnabled reports whether browsers can sign in with the
// authorization-code grant.
func (c OAuthConfig) CodeFlowEnabled() bool {
	return c.AuthURL != "" && c.TokenURL != "" && c.ClientID != ""
}

// RateLimitConfig bounds how often one browser may trigger backend mutations.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost     string
	Port        string
	StoreDriver string
	// CookieSecure marks the browser session cookie Secure.
	CookieSecure bool
	API          APIConfig
	UI           UIConfig
	OAuth        OAuthConfig
	RateLimit    RateLimitConfig
	Database     DatabaseConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		AppHost:      getEnv("APP_HOST", "localhost:8080"),
		Port:         getEnv("PORT", "8080"),
		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", "memory")),
		CookieSecure: getEnvBool("COOKIE_SECURE", false),
		API: APIConfig{
			BaseURL:    strings.TrimRight(getEnv("VAULT_API_BASE_URL", "http://localhost:5000/api"), "/"),
			TimeoutSec: getEnvInt("VAULT_HTTP_TIMEOUT_SEC", 15),
		},
		UI: UIConfig{
			PageSize:          getEnvInt("VAULT_PAGE_SIZE", 20),
			RefetchDelayMs:    getEnvInt("VAULT_REFETCH_DELAY_MS", 500),
			SearchDebounceMs:  getEnvInt("VAULT_SEARCH_DEBOUNCE_MS", 500),
			RedirectDelayMs:   getEnvInt("VAULT_REDIRECT_DELAY_MS", 2000),
			ExpiringSoonHours: getEnvInt("VAULT_EXPIRING_SOON_HOURS", 24),
			DashboardURL:      getEnv("VAULT_DASHBOARD_URL", "/documents"),
		},
		OAuth: OAuthConfig{
			ClientID:     getEnv("OAUTH_CLIENT_ID", ""),
			ClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
			AuthURL:      getEnv("OAUTH_AUTH_URL", ""),
			TokenURL:     getEnv("OAUTH_TOKEN_URL", ""),
			RedirectURL:  getEnv("OAUTH_REDIRECT_URL", ""),
			RefreshToken: getEnv("OAUTH_REFRESH_TOKEN", ""),
			Scopes:       getEnvList("OAUTH_SCOPES", []string{"openid", "email", "profile"}),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvInt("VAULT_RATE_LIMIT_RPS", 5),
			Burst:             getEnvInt("VAULT_RATE_LIMIT_BURST", 10),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
