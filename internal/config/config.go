package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port        string
	Env         string
	StoreDriver string
	DatabaseURL string
	BcryptCost  int
	CORSOrigins []string

	Session      SessionConfig
	PrimaryAdmin PrimaryAdminConfig
}

// SessionConfig configures the signed session cookie.
type SessionConfig struct {
	Secret     string
	Issuer     string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// PrimaryAdminConfig names the protected admin account and how to bootstrap it.
type PrimaryAdminConfig struct {
	Email    string
	Username string
	Password string
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:        fallback(os.Getenv("PORT"), "8080"),
		Env:         strings.ToLower(fallback(os.Getenv("APP_ENV"), "development")),
		StoreDriver: strings.ToLower(fallback(os.Getenv("STORE_DRIVER"), DriverPostgres)),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		BcryptCost:  positiveInt(os.Getenv("BCRYPT_COST"), 12),
		CORSOrigins: parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		Session: SessionConfig{
			Secret:     strings.TrimSpace(os.Getenv("SESSION_SECRET")),
			Issuer:     fallback(os.Getenv("SESSION_ISSUER"), "portal-backend"),
			TTL:        time.Duration(positiveInt(os.Getenv("SESSION_TTL_MINUTES"), 24*60)) * time.Minute,
			CookieName: fallback(os.Getenv("SESSION_COOKIE_NAME"), "portal_session"),
		},
		PrimaryAdmin: PrimaryAdminConfig{
			Email:    strings.ToLower(strings.TrimSpace(os.Getenv("PRIMARY_ADMIN_EMAIL"))),
			Username: fallback(os.Getenv("PRIMARY_ADMIN_USERNAME"), "admin"),
			Password: os.Getenv("PRIMARY_ADMIN_PASSWORD"),
		},
	}

	secure, err := parseBool(os.Getenv("SESSION_COOKIE_SECURE"), cfg.Env == "production")
	if err != nil {
		return Config{}, fmt.Errorf("SESSION_COOKIE_SECURE: %w", err)
	}
	cfg.Session.Secure = secure

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.Session.Secret == "" {
		return Config{}, errors.New("SESSION_SECRET is required")
	}
	if cfg.Env == "production" && slices.Contains(cfg.CORSOrigins, "*") {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS must list explicit origins in production")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(value string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseBool(value string, def bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	return strconv.ParseBool(value)
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
