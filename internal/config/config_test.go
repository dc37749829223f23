package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "APP_ENV", "STORE_DRIVER", "DATABASE_URL", "BCRYPT_COST", "CORS_ALLOWED_ORIGINS",
	"SESSION_SECRET", "SESSION_ISSUER", "SESSION_TTL_MINUTES", "SESSION_COOKIE_NAME", "SESSION_COOKIE_SECURE",
	"PRIMARY_ADMIN_EMAIL", "PRIMARY_ADMIN_USERNAME", "PRIMARY_ADMIN_PASSWORD",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/portal")
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "portal_session", cfg.Session.CookieName)
	assert.False(t, cfg.Session.Secure)
	assert.Equal(t, "admin", cfg.PrimaryAdmin.Username)
	assert.Empty(t, cfg.PrimaryAdmin.Email)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("SESSION_TTL_MINUTES", "30")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("PRIMARY_ADMIN_EMAIL", " Root@Example.com ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddress())
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.True(t, cfg.Session.Secure, "production defaults to secure cookies")
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "root@example.com", cfg.PrimaryAdmin.Email)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres needs url", map[string]string{"SESSION_SECRET": "x"}, "DATABASE_URL is required"},
		{"secret required", map[string]string{"STORE_DRIVER": "memory"}, "SESSION_SECRET is required"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo", "SESSION_SECRET": "x"}, `unknown STORE_DRIVER "mongo"`},
		{"wildcard cors in production", map[string]string{"STORE_DRIVER": "memory", "SESSION_SECRET": "x", "APP_ENV": "production"}, "CORS_ALLOWED_ORIGINS must list explicit origins"},
		{"bad secure flag", map[string]string{"STORE_DRIVER": "memory", "SESSION_SECRET": "x", "SESSION_COOKIE_SECURE": "maybe"}, "SESSION_COOKIE_SECURE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
