package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 0, cfg.LogLevel)
	assert.Empty(t, cfg.Database.SQLitePath)
	assert.Equal(t, "rbsite-dev-secret", cfg.JWT.Secret)
}

func TestNewFromEnvironment(t *testing.T) {
	t.Setenv("RBSITE_ADDR", ":9090")
	t.Setenv("RBSITE_LOG_LEVEL", "-1")
	t.Setenv("RBSITE_DATABASE_SQLITE_PATH", "/var/lib/rbsite/rbsite.db")
	t.Setenv("RBSITE_ADMIN_EMAIL", "admin@recklessbear.co.za")
	t.Setenv("RBSITE_ADMIN_PASSWORD_HASH", "$2a$10$fakehash")
	t.Setenv("RBSITE_JWT_SECRET", "prod-secret")
	t.Setenv("RBSITE_COMPETITION_COMPLETION_WEBHOOK_URL", "https://hooks.example.com/complete")
	t.Setenv("RBSITE_TRACKING_LOOKUP_URL", "https://hooks.example.com/track")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, -1, cfg.LogLevel)
	assert.Equal(t, "/var/lib/rbsite/rbsite.db", cfg.Database.SQLitePath)
	assert.Equal(t, "admin@recklessbear.co.za", cfg.Admin.Email)
	assert.Equal(t, "$2a$10$fakehash", cfg.Admin.PasswordHash)
	assert.Equal(t, "prod-secret", cfg.JWT.Secret)
	assert.Equal(t, "https://hooks.example.com/complete", cfg.Competition.CompletionWebhookURL)
	assert.Equal(t, "https://hooks.example.com/track", cfg.Tracking.LookupURL)
}
