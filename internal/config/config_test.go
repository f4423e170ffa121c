// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PRIMARY_CURRENCY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "usd", cfg.Payment.PrimaryCurrency)
	assert.Equal(t, 15*time.Minute, cfg.Inventory.HoldWindow())
	assert.Equal(t, 30*time.Minute, cfg.Payment.RequestTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.DomainActions.IPNExpiry())
	assert.Equal(t, 5, cfg.DomainActions.IPNMaxAttempts)
	assert.True(t, cfg.DomainActions.Enabled)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("INVENTORY_HOLD_MINUTES", "5")
	t.Setenv("PAYMENT_REQUEST_TTL_MINUTES", "45")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DOMAIN_ACTION_WORKER_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Inventory.HoldWindow())
	assert.Equal(t, 45*time.Minute, cfg.Payment.RequestTTL())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowOrigins)
	assert.False(t, cfg.DomainActions.Enabled)
}

func TestValidateRejectsDefaultSecretsInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
