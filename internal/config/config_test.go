package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("DB_DSN", "postgres://localhost/cryptoprofit")
	t.Setenv("JWT_ISSUER", "cryptoprofit")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_TTL", "24h")
	t.Setenv("INTERNAL_API_TOKEN", "internal")
	t.Setenv("WS_ORIGIN", "*")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, "development", cfg.AppMode)
	assert.Equal(t, "USDT.TRC20", cfg.GatewayCurrency)
	assert.Equal(t, "0.10", cfg.CommissionRate)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "5s", cfg.StoreTimeout.String())
	assert.Zero(t, cfg.AccrualInterval)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DSN", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
}

func TestLoadRejectsBadMode(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_MODE", "staging")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadProductionRequiresIPNSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_MODE", "production")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "IPN_SECRET")

	t.Setenv("IPN_SECRET", "ipn")
	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, "production", cfg.AppMode)
}
