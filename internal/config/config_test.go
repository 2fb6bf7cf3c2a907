package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 15*time.Minute, cfg.SweepPendingAfter)
	assert.Equal(t, "@every 5m", cfg.SweepSchedule)
	assert.True(t, decimal.NewFromInt(10).Equal(cfg.MinimumTransfer()))
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("ENV", "production")
	t.Setenv("SWEEP_PENDING_AFTER", "30m")
	t.Setenv("MIN_TRANSFER_AMOUNT", "25.50")
	t.Setenv("GATEWAY_SECRET_KEY", "sk_test")
	t.Setenv("TRANSFER_RATE_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 30*time.Minute, cfg.SweepPendingAfter)
	assert.Equal(t, "25.5", cfg.MinimumTransfer().String())
	assert.Equal(t, "sk_test", cfg.GatewaySecretKey)
	assert.Equal(t, 3, cfg.TransferRateLimit)
}

func TestConfig_FallbacksOnBadInput(t *testing.T) {
	cfg := Config{MinTransferAmount: "ten", LimitsTimezone: "Mars/Olympus"}

	assert.True(t, decimal.NewFromInt(10).Equal(cfg.MinimumTransfer()))
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestGetEnv(t *testing.T) {
	t.Setenv("LEDGERPAY_TEST_KEY", "value")
	t.Setenv("LEDGERPAY_TEST_INT", "42")

	assert.Equal(t, "value", GetEnv("LEDGERPAY_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("LEDGERPAY_MISSING_KEY", "fallback"))
	assert.Equal(t, 42, GetIntEnv("LEDGERPAY_TEST_INT", 1))
	assert.Equal(t, 1, GetIntEnv("LEDGERPAY_MISSING_INT", 1))
}
