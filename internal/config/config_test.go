package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.ServerPort)
	assert.Equal(t, 3, cfg.NotifyMaxAttempts)
	assert.Equal(t, time.Second, cfg.NotifyBackoffInitial)
	assert.Equal(t, 90, cfg.ConfidenceScoreHigh)
	assert.Equal(t, 0.72, cfg.RerouteConfidenceMedium)
	assert.Equal(t, 50, cfg.DecisionLogView)
	assert.Empty(t, cfg.MaintenanceForwardURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DEBUG", "true")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("NOTIFY_BACKOFF_INITIAL", "250ms")
	t.Setenv("REROUTE_CONFIDENCE_HIGH", "0.95")
	t.Setenv("NOTIFY_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("REROUTE_FORWARD_URL", "http://n8n.local/webhook/reroute")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 250*time.Millisecond, cfg.NotifyBackoffInitial)
	assert.Equal(t, 0.95, cfg.RerouteConfidenceHigh)
	assert.Equal(t, 3, cfg.NotifyMaxAttempts)
	assert.Equal(t, "http://n8n.local/webhook/reroute", cfg.RerouteForwardURL)
}
