package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sla-service", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 0.8, cfg.SLA.NearDueRatio)
	assert.Equal(t, 30, cfg.SLA.RecalibrationWindowDays)
	assert.Equal(t, 720.0, cfg.SLA.OutlierCutoffHours)
	assert.Equal(t, 1.15, cfg.SLA.SafetyMargin)
	assert.Equal(t, 2, cfg.SLA.MinSamples)
	assert.Equal(t, []string{"Aguardando Cliente", "Pausado"}, cfg.SLA.PausedStatuses)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SLA_PAUSED_STATUSES", "Waiting, On Hold ,")
	t.Setenv("SLA_NEAR_DUE_RATIO", "0.9")
	t.Setenv("SLA_CACHE_TTL_SECONDS", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"Waiting", "On Hold"}, cfg.SLA.PausedStatuses)
	assert.Equal(t, 0.9, cfg.SLA.NearDueRatio)
	assert.Equal(t, 60, cfg.SLA.CacheTTLSeconds)
}

func TestLoadRejectsBadRatio(t *testing.T) {
	t.Setenv("SLA_NEAR_DUE_RATIO", "1.5")

	_, err := Load()
	require.Error(t, err)
}
