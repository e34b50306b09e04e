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

	assert.Equal(t, 30*time.Hour, cfg.Lookback)
	assert.Equal(t, 5*time.Minute, cfg.Baseline)
	assert.Equal(t, 2*time.Minute, cfg.RampUp)
	assert.Equal(t, 6*time.Minute, cfg.MinRuntime)
	assert.Equal(t, 0.1, cfg.FlowIncreaseThreshold)
	assert.Equal(t, []int{7, 30, 90}, cfg.AnomalyWindowDays)
	assert.Equal(t, "irrigation", cfg.TimestreamDatabase)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOOKBACK_HOURS", "48")
	t.Setenv("FLOW_INCREASE_THRESHOLD", "0.25")
	t.Setenv("ANOMALY_WINDOW_DAYS", "14, 60")
	t.Setenv("TIMESTREAM_DATABASE", "irrigation-staging")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, cfg.Lookback)
	assert.Equal(t, 0.25, cfg.FlowIncreaseThreshold)
	assert.Equal(t, []int{14, 60}, cfg.AnomalyWindowDays)
	assert.Equal(t, "irrigation-staging", cfg.TimestreamDatabase)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("LOOKBACK_HOURS", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadWindowList(t *testing.T) {
	t.Setenv("ANOMALY_WINDOW_DAYS", "7,-30")
	_, err := Load()
	assert.Error(t, err)
}
