package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 260, c.Indicators.ZWindow)
	assert.Equal(t, 40, c.Indicators.BreadthWindow)
	assert.Equal(t, -1.75, c.Policy.LowThreshold)
	assert.Equal(t, 0.35, c.Policy.CashMax)
	assert.Equal(t, Weights{RiskA: 0.55, RiskB: 0.25, RiskC: 0.05, Cash: 0.15}, c.Policy.Low)
	assert.True(t, c.Tilt.Enabled)
	assert.Equal(t, 4, c.Simulation.Cadence)
	assert.Equal(t, 12, c.Simulation.Warmup)
	assert.Equal(t, 15*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), c.StartDate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeYAML(t, `
environment: production
tilt:
  enabled: false
policy:
  low_threshold: -1.5
  high_threshold: 2.0
costs:
  preset: conservative
data:
  source: clickhouse
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.False(t, c.Tilt.Enabled)
	assert.Equal(t, -1.5, c.Policy.LowThreshold)
	assert.Equal(t, 2.0, c.Policy.HighThreshold)
	assert.Equal(t, "conservative", c.Costs.Preset)
	// untouched sections keep their defaults
	assert.Equal(t, 0.08, c.Simulation.MinChange)
	assert.Equal(t, "mhi_weekly", c.Data.Table)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"inverted thresholds", "policy:\n  low_threshold: 1\n  high_threshold: -1\n"},
		{"template sum", "policy:\n  base:\n    risk_a: 0.9\n"},
		{"unknown preset", "costs:\n  preset: cheap\n"},
		{"bad source", "data:\n  source: s3\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\n"},
		{"bad start", "data:\n  start: yesterday\n"},
		{"zero cadence", "simulation:\n  cadence: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeYAML(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MHI_ENV":           "staging",
		"MHI_SERVER_PORT":   "9090",
		"MHI_KAFKA_BROKERS": "k1:9092,k2:9092",
		"MHI_REDIS_ENABLED": "true",
		"MHI_DATA_CSV_PATH": "/srv/weekly.csv",
	}
	c := Default()
	require.NoError(t, c.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "/srv/weekly.csv", c.Data.CSVPath)
	require.NoError(t, c.Validate())

	bad := Default()
	err := bad.applyEnv(func(k string) (string, bool) {
		if k == "MHI_SERVER_PORT" {
			return "eighty", true
		}
		return "", false
	})
	assert.Error(t, err)
}
