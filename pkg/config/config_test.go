package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 20.0, c.Cleaning.SpeedLimitKnots)
	assert.Equal(t, 50.0, c.Cleaning.GroundAltitudeToleranceFt)
	assert.Equal(t, 3, c.Cleaning.MinPoints)
	assert.Equal(t, "local", c.Detection.Mode)
	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)
	assert.Equal(t, []string{"kafka", "alertfeed"}, c.Output.Sinks)
	assert.Equal(t, 10*time.Second, c.Server.ReadTimeout)
	assert.True(t, c.Output.Dedup.Enabled)
}

func TestParseKeepsExplicitValues(t *testing.T) {
	c, err := Parse([]byte(`
environment: prod
cleaning:
  speed_limit_knots: 35
  min_points: 10
output:
  sinks: [kafka]
  dedup:
    enabled: false
`))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 35.0, c.Cleaning.SpeedLimitKnots)
	assert.Equal(t, 10, c.Cleaning.MinPoints)
	assert.Equal(t, []string{"kafka"}, c.Output.Sinks)
	assert.False(t, c.Output.Dedup.Enabled)
}

func TestValidateRejectsBadCleaning(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero speed limit", "cleaning:\n  speed_limit_knots: 0\n"},
		{"negative tolerance", "cleaning:\n  ground_altitude_tolerance_ft: -1\n"},
		{"zero min points", "cleaning:\n  min_points: 0\n"},
		{"remote without url", "detection:\n  mode: remote\n"},
		{"unknown sink", "output:\n  sinks: [stdout]\n"},
		{"clickhouse sink disabled", "output:\n  sinks: [clickhouse]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Error(t, c.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)

	env := map[string]string{
		"KAFKA_BROKERS":       "a:9092,b:9092",
		"KAFKA_PAIRS_TOPIC":   "pairs",
		"LOG_LEVEL":           "DEBUG",
		"DETECTION_MODE":      "remote",
		"REMOTE_DETECTOR_URL": "http://detector:8000",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "pairs", c.Kafka.PairsTopic)
	assert.Equal(t, "aria.airborne_events", c.Kafka.EventsTopic)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, "remote", c.Detection.Mode)
	assert.NoError(t, c.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\nserver:\n  port: 9090\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, 9090, c.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
