package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig() Config {
	cfg := Default()
	cfg.Webhooks = Webhooks{
		Console:     "https://hooks.example/console",
		Data:        "https://hooks.example/data",
		Screenshots: "https://hooks.example/screenshots",
	}
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 2, cfg.Threshold)
	assert.Equal(t, 24*time.Hour, cfg.Retention.Duration)
	assert.Equal(t, 200, cfg.LedgerCapacity)
	assert.Equal(t, PolicyAssumeRunning, cfg.EnumerationErrorPolicy)
	assert.Equal(t, 10*time.Second, cfg.Intervals.Presence.Duration)
	assert.Equal(t, 30*time.Second, cfg.Intervals.Aggregation.Duration)
	assert.Equal(t, 15*time.Second, cfg.Intervals.AggregationDebug.Duration)
	assert.Equal(t, 600*time.Second, cfg.Intervals.Snapshot.Duration)
	assert.Equal(t, time.Hour, cfg.Intervals.UpdateTick.Duration)
	assert.Equal(t, 24*time.Hour, cfg.Intervals.UpdateCheck.Duration)
	assert.Equal(t, 30*time.Second, cfg.Intervals.RestartDelay.Duration)
	assert.Equal(t, 5*time.Second, cfg.Intervals.ShutdownTimeout.Duration)
	assert.False(t, cfg.Update.Enabled)
	assert.True(t, strings.HasSuffix(cfg.Paths.Log, filepath.Join("prodmon", "prodmon.log")))
}

// TestLoad_MissingFileUsesDefaults verifies a missing file is not an error
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

// TestLoad_OverridesDefaults verifies file values win and unset values keep defaults
func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
debug = true
threshold = 5
targets = ["Blender", "FreeCAD"]
enumeration_error_policy = "assume-stopped"

[intervals]
presence = "3s"
restart_delay = "1m"

[webhooks]
console = "https://hooks.example/console"
data = "https://hooks.example/data"
screenshots = "https://hooks.example/screenshots"

[update]
enabled = true
version_url = "https://releases.example/version.txt"
payload_url = "https://releases.example/prodmon"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 5, cfg.Threshold)
	assert.Equal(t, []string{"Blender", "FreeCAD"}, cfg.Targets)
	assert.Equal(t, PolicyAssumeStopped, cfg.EnumerationErrorPolicy)
	assert.Equal(t, 3*time.Second, cfg.Intervals.Presence.Duration)
	assert.Equal(t, time.Minute, cfg.Intervals.RestartDelay.Duration)
	assert.Equal(t, 30*time.Second, cfg.Intervals.Aggregation.Duration, "unset keeps default")
	assert.Equal(t, 15*time.Second, cfg.AggregationInterval(), "debug shortens the aggregation period")
	assert.True(t, cfg.Update.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "[intervals]\npresence = \"soon\"\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to decode config")
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, "treshold = 3\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown config keys: treshold")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing webhooks", func(c *Config) { c.Webhooks.Data = ""; c.Webhooks.Screenshots = "" }, "missing webhooks: data, screenshots"},
		{"zero threshold", func(c *Config) { c.Threshold = 0 }, "threshold must be positive"},
		{"zero capacity", func(c *Config) { c.LedgerCapacity = 0 }, "ledger_capacity must be positive"},
		{"zero retention", func(c *Config) { c.Retention = Duration{} }, "retention must be positive"},
		{"bad policy", func(c *Config) { c.EnumerationErrorPolicy = "guess" }, "unknown enumeration_error_policy"},
		{"zero interval", func(c *Config) { c.Intervals.Snapshot = Duration{} }, "intervals.snapshot must be positive"},
		{"update without urls", func(c *Config) { c.Update.Enabled = true }, "update.version_url and update.payload_url are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMissingWebhooks(t *testing.T) {
	assert.Equal(t, []string{"console", "data", "screenshots"}, Default().MissingWebhooks())
	assert.Empty(t, validConfig().MissingWebhooks())
}

func TestDuration_MarshalText(t *testing.T) {
	text, err := Duration{90 * time.Second}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}
