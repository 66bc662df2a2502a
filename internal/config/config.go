// Package config loads prodmon settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration written as a Go duration string ("30s", "24h").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the full prodmon configuration.
type Config struct {
	Debug          bool     `toml:"debug"`
	Threshold      int      `toml:"threshold"`
	Retention      Duration `toml:"retention"`
	LedgerCapacity int      `toml:"ledger_capacity"`
	Targets        []string `toml:"targets"`
	// EnumerationErrorPolicy is "assume-running" or "assume-stopped".
	EnumerationErrorPolicy string `toml:"enumeration_error_policy"`

	Intervals Intervals `toml:"intervals"`
	Webhooks  Webhooks  `toml:"webhooks"`
	Update    Update    `toml:"update"`
	Paths     Paths     `toml:"paths"`
}

// Intervals holds worker periods and timeouts.
type Intervals struct {
	Presence         Duration `toml:"presence"`
	Aggregation      Duration `toml:"aggregation"`
	AggregationDebug Duration `toml:"aggregation_debug"`
	Snapshot         Duration `toml:"snapshot"`
	UpdateTick       Duration `toml:"update_tick"`
	UpdateCheck      Duration `toml:"update_check"`
	RestartDelay     Duration `toml:"restart_delay"`
	ShutdownTimeout  Duration `toml:"shutdown_timeout"`
	LockWait         Duration `toml:"lock_wait"`
}

// Webhooks maps transport channels to webhook URLs.
type Webhooks struct {
	Console     string `toml:"console"`
	Data        string `toml:"data"`
	Screenshots string `toml:"screenshots"`
}

// Update configures the self-updater.
type Update struct {
	Enabled    bool   `toml:"enabled"`
	VersionURL string `toml:"version_url"`
	PayloadURL string `toml:"payload_url"`
}

// Paths holds file locations. Empty values are filled from XDG defaults.
type Paths struct {
	Log    string `toml:"log"`
	Backup string `toml:"backup"`
	Lock   string `toml:"lock"`
}

const (
	PolicyAssumeRunning = "assume-running"
	PolicyAssumeStopped = "assume-stopped"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Threshold:              2,
		Retention:              Duration{24 * time.Hour},
		LedgerCapacity:         200,
		Targets:                []string{"TeklaStructures.exe"},
		EnumerationErrorPolicy: PolicyAssumeRunning,
		Intervals: Intervals{
			Presence:         Duration{10 * time.Second},
			Aggregation:      Duration{30 * time.Second},
			AggregationDebug: Duration{15 * time.Second},
			Snapshot:         Duration{600 * time.Second},
			UpdateTick:       Duration{time.Hour},
			UpdateCheck:      Duration{24 * time.Hour},
			RestartDelay:     Duration{30 * time.Second},
			ShutdownTimeout:  Duration{5 * time.Second},
			LockWait:         Duration{2 * time.Minute},
		},
		Paths: Paths{
			Log:    DefaultLogPath(),
			Backup: DefaultBackupPath(),
			Lock:   DefaultLockPath(),
		},
	}
}

// Load reads the TOML file at path over the defaults.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to stat config: %w", err)
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Default(), fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Default(), fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// AggregationInterval returns the aggregation period for the current mode.
func (c Config) AggregationInterval() time.Duration {
	if c.Debug {
		return c.Intervals.AggregationDebug.Duration
	}
	return c.Intervals.Aggregation.Duration
}

// MissingWebhooks lists channels without a webhook URL.
func (c Config) MissingWebhooks() []string {
	var missing []string
	if c.Webhooks.Console == "" {
		missing = append(missing, "console")
	}
	if c.Webhooks.Data == "" {
		missing = append(missing, "data")
	}
	if c.Webhooks.Screenshots == "" {
		missing = append(missing, "screenshots")
	}
	return missing
}

// Validate checks the configuration for values the monitor cannot run with.
func (c Config) Validate() error {
	var errs []error

	if missing := c.MissingWebhooks(); len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing webhooks: %s", strings.Join(missing, ", ")))
	}
	if c.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("threshold must be positive, got %d", c.Threshold))
	}
	if c.LedgerCapacity <= 0 {
		errs = append(errs, fmt.Errorf("ledger_capacity must be positive, got %d", c.LedgerCapacity))
	}
	if c.Retention.Duration <= 0 {
		errs = append(errs, errors.New("retention must be positive"))
	}
	switch c.EnumerationErrorPolicy {
	case PolicyAssumeRunning, PolicyAssumeStopped:
	default:
		errs = append(errs, fmt.Errorf("unknown enumeration_error_policy %q", c.EnumerationErrorPolicy))
	}

	intervals := []struct {
		name string
		d    Duration
	}{
		{"presence", c.Intervals.Presence},
		{"aggregation", c.Intervals.Aggregation},
		{"aggregation_debug", c.Intervals.AggregationDebug},
		{"snapshot", c.Intervals.Snapshot},
		{"update_tick", c.Intervals.UpdateTick},
		{"update_check", c.Intervals.UpdateCheck},
		{"restart_delay", c.Intervals.RestartDelay},
		{"shutdown_timeout", c.Intervals.ShutdownTimeout},
		{"lock_wait", c.Intervals.LockWait},
	}
	for _, iv := range intervals {
		if iv.d.Duration <= 0 {
			errs = append(errs, fmt.Errorf("intervals.%s must be positive", iv.name))
		}
	}

	if c.Update.Enabled && (c.Update.VersionURL == "" || c.Update.PayloadURL == "") {
		errs = append(errs, errors.New("update.version_url and update.payload_url are required when updates are enabled"))
	}

	return errors.Join(errs...)
}
