package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "prodmon"

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.toml")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, appName, appName+".log")
}

// DefaultBackupPath returns the default location of the update backup slot.
func DefaultBackupPath() string {
	return filepath.Join(xdg.StateHome, appName, "backup", appName+".bak")
}

// DefaultLockPath returns the default single-instance lock file.
func DefaultLockPath() string {
	return filepath.Join(xdg.StateHome, appName, appName+".lock")
}
