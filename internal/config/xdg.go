// Package config provides XDG path helpers.
package config

import (
	"os"
	"path/filepath"
)

const appName = "pireactor"

// xdgDir returns $env, or fallback joined under the home directory.
func xdgDir(env string, fallback ...string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

func configDir() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), appName)
}

func dataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), appName)
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// DefaultDBPath returns the default path for the SQLite history database.
func DefaultDBPath() string {
	return filepath.Join(dataDir(), appName+".db")
}

// DefaultClaimServerDBPath returns the database used by the local claim server.
func DefaultClaimServerDBPath() string {
	return filepath.Join(dataDir(), "claim-server.db")
}

// DefaultLogPath returns the log file used while the TUI owns the terminal.
func DefaultLogPath() string {
	return filepath.Join(dataDir(), appName+".log")
}
