package config

import (
	"os"
	"path/filepath"
)

const appName = "slowdown"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}

// DefaultDataDir holds the session history and dumped segments.
func DefaultDataDir() string {
	return filepath.Join(XDGDataHome(), appName)
}

// DefaultHistoryPath returns the history file for a storage backend.
func DefaultHistoryPath(backend string) string {
	if backend == BackendSQLite {
		return filepath.Join(DefaultDataDir(), "sessions.db")
	}
	return filepath.Join(DefaultDataDir(), "sessions.json")
}

// DefaultChunkDir is where segments are written when save-chunks is on.
func DefaultChunkDir() string {
	return filepath.Join(DefaultDataDir(), "chunks")
}
