// Package config resolves the service's data directory and optional
// override file, following XDG base-directory conventions.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// appDirName is the subdirectory of the XDG data dir this service owns; it
// holds both the database and the optional config file.
const appDirName = "xdg-document-portal"

// DBFileName is the name of the persisted document/permission database
// within the service's data directory.
const DBFileName = "main"

// ConfigFileName is the optional override file, a permissive (commented)
// JSON document parsed with hujson.
const ConfigFileName = "config.jsonc"

var errFlushDebounceNegative = errors.New("flush_debounce_ms must be non-negative")

// Config holds all tunables for the service. Every field has a usable
// zero-config default; the override file and environment only need to set
// what they want to change.
type Config struct {
	// DataDir is the directory containing the persisted database file.
	DataDir string `json:"-"`

	// FlushDebounce is how long the dispatch shell waits after the store's
	// first dirty mutation before it writes the database to disk. Defaults
	// to 10s; see internal/portal.Shell.
	FlushDebounce time.Duration `json:"-"`
	FlushDebounceMS int64 `json:"flush_debounce_ms,omitempty"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"log_level,omitempty"`
}

// DefaultConfig returns the configuration used when no override file exists.
func DefaultConfig() Config {
	return Config{
		FlushDebounce: 10 * time.Second,
		LogLevel:      "info",
	}
}

// Load resolves the data directory from the environment and, if present,
// merges in the optional config.jsonc override file.
func Load(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = DataDir(getenv)

	path := filepath.Join(cfg.DataDir, ConfigFileName)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	var overrides Config
	if err := json.Unmarshal(std, &overrides); err != nil {
		return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
	}

	if overrides.FlushDebounceMS < 0 {
		return Config{}, fmt.Errorf("%s: %w", path, errFlushDebounceNegative)
	}

	if overrides.FlushDebounceMS > 0 {
		cfg.FlushDebounce = time.Duration(overrides.FlushDebounceMS) * time.Millisecond
	}

	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}

	return cfg, nil
}

// DataDir resolves the per-user data directory for this service:
// $XDG_DATA_HOME/xdg-document-portal, falling back to
// ~/.local/share/xdg-document-portal.
func DataDir(getenv func(string) string) string {
	if xdg := getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}

	home := getenv("HOME")
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}

	return filepath.Join(home, ".local", "share", appDirName)
}

// DBPath returns the path to the persisted document/permission database.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, DBFileName)
}
