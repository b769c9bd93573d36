// Package config provides layered configuration loading.
//
// Values resolve in priority order: built-in defaults, then the first
// actionbridge.jsonc or actionbridge.json found in (explicit path, working
// directory, ~/.config/actionbridge/), then ACTIONBRIDGE_* environment
// variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/oklog/ulid/v2"
	"github.com/tidwall/jsonc"
)

// Config is the resolved actionbridge configuration.
type Config struct {
	Window WindowConfig `json:"window"`
	Hub    HubConfig    `json:"hub"`
	Debug  DebugConfig  `json:"debug"`
	Log    LogConfig    `json:"log"`
}

// WindowConfig identifies the window this process hosts.
type WindowConfig struct {
	ID   string `json:"id"`
	Main bool   `json:"main"`
}

// HubConfig locates the cross-window relay.
type HubConfig struct {
	// Addr is the hub listen address for serve, or the dial address for
	// window processes. Accepts host:port or a full ws:// URL when dialing.
	Addr string `json:"addr"`
}

// DebugConfig controls the diagnostics HTTP server.
type DebugConfig struct {
	// Addr is the diagnostics listen address. Empty disables the server.
	Addr string `json:"addr"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

// Default returns the built-in configuration used when no file or
// environment override applies.
func Default() *Config {
	cfg := &Config{}
	cfg.Hub.Addr = "127.0.0.1:8700"
	cfg.Log.Level = "info"
	return cfg
}

// Load resolves the configuration. explicitPath is the --config flag value;
// empty means search the standard locations. A missing window ID is filled
// with a generated ULID so every process has a stable identity for the
// lifetime of the run.
func Load(explicitPath string) (*Config, error) {
	cfg := Default()

	if path := FindFile(explicitPath); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Window.ID == "" {
		cfg.Window.ID = ulid.Make().String()
	}

	return cfg, nil
}

// FindFile returns the config file Load would read, or "" when none
// exists. An explicit path is returned as-is so a bad --config value
// surfaces as a read error instead of being silently skipped.
func FindFile(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	dirs := []string{"."}
	if cwd, err := os.Getwd(); err == nil {
		dirs[0] = cwd
	}
	dirs = append(dirs, configDir())

	for _, dir := range dirs {
		for _, name := range []string{"actionbridge.jsonc", "actionbridge.json"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// configDir returns the XDG config directory for actionbridge.
func configDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, "actionbridge")
}

// loadFile decodes one config file over cfg. JSONC comments are stripped
// before decoding, so both .jsonc and plain .json parse the same way.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonc.ToJSON(data), cfg)
}

// applyEnvOverrides applies ACTIONBRIDGE_* environment variables. They win
// over file values. Unparsable booleans are ignored rather than fatal.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ACTIONBRIDGE_WINDOW_ID"); v != "" {
		cfg.Window.ID = v
	}
	if v := os.Getenv("ACTIONBRIDGE_WINDOW_MAIN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Window.Main = b
		}
	}
	if v := os.Getenv("ACTIONBRIDGE_HUB_ADDR"); v != "" {
		cfg.Hub.Addr = v
	}
	if v := os.Getenv("ACTIONBRIDGE_DEBUG_ADDR"); v != "" {
		cfg.Debug.Addr = v
	}
	if v := os.Getenv("ACTIONBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ACTIONBRIDGE_LOG_PRETTY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Log.Pretty = b
		}
	}
}
