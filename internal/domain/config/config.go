// Package config defines the host configuration file.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up next to the binary
// or passed explicitly via --config.
const DefaultFileName = "modkit.yaml"

// Config is the host configuration.
type Config struct {
	// ModsRoot is the directory scanned for mods.
	ModsRoot string `yaml:"modsRoot"`
	// Platform names the running platform. Defaults to the build platform.
	Platform string `yaml:"platform,omitempty"`
	// HostVersion is the running host's semantic version. Empty disables
	// the hostVersion gate.
	HostVersion string `yaml:"hostVersion,omitempty"`
	// CodeExt filters code files inside platform directories.
	CodeExt string `yaml:"codeExt,omitempty"`

	Log   LogConfig   `yaml:"log,omitempty"`
	Watch WatchConfig `yaml:"watch,omitempty"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`
	// JSON switches output to one JSON object per line.
	JSON bool `yaml:"json,omitempty"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// Debounce is how long the root must stay quiet before a rescan.
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ModsRoot: "mods",
		Platform: hostPlatform(),
		CodeExt:  ".wasm",
		Log:      LogConfig{Level: "info"},
		Watch:    WatchConfig{Debounce: 500 * time.Millisecond},
	}
}

// Parse parses configuration data, layering it over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration file at path. A missing file yields the
// defaults; anything else is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.ModsRoot == "" {
		return fmt.Errorf("modsRoot must not be empty")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch debounce must not be negative")
	}
	return nil
}

// hostPlatform maps the build platform onto a descriptor platform name.
func hostPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return "osx"
	default:
		return runtime.GOOS
	}
}
