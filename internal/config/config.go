// Package config loads the hairpreset TOML configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvConfig overrides the default config file location.
const EnvConfig = "HAIRFACTORY_CONFIG"

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config holds every setting of the CLI. All keys are optional.
type Config struct {
	Archive     string   `toml:"archive"`
	Entry       string   `toml:"entry"`
	Owner       string   `toml:"owner"`
	LogLevel    string   `toml:"log_level"`
	LockTimeout Duration `toml:"lock_timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Entry:       "Presets.hfdb",
		Owner:       "USER",
		LogLevel:    "info",
		LockTimeout: Duration(10 * time.Second),
	}
}

// Parse decodes data over the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.LockTimeout < 0 {
		return Config{}, fmt.Errorf("parsing config: lock_timeout must not be negative")
	}
	return cfg, nil
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the config file to use: flag > HAIRFACTORY_CONFIG >
// ~/.config/hair-factory/hairpreset.toml.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "hair-factory", "hairpreset.toml")
}

// Encode writes cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}
