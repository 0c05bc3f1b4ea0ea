// Package config holds the server settings. Values come from an optional YAML
// file, then the environment, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvMasterPasscode = "HUSH_MASTER_PASSCODE"
	EnvCookieSecret   = "HUSH_COOKIE_SECRET"
	EnvDSN            = "HUSH_DSN"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Addr            string        `yaml:"addr"`
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	RoomTTL         time.Duration `yaml:"room_ttl"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	MasterPasscode  string        `yaml:"master_passcode"`
	CookieSecret    string        `yaml:"cookie_secret"`
	StrictAdmission bool          `yaml:"strict_admission"`
	SecureCookies   bool          `yaml:"secure_cookies"`
}

func Default() Config {
	return Config{
		Addr:          ":8080",
		Driver:        "sqlite3",
		DSN:           ":memory:",
		RoomTTL:       10 * time.Minute,
		SweepInterval: 30 * time.Second,
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvMasterPasscode); ok {
		c.MasterPasscode = v
	}
	if v, ok := lookup(EnvCookieSecret); ok {
		c.CookieSecret = v
	}
	if v, ok := lookup(EnvDSN); ok {
		c.DSN = v
	}
}

func (c Config) Validate() error {
	switch c.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("%w: dsn is empty", ErrInvalidConfig)
	}
	if c.RoomTTL <= 0 {
		return fmt.Errorf("%w: room_ttl must be positive", ErrInvalidConfig)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("%w: sweep_interval must be positive", ErrInvalidConfig)
	}
	return nil
}
