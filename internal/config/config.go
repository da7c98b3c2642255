// Package config loads gateway settings from defaults, an optional TOML
// file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting of the gateway.
type Config struct {
	Port        int    `toml:"port" envconfig:"PORT"`
	DataDir     string `toml:"data_dir" envconfig:"DATA_DIR"`
	SessionDB   string `toml:"session_db" envconfig:"SESSION_DB"`
	LogDir      string `toml:"log_dir" envconfig:"LOG_DIR"`
	LogLevel    string `toml:"log_level" envconfig:"LOG_LEVEL"`
	ServiceName string `toml:"service_name" envconfig:"SERVICE_NAME"`
	DeviceName  string `toml:"device_name" envconfig:"DEVICE_NAME"`

	// Credentials come from alias variables, see credentialAliases.
	AuthAccount  string `toml:"auth_account" ignored:"true"`
	AuthPassword string `toml:"auth_password" ignored:"true"`

	RestartDelay       time.Duration `toml:"restart_delay" envconfig:"RESTART_DELAY"`
	RestartMaxDelay    time.Duration `toml:"restart_max_delay" envconfig:"RESTART_MAX_DELAY"`
	RestartMaxAttempts int           `toml:"restart_max_attempts" envconfig:"RESTART_MAX_ATTEMPTS"`
	WatchdogTimeout    time.Duration `toml:"watchdog_timeout" envconfig:"WATCHDOG_TIMEOUT"`

	MediaFetchTimeout time.Duration `toml:"media_fetch_timeout" envconfig:"MEDIA_FETCH_TIMEOUT"`
	MediaMaxBytes     int64         `toml:"media_max_bytes" envconfig:"MEDIA_MAX_BYTES"`
	MaxBodyBytes      int64         `toml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`

	SendTimeout time.Duration `toml:"send_timeout" envconfig:"SEND_TIMEOUT"`
	SendRate    float64       `toml:"send_rate" envconfig:"SEND_RATE"`
	SendBurst   int           `toml:"send_burst" envconfig:"SEND_BURST"`

	AckMonotonic bool `toml:"ack_monotonic" envconfig:"ACK_MONOTONIC"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:              3000,
		DataDir:           ".zap",
		LogDir:            "logs",
		LogLevel:          "info",
		ServiceName:       "cobranca-zap",
		DeviceName:        "MK-AUTH Gateway",
		RestartDelay:      5 * time.Second,
		RestartMaxDelay:   2 * time.Minute,
		WatchdogTimeout:   60 * time.Second,
		MediaFetchTimeout: 20 * time.Second,
		MediaMaxBytes:     64 << 20,
		MaxBodyBytes:      10 << 20,
		SendTimeout:       30 * time.Second,
		SendBurst:         1,
	}
}

// credentialAliases lists the variables each credential may be set with.
// The first one set wins.
var credentialAliases = struct {
	account, password []string
}{
	account:  []string{"AUTH_ACCOUNT", "MK_AUTH_ACCOUNT", "CONTA"},
	password: []string{"AUTH_PASSWORD", "MK_AUTH_PASSWORD", "SENHA"},
}

// Options selects the optional files Load reads.
type Options struct {
	// File is a TOML file. Empty skips it; a missing file is an error.
	File string
	// EnvFile is a dotenv file. A missing file is ignored.
	EnvFile string
}

// Load builds the configuration and validates it.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		if _, err := toml.DecodeFile(opts.File, &cfg); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read env file: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if v, ok := firstEnv(credentialAliases.account); ok {
		cfg.AuthAccount = v
	}
	if v, ok := firstEnv(credentialAliases.password); ok {
		cfg.AuthPassword = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func firstEnv(names []string) (string, bool) {
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Validate rejects settings the gateway cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DataDir == "" {
		return errors.New("data dir must be set")
	}
	if c.LogDir == "" {
		return errors.New("log dir must be set")
	}
	durations := map[string]time.Duration{
		"restart_delay":       c.RestartDelay,
		"restart_max_delay":   c.RestartMaxDelay,
		"watchdog_timeout":    c.WatchdogTimeout,
		"media_fetch_timeout": c.MediaFetchTimeout,
		"send_timeout":        c.SendTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.RestartMaxDelay < c.RestartDelay {
		return fmt.Errorf("restart_max_delay %s is below restart_delay %s", c.RestartMaxDelay, c.RestartDelay)
	}
	if c.RestartMaxAttempts < 0 {
		return fmt.Errorf("restart_max_attempts must not be negative, got %d", c.RestartMaxAttempts)
	}
	if c.MediaMaxBytes <= 0 || c.MaxBodyBytes <= 0 {
		return errors.New("media_max_bytes and max_body_bytes must be positive")
	}
	if c.SendRate < 0 {
		return fmt.Errorf("send_rate must not be negative, got %v", c.SendRate)
	}
	if c.SendRate > 0 && c.SendBurst < 1 {
		return fmt.Errorf("send_burst must be at least 1 when send_rate is set, got %d", c.SendBurst)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
