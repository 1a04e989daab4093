// Package config loads the newton client configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultBaseURL           = "wss://crm.inewton.ai"
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultReadLimit         = 32 << 20
	DefaultMaxAttempts       = 5
	DefaultInitialDelay      = time.Second
	DefaultMaxDelay          = 30 * time.Second
	DefaultMetricsAddr       = "127.0.0.1:9464"
	DefaultMetricsPath       = "/metrics"

	// EnvConfigPath overrides the default config location.
	EnvConfigPath = "NEWTON_CONFIG"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config is the newton client configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// RealtimeConfig tunes both realtime channels.
type RealtimeConfig struct {
	BaseURL           string          `yaml:"base_url"`
	HeartbeatInterval time.Duration   `yaml:"heartbeat_interval"`
	HandshakeTimeout  time.Duration   `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration   `yaml:"write_timeout"`
	ReadLimit         int64           `yaml:"read_limit"`
	Reconnect         ReconnectConfig `yaml:"reconnect"`
}

type ReconnectConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// SessionConfig selects where the login session is kept.
type SessionConfig struct {
	Store    string `yaml:"store"` // memory | sqlite | redis
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	Profile  string `yaml:"profile"`

	// VerifySecret, when set, makes login verify the token signature.
	VerifySecret string `yaml:"verify_secret"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// DefaultPath returns $NEWTON_CONFIG or ~/.newton/config.yaml.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return filepath.Join(homeDir(), ".newton", "config.yaml")
}

// Load reads, merges, decodes and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := validateRaw(raw); err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := ValidateVersion(cfg.Version); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	rt := &cfg.Realtime
	if rt.BaseURL == "" {
		rt.BaseURL = DefaultBaseURL
	}
	if rt.HeartbeatInterval == 0 {
		rt.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if rt.HandshakeTimeout == 0 {
		rt.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if rt.WriteTimeout == 0 {
		rt.WriteTimeout = DefaultWriteTimeout
	}
	if rt.ReadLimit == 0 {
		rt.ReadLimit = DefaultReadLimit
	}
	if rt.Reconnect.MaxAttempts == 0 {
		rt.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if rt.Reconnect.InitialDelay == 0 {
		rt.Reconnect.InitialDelay = DefaultInitialDelay
	}
	if rt.Reconnect.MaxDelay == 0 {
		rt.Reconnect.MaxDelay = DefaultMaxDelay
	}

	if cfg.Session.Store == "" {
		cfg.Session.Store = StoreSQLite
	}
	if cfg.Session.Store == StoreSQLite && cfg.Session.Path == "" {
		cfg.Session.Path = filepath.Join(homeDir(), ".newton", "sessions.db")
	}
	if cfg.Session.Profile == "" {
		cfg.Session.Profile = "default"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}

// Validate reports every semantic problem in one error.
func (c *Config) Validate() error {
	var issues []string

	if u, err := url.Parse(c.Realtime.BaseURL); err != nil || u.Host == "" {
		issues = append(issues, "realtime.base_url must be an absolute URL")
	} else {
		switch u.Scheme {
		case "ws", "wss", "http", "https":
		default:
			issues = append(issues, fmt.Sprintf("realtime.base_url scheme %q is not supported", u.Scheme))
		}
	}
	if c.Realtime.HeartbeatInterval < 0 {
		issues = append(issues, "realtime.heartbeat_interval must not be negative")
	}
	if c.Realtime.HandshakeTimeout < 0 {
		issues = append(issues, "realtime.handshake_timeout must not be negative")
	}
	if c.Realtime.ReadLimit < 0 {
		issues = append(issues, "realtime.read_limit must not be negative")
	}
	rc := c.Realtime.Reconnect
	if rc.MaxAttempts < 0 {
		issues = append(issues, "realtime.reconnect.max_attempts must not be negative")
	}
	if rc.InitialDelay < 0 || rc.MaxDelay < 0 {
		issues = append(issues, "realtime.reconnect delays must not be negative")
	} else if rc.MaxDelay < rc.InitialDelay {
		issues = append(issues, "realtime.reconnect.max_delay must be >= initial_delay")
	}

	switch c.Session.Store {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.Session.Path) == "" {
			issues = append(issues, "session.path is required for the sqlite store")
		}
	case StoreRedis:
		if strings.TrimSpace(c.Session.RedisURL) == "" {
			issues = append(issues, "session.redis_url is required for the redis store")
		}
	default:
		issues = append(issues, fmt.Sprintf("session.store %q must be memory, sqlite or redis", c.Session.Store))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, fmt.Sprintf("logging.level %q is not supported", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		issues = append(issues, fmt.Sprintf("logging.format %q must be json or text", c.Logging.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		issues = append(issues, "metrics.path must start with /")
	}

	if len(issues) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(issues, "; "))
	}
	return nil
}

func homeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
