package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// UpstreamProxy configures an optional outbound HTTP proxy.
type UpstreamProxy struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// Accounts configures the account store backend.
type Accounts struct {
	// Backend selects the store: "file" (default), "redis" or "sqlite".
	Backend string `yaml:"backend"`

	// Dir is the directory holding per-account JSON files (file backend).
	Dir string `yaml:"dir"`

	// Redis connection settings (redis backend).
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// SQLitePath is the database file path (sqlite backend).
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures log output.
type Logging struct {
	Debug bool `yaml:"debug"`
	// File enables rotated file logging in addition to stdout.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Config is the process-wide gateway configuration, loaded from YAML with a
// handful of env overrides applied on top.
type Config struct {
	Enabled              bool              `yaml:"enabled"`
	Port                 int               `yaml:"port"`
	APIKey               string            `yaml:"api_key"`
	AutoStart            bool              `yaml:"auto_start"`
	BackendCanaryEnabled bool              `yaml:"backend_canary_enabled"`
	RequestTimeout       int               `yaml:"request_timeout"`
	CustomMapping        map[string]string `yaml:"custom_mapping"`
	AnthropicMapping     map[string]string `yaml:"anthropic_mapping"`
	UpstreamProxy        UpstreamProxy     `yaml:"upstream_proxy"`
	Accounts             Accounts          `yaml:"accounts"`
	Logging              Logging           `yaml:"logging"`

	// Resolved at load time; not part of the YAML surface.
	Endpoints []string `yaml:"-"`
	UserAgent string   `yaml:"-"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Enabled:        true,
		Port:           DefaultPort,
		RequestTimeout: DefaultRequestTimeoutSec,
		Accounts:       Accounts{Backend: "file", Dir: "accounts"},
		Endpoints:      EndpointsFromEnv(),
		UserAgent:      UserAgentFromEnv(),
	}
}

// Load reads the YAML config at path and applies env overrides. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.RequestTimeout < MinRequestTimeoutSec {
		cfg.RequestTimeout = DefaultRequestTimeoutSec
	}
	if cfg.Accounts.Backend == "" {
		cfg.Accounts.Backend = "file"
	}
	if cfg.Accounts.Dir == "" {
		cfg.Accounts.Dir = "accounts"
	}
	cfg.Endpoints = EndpointsFromEnv()
	cfg.UserAgent = UserAgentFromEnv()
	return cfg, nil
}

// Store holds the current configuration snapshot and hands out immutable
// reads. The watcher swaps snapshots on reload; handlers always read through
// Current so a reload never races a request mid-flight.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStore creates a Store seeded with cfg.
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// Current returns the active configuration snapshot.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Swap replaces the active configuration snapshot.
func (s *Store) Swap(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}
