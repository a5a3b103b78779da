// ABOUTME: Nutrition configuration management with backend selection.
// ABOUTME: Handles settings, environment overrides and the local store factory.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harperreed/nutrition/internal/kvcache"
	"github.com/harperreed/nutrition/internal/storage"
	"github.com/kelseyhightower/envconfig"
)

// DefaultQuotaBytes matches the space a browser grants local storage.
const DefaultQuotaBytes = 5 << 20

// Config stores nutrition tool configuration.
// Every field can be overridden with a NUTRITION_* environment variable.
type Config struct {
	// Backend selects the local store: "sqlite" (default), "badger" or "memory".
	Backend string `json:"backend,omitempty" envconfig:"BACKEND"`

	// DataDir is the root directory for data storage.
	// SQLite puts nutrition.db here, Badger uses a badger/ folder.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/nutrition.
	DataDir string `json:"data_dir,omitempty" envconfig:"DATA_DIR"`

	// FlushDelay is how long cache writes are coalesced, e.g. "500ms".
	FlushDelay string `json:"flush_delay,omitempty" envconfig:"FLUSH_DELAY"`

	// QuotaBytes caps the local store. 0 means DefaultQuotaBytes, negative means unlimited.
	QuotaBytes int `json:"quota_bytes,omitempty" envconfig:"QUOTA_BYTES"`

	// LogLevel is a zerolog level name. Defaults to "warn".
	LogLevel string `json:"log_level,omitempty" envconfig:"LOG_LEVEL"`
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return "sqlite"
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetFlushDelay returns the cache coalescing delay.
func (c *Config) GetFlushDelay() time.Duration {
	if c.FlushDelay == "" {
		return kvcache.DefaultFlushDelay
	}
	d, err := time.ParseDuration(c.FlushDelay)
	if err != nil || d < 0 {
		return kvcache.DefaultFlushDelay
	}
	return d
}

// GetQuotaBytes returns the store capacity; 0 means unlimited.
func (c *Config) GetQuotaBytes() int {
	switch {
	case c.QuotaBytes == 0:
		return DefaultQuotaBytes
	case c.QuotaBytes < 0:
		return 0
	default:
		return c.QuotaBytes
	}
}

// GetLogLevel returns the configured log level, defaulting to "warn".
func (c *Config) GetLogLevel() string {
	if c.LogLevel == "" {
		return "warn"
	}
	return c.LogLevel
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStore opens the configured backend wrapped in the byte quota.
func (c *Config) OpenStore() (storage.KV, error) {
	dataDir := c.GetDataDir()

	var kv storage.KV
	var err error
	switch backend := c.GetBackend(); backend {
	case "sqlite":
		kv, err = storage.Open(filepath.Join(dataDir, "nutrition.db"))
	case "badger":
		kv, err = storage.OpenBadger(filepath.Join(dataDir, "badger"))
	case "memory":
		kv = storage.NewMemory()
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
	if err != nil {
		return nil, err
	}

	q, err := storage.NewQuota(kv, c.GetQuotaBytes())
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return q, nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "nutrition", "config.json")
}

// Load reads config from disk and applies environment overrides.
func Load() (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(GetConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("nutrition", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ServerConfig configures the reference sync server. It is read from the
// environment only.
type ServerConfig struct {
	Addr     string `envconfig:"SERVER_ADDR" default:":8080"`
	DBPath   string `envconfig:"SERVER_DB"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Tokens maps bearer tokens to user ids: "token1:alice,token2:bob".
	Tokens map[string]string `envconfig:"SERVER_TOKENS"`
}

// LoadServer reads server settings from NUTRITION_* environment variables.
func LoadServer() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := envconfig.Process("nutrition", &cfg); err != nil {
		return nil, fmt.Errorf("read server environment: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(storage.DataDir(), "server.db")
	}
	cfg.DBPath = ExpandPath(cfg.DBPath)
	return &cfg, nil
}
