// ABOUTME: Sync configuration: server URL, device identity, auto-sync and cycle timeout.
// ABOUTME: Stored as sync.json in the XDG config dir; NUTRITION_* env vars override it.
package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

// DefaultTimeout bounds one sync cycle.
const DefaultTimeout = 30 * time.Second

// Config stores sync settings.
type Config struct {
	Server   string `json:"server" envconfig:"SERVER"`
	UserID   string `json:"user_id,omitempty" envconfig:"USER"`
	DeviceID string `json:"device_id"`
	AutoSync bool   `json:"auto_sync" envconfig:"AUTO_SYNC"`
	Timeout  string `json:"timeout,omitempty" envconfig:"SYNC_TIMEOUT"`

	// Token overrides the stored login token. Environment only.
	Token string `json:"-" envconfig:"TOKEN"`
}

// ConfigDir returns the XDG config directory for nutrition.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nutrition")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "nutrition")
}

// ConfigPath returns the path to the sync config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "sync.json")
}

// LoadConfig loads sync config from disk, then applies environment overrides.
// A missing file yields an empty config with a fresh device id.
func LoadConfig() (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(ConfigPath())
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ConfigPath(), err)
		}
	}

	if err := envconfig.Process("nutrition", &cfg); err != nil {
		return nil, fmt.Errorf("read sync environment: %w", err)
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = GenerateDeviceID()
	}
	return &cfg, nil
}

// SaveConfig persists sync config to disk.
func SaveConfig(cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(), 0750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(), data, 0600)
}

// IsConfigured returns true if a server is set.
func (c *Config) IsConfigured() bool {
	return c.Server != ""
}

// GetTimeout returns the cycle timeout, defaulting to DefaultTimeout.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// GenerateDeviceID creates a new unique device ID.
func GenerateDeviceID() string {
	return uuid.NewString()
}

// ClearConfig removes sync config file.
func ClearConfig() error {
	path := ConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(path)
}
