package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ochronus/gozenodo/internal/services/zenodo"
	"github.com/sirupsen/logrus"
)

const (
	MinRequestTimeout = 1
	MaxRequestTimeout = 3600
)

var _ zenodo.ConfigStore = (*Config)(nil)

// Config represents the main application configuration
type Config struct {
	BindAddress    string       `toml:"bind_address"`
	FileDirectory  string       `toml:"file_directory"`
	Loglevel       string       `toml:"loglevel"`
	Password       string       `toml:"password"`
	Port           int          `toml:"port"`
	Production     bool         `toml:"production"`
	RequestTimeout int          `toml:"request_timeout"`
	Username       string       `toml:"username"`
	Zenodo         ZenodoConfig `toml:"zenodo"`
}

// ZenodoConfig holds one access token per Zenodo environment
type ZenodoConfig struct {
	SandboxToken    string `toml:"sandbox_token"`
	ProductionToken string `toml:"production_token"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		BindAddress:    "0.0.0.0",
		Loglevel:       "info",
		Port:           9092,
		RequestTimeout: 60,
	}
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "gozenodo")

	return filepath.Join(configDir, "config.toml"), nil
}

// Load loads configuration from a TOML file
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid. Tokens are not checked here,
// a session reports a missing token for the environment it is asked to use.
func (c *Config) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	if c.FileDirectory == "" {
		return fmt.Errorf("file_directory is required")
	}

	info, err := os.Stat(c.FileDirectory)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file_directory does not exist: %s", c.FileDirectory)
		}
		return fmt.Errorf("unable to stat file_directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("file_directory is not a directory: %s", c.FileDirectory)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if _, err := logrus.ParseLevel(c.Loglevel); err != nil {
		return fmt.Errorf("loglevel must be one of: panic, fatal, error, warn, info, debug, trace")
	}

	if c.RequestTimeout < MinRequestTimeout || c.RequestTimeout > MaxRequestTimeout {
		return fmt.Errorf("request_timeout must be between %d and %d seconds", MinRequestTimeout, MaxRequestTimeout)
	}

	return nil
}

// GetAppValue returns the configuration value stored under key, or "" for
// unknown keys. It makes Config a zenodo.ConfigStore.
func (c *Config) GetAppValue(key string) string {
	switch key {
	case zenodo.KeyTokenSandbox:
		return strings.TrimSpace(c.Zenodo.SandboxToken)
	case zenodo.KeyTokenProduction:
		return strings.TrimSpace(c.Zenodo.ProductionToken)
	default:
		return ""
	}
}

// Timeout returns the request timeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}
