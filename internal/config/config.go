// Package config provides configuration management for the application.
package config

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	GitHub      GitHubConfig      `mapstructure:"github"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Server      ServerConfig      `mapstructure:"server"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Vault       VaultConfig       `mapstructure:"vault"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Workers     WorkersConfig     `mapstructure:"workers"`
	Log         LogConfig         `mapstructure:"log"`
}

// TelegramConfig holds the notification transport configuration.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
	Debug bool   `mapstructure:"debug"`
}

// GitHubConfig holds upstream API timeouts.
type GitHubConfig struct {
	CompareTimeoutSec  int `mapstructure:"compare_timeout_sec"`
	ValidateTimeoutSec int `mapstructure:"validate_timeout_sec"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AdminConfig holds the shared administrative credential for the
// maintenance and flush endpoints. Distinct from any tenant secret.
type AdminConfig struct {
	Key string `mapstructure:"key"`
}

// VaultConfig holds the credential sealing key (base64, 32 bytes decoded)
// and the pending-request TTL.
type VaultConfig struct {
	SealKey           string `mapstructure:"seal_key"`
	RequestExpiryMins int    `mapstructure:"request_expiry_mins"`
}

// MaintenanceConfig holds the maintenance gate flag file location.
type MaintenanceConfig struct {
	FlagFile string `mapstructure:"flag_file"`
}

// WorkersConfig holds the async executor tuning.
type WorkersConfig struct {
	PoolSize   int `mapstructure:"pool_size"`
	QueueSize  int `mapstructure:"queue_size"`
	FlushBatch int `mapstructure:"flush_batch"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "./data/gitsync.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("telegram.debug", false)
	// Secrets default empty so environment-only deployments still unmarshal.
	v.SetDefault("telegram.token", "")
	v.SetDefault("admin.key", "")
	v.SetDefault("vault.seal_key", "")
	v.SetDefault("github.compare_timeout_sec", 12)
	v.SetDefault("github.validate_timeout_sec", 8)
	v.SetDefault("vault.request_expiry_mins", 15)
	v.SetDefault("maintenance.flag_file", "/tmp/maintenance.flag")
	v.SetDefault("workers.pool_size", 5)
	v.SetDefault("workers.queue_size", 256)
	v.SetDefault("workers.flush_batch", 100)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Read environment variables
	v.SetEnvPrefix("GITSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks if all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if c.Admin.Key == "" {
		return fmt.Errorf("admin key is required")
	}
	if c.Vault.SealKey == "" {
		return fmt.Errorf("vault seal key is required")
	}
	if _, err := c.SealKeyBytes(); err != nil {
		return err
	}
	return nil
}

// SealKeyBytes decodes the vault seal key.
func (c *Config) SealKeyBytes() ([32]byte, error) {
	var key [32]byte
	raw, err := base64.StdEncoding.DecodeString(c.Vault.SealKey)
	if err != nil {
		return key, fmt.Errorf("vault seal key is not valid base64: %w", err)
	}
	if len(raw) != 32 {
		return key, fmt.Errorf("vault seal key must decode to 32 bytes, got %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// ServerAddress returns the full server address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
