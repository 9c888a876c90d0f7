package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// DefaultRetentionDays is how long cached artwork is kept when the
// config does not say otherwise.
const DefaultRetentionDays = 30

// Config holds the client configuration. It is treated as immutable
// after LoadConfig/Validate: components receive it by value.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig identifies the Emby server and the user whose libraries
// are queried.
type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	UseTLS bool   `mapstructure:"use_tls"`
	APIKey string `mapstructure:"api_key"`
	UserID string `mapstructure:"user_id"`

	// MaxItems bounds each latest-items list.
	MaxItems int `mapstructure:"max_items"`

	// GroupEpisodes lets the server collapse episodes under their
	// series (its default behavior). Set false to list every episode
	// individually.
	GroupEpisodes bool `mapstructure:"group_episodes"`
}

// CacheConfig controls the local artwork mirror. An empty Directory
// disables caching entirely.
type CacheConfig struct {
	Directory     string `mapstructure:"directory"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          8096,
			MaxItems:      5,
			GroupEpisodes: true,
		},
		Cache: CacheConfig{
			RetentionDays: DefaultRetentionDays,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "embylatest", "embylatest.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "embylatest", "embylatest.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "embylatest")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "embylatest")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("EMBYLATEST")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate reports the first missing required field.
func (c *Config) Validate() error {
	switch {
	case c.Server.Host == "":
		return errors.New("server.host is required")
	case c.Server.APIKey == "":
		return errors.New("server.api_key is required")
	case c.Server.UserID == "":
		return errors.New("server.user_id is required")
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	case c.Server.MaxItems <= 0:
		return fmt.Errorf("server.max_items must be positive, got %d", c.Server.MaxItems)
	case c.Cache.RetentionDays <= 0:
		return fmt.Errorf("cache.retention_days must be positive, got %d", c.Cache.RetentionDays)
	}
	return nil
}

// BaseURL returns the server root, e.g. "http://emby.local:8096".
func (c *Config) BaseURL() string {
	scheme := "http"
	if c.Server.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Server.Host, c.Server.Port)
}
