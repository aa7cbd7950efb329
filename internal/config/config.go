// Package config loads panelkit settings from panelkit.yml plus environment
// variables.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config represents the panelkit configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Log        LogConfig        `mapstructure:"log"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// PaginationConfig bounds list-request page sizes.
type PaginationConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads the configuration from panelkit.yml or panelkit.yaml
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("pagination.default_page_size", 20)
	v.SetDefault("pagination.max_page_size", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetConfigName("panelkit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("panelkit")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetDatabaseURL returns the database URL from config or environment
func GetDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	cfg, err := Load()
	if err != nil {
		return ""
	}
	return cfg.Database.URL
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Pagination.DefaultPageSize < 1 {
		return fmt.Errorf("pagination.default_page_size must be positive, got: %d", cfg.Pagination.DefaultPageSize)
	}
	if cfg.Pagination.MaxPageSize < cfg.Pagination.DefaultPageSize {
		return fmt.Errorf("pagination.max_page_size must be >= default_page_size, got: %d", cfg.Pagination.MaxPageSize)
	}
	return nil
}
