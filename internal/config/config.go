// Package config loads codelab settings from config files, environment
// variables, and flags.
//
// Precedence, highest first: explicit Set calls, environment variables with
// the CODELAB_ prefix, the config file, then defaults. A .env file in the
// working directory is folded into the environment before viper reads it.
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Store driver names accepted in config.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the full runtime configuration.
type Config struct {
	// Workspace is the directory exercise files are materialized into.
	Workspace string `mapstructure:"workspace"`

	// UserID identifies whose answers are pulled and pushed.
	UserID string `mapstructure:"user_id"`

	// StoreDriver selects the answer store backend: sqlite or postgres.
	StoreDriver string `mapstructure:"store_driver"`

	// SQLitePath is the answer database file for the sqlite driver.
	SQLitePath string `mapstructure:"sqlite_path"`

	// PostgresDSN is the connection string for the postgres driver.
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// DebounceMs is the quiet window before an edited file is pushed.
	DebounceMs int `mapstructure:"debounce_ms"`

	// DashboardPort is where the WebSocket dashboard listens.
	DashboardPort int `mapstructure:"dashboard_port"`

	// LogFile, when set, routes logs to a rotating file instead of stderr.
	LogFile string `mapstructure:"log_file"`
}

// DebounceInterval returns DebounceMs as a duration.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Validate checks the loaded configuration for usability.
func (c *Config) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("user_id is required (set CODELAB_USER_ID or user_id in config)")
	}
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store_driver %q (want %s or %s)", c.StoreDriver, DriverSQLite, DriverPostgres)
	}
	if c.DebounceMs <= 0 {
		return fmt.Errorf("debounce_ms must be positive, got %d", c.DebounceMs)
	}
	return nil
}

// Load reads configuration from the optional file at path plus the
// environment. An empty path searches the working directory and
// ~/.config/codelab for codelab.yaml.
func Load(path string) (*Config, error) {
	// .env is optional; missing file is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("workspace", ".")
	v.SetDefault("store_driver", DriverSQLite)
	v.SetDefault("sqlite_path", filepath.Join(".codelab", "answers.db"))
	v.SetDefault("debounce_ms", 2000)
	v.SetDefault("dashboard_port", 8484)

	v.SetEnvPrefix("CODELAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("codelab")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "codelab"))
		}
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional when searching.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds the process logger. With a LogFile configured the output
// rotates at 10 MB keeping 3 backups; otherwise it goes to stderr.
func NewLogger(cfg *Config, prefix string) (*log.Logger, io.Closer) {
	if cfg.LogFile == "" {
		return log.New(os.Stderr, prefix, log.LstdFlags), nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	return log.New(rotator, prefix, log.LstdFlags), rotator
}
