// Package config provides configuration management for the GraphRAG portal.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Lock      LockConfig      `mapstructure:"lock"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// Addr returns the listen address in host:port format.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig holds credential store settings.
// Supports a file-backed JSON store and an embedded SQLite store.
type StoreConfig struct {
	// Driver selects the store backend: "jsonfile" or "sqlite".
	Driver string `mapstructure:"driver"`

	// UsersFile is the path to the JSON credential store (jsonfile driver).
	UsersFile string `mapstructure:"users_file"`

	// SQLite settings (used when Driver is "sqlite")
	SQLitePath      string `mapstructure:"sqlite_path"`
	JournalMode     string `mapstructure:"journal_mode"`     // WAL, DELETE, TRUNCATE, etc.
	BusyTimeout     int    `mapstructure:"busy_timeout"`     // Milliseconds to wait for locks
	SynchronousMode string `mapstructure:"synchronous_mode"` // NORMAL, FULL, OFF
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Enabled enforces authentication on protected endpoints.
	// When false, every request is routed to the default workspace.
	Enabled bool `mapstructure:"enabled"`

	// TokenSecret is the symmetric signing key for session tokens.
	// Rotating it invalidates all outstanding tokens at once.
	TokenSecret string `mapstructure:"token_secret"`

	// TokenExpireHours is the session token lifetime in hours.
	TokenExpireHours int `mapstructure:"token_expire_hours"`

	// SeedAccounts pre-populates an empty credential store at first boot.
	// Format: comma-separated "username:password" pairs.
	SeedAccounts string `mapstructure:"seed_accounts"`
}

// TokenTTL returns the session token lifetime as a duration.
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenExpireHours) * time.Hour
}

// WorkspaceConfig holds workspace namespace settings.
type WorkspaceConfig struct {
	// Root is the directory under which per-user namespaces are created.
	Root string `mapstructure:"root"`

	// Default is the workspace used when authentication is disabled.
	Default string `mapstructure:"default"`
}

// LockConfig selects the locking backend for namespace creation and
// store bootstrap coordination.
type LockConfig struct {
	// Backend is "memory" (single node) or "redis" (multi-instance).
	Backend string `mapstructure:"backend"`
}

// RedisConfig holds Redis connection settings (redis lock backend).
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values. Most keys use the
// PORTAL_ prefix; the authentication variables keep their historical bare
// names (ENABLE_USER_AUTH, TOKEN_SECRET, TOKEN_EXPIRE_HOURS, AUTH_ACCOUNTS,
// USERS_FILE) for compatibility with existing deployments.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare env names form the documented operator contract.
	_ = v.BindEnv("auth.enabled", "ENABLE_USER_AUTH")
	_ = v.BindEnv("auth.token_secret", "TOKEN_SECRET")
	_ = v.BindEnv("auth.token_expire_hours", "TOKEN_EXPIRE_HOURS")
	_ = v.BindEnv("auth.seed_accounts", "AUTH_ACCOUNTS")
	_ = v.BindEnv("store.users_file", "USERS_FILE")
	_ = v.BindEnv("workspace.root", "WORKSPACE_ROOT")

	// Config file configuration
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/graphrag-portal")
	}

	// Read config file (optional - environment variables can be used instead)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is acceptable - use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9622)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", 100*1024*1024) // 100MB

	// Store defaults
	v.SetDefault("store.driver", "jsonfile")
	v.SetDefault("store.users_file", "./data/users.json")
	v.SetDefault("store.sqlite_path", "./data/portal.db")
	v.SetDefault("store.journal_mode", "WAL")
	v.SetDefault("store.busy_timeout", 5000)
	v.SetDefault("store.synchronous_mode", "NORMAL")

	// Auth defaults
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.token_secret", "") // Must be provided when auth is enabled
	v.SetDefault("auth.token_expire_hours", 48)
	v.SetDefault("auth.seed_accounts", "")

	// Workspace defaults
	v.SetDefault("workspace.root", "./data/workspaces")
	v.SetDefault("workspace.default", "default")

	// Lock defaults
	v.SetDefault("lock.backend", "memory")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	validDrivers := map[string]bool{"jsonfile": true, "sqlite": true}
	if !validDrivers[c.Store.Driver] {
		return fmt.Errorf("store.driver must be 'jsonfile' or 'sqlite'")
	}
	if c.Store.Driver == "jsonfile" && c.Store.UsersFile == "" {
		return fmt.Errorf("store.users_file is required for jsonfile driver")
	}
	if c.Store.Driver == "sqlite" && c.Store.SQLitePath == "" {
		return fmt.Errorf("store.sqlite_path is required for sqlite driver")
	}

	if c.Auth.Enabled && c.Auth.TokenSecret == "" {
		return fmt.Errorf("auth.token_secret is required when authentication is enabled")
	}
	if c.Auth.TokenExpireHours < 1 {
		return fmt.Errorf("auth.token_expire_hours must be at least 1")
	}

	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root is required")
	}

	validLocks := map[string]bool{"memory": true, "redis": true}
	if !validLocks[c.Lock.Backend] {
		return fmt.Errorf("lock.backend must be 'memory' or 'redis'")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
