// Package config provides configuration management for the application.
// Settings are read from a TOML deployment file (deployment.toml by default), `${VAR}` placeholders
// inside that file are expanded from the environment, and every key can additionally be
// overridden by an environment variable. The result is a typed *Config that is built once at
// startup and handed explicitly to every component that needs it.
//
// Precedence, highest first: environment variable, value in the file, hard-coded default.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	// `godotenv` loads a `.env` file into the process environment, which is handy in development.
	"github.com/joho/godotenv"
	// `viper` does the heavy lifting: file parsing, defaults, env lookup and decoding into structs.
	"github.com/spf13/viper"

	"github.com/user/layered-api-go/apperror"
)

// DefaultPath is the configuration file used when no explicit path is given.
const DefaultPath = "deployment.toml"

// Supported database engines.
const (
	SQLite   = "sqlite"
	MySQL    = "mysql"
	Postgres = "postgres"
)

// Log rotation policies.
const (
	RotateBySize = "size"
	RotateByTime = "time"
	RotateByBoth = "both"
)

// ApplicationConfig holds general application settings.
type ApplicationConfig struct {
	AppName     string `mapstructure:"app_name"`
	Version     string `mapstructure:"version"`
	Debug       bool   `mapstructure:"debug"`
	APIPrefix   string `mapstructure:"api_prefix"`
	OpenAPIFile string `mapstructure:"openapi_file"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimit is the number of requests per minute allowed per client IP. Zero disables it.
	RateLimit int `mapstructure:"rate_limit"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	Origins          []string `mapstructure:"origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	MaxAge           int      `mapstructure:"max_age"`
}

// DatabaseConfig holds the engine selection, credentials and pool sizing.
type DatabaseConfig struct {
	DBType     string `mapstructure:"db_type"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Database   string `mapstructure:"database"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLiteFile string `mapstructure:"sqlite_file"`

	PoolSize    int `mapstructure:"pool_size"`
	MaxOverflow int `mapstructure:"max_overflow"`
	// PoolTimeout and PoolRecycle are expressed in seconds.
	PoolTimeout int `mapstructure:"pool_timeout"`
	PoolRecycle int `mapstructure:"pool_recycle"`
}

// PoolTimeoutDuration is how long a request may wait for a pooled connection.
func (d DatabaseConfig) PoolTimeoutDuration() time.Duration {
	return time.Duration(d.PoolTimeout) * time.Second
}

// PoolRecycleDuration is the maximum lifetime of a pooled connection.
func (d DatabaseConfig) PoolRecycleDuration() time.Duration {
	return time.Duration(d.PoolRecycle) * time.Second
}

// MaxOpenConns is the hard upper bound of simultaneously open connections.
func (d DatabaseConfig) MaxOpenConns() int {
	return d.PoolSize + d.MaxOverflow
}

// LoggingConfig holds logging sinks and rotation policy.
type LoggingConfig struct {
	LogLevel     string `mapstructure:"log_level"`
	LogToFile    bool   `mapstructure:"log_to_file"`
	LogDir       string `mapstructure:"log_dir"`
	DetailedLogs bool   `mapstructure:"detailed_logs"`

	RotationType string `mapstructure:"rotation_type"`
	// size based rotation
	MaxBytes    int64 `mapstructure:"max_bytes"`
	BackupCount int   `mapstructure:"backup_count"`
	// time based rotation
	RotationWhen        string `mapstructure:"rotation_when"`
	RotationInterval    int    `mapstructure:"rotation_interval"`
	RotationBackupCount int    `mapstructure:"rotation_backup_count"`
}

// Config is the top-level configuration structure for the application.
type Config struct {
	Application ApplicationConfig `mapstructure:"application"`
	Server      ServerConfig      `mapstructure:"server"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`

	// v keeps the merged key space around for raw lookups through Get.
	v *viper.Viper
}

var defaults = map[string]any{
	"application.app_name":     "Go REST API Starter",
	"application.version":      "1.0.0",
	"application.debug":        false,
	"application.api_prefix":   "/api/v1",
	"application.openapi_file": "openapi.json",

	"server.host":             "0.0.0.0",
	"server.port":             8000,
	"server.read_timeout":     "15s",
	"server.write_timeout":    "15s",
	"server.idle_timeout":     "60s",
	"server.shutdown_timeout": "10s",
	"server.rate_limit":       0,

	"cors.origins":           []string{"*"},
	"cors.allow_credentials": false,
	"cors.allow_methods":     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"cors.allow_headers":     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
	"cors.max_age":           300,

	"database.db_type":      SQLite,
	"database.host":         "localhost",
	"database.port":         0,
	"database.username":     "",
	"database.password":     "",
	"database.database":     "",
	"database.sslmode":      "disable",
	"database.sqlite_file":  "app.db",
	"database.pool_size":    10,
	"database.max_overflow": 20,
	"database.pool_timeout": 30,
	"database.pool_recycle": 3600,

	"logging.log_level":             "INFO",
	"logging.log_to_file":           true,
	"logging.log_dir":               "logs",
	"logging.detailed_logs":         false,
	"logging.rotation_type":         RotateBySize,
	"logging.max_bytes":             10485760,
	"logging.backup_count":          5,
	"logging.rotation_when":         "midnight",
	"logging.rotation_interval":     1,
	"logging.rotation_backup_count": 30,
}

// envAliases are short environment variable names accepted in addition to the
// automatic SECTION_KEY form. Credentials are commonly injected this way.
var envAliases = map[string][]string{
	"database.db_type":       {"DB_TYPE"},
	"database.host":          {"DB_HOST"},
	"database.port":          {"DB_PORT"},
	"database.username":      {"DB_USERNAME"},
	"database.password":      {"DB_PASSWORD"},
	"database.database":      {"DB_DATABASE"},
	"database.sslmode":       {"DB_SSLMODE"},
	"database.sqlite_file":   {"DB_SQLITE_FILE"},
	"application.app_name":   {"APP_NAME"},
	"application.api_prefix": {"API_PREFIX"},
	"logging.log_level":      {"LOG_LEVEL"},
	"server.port":            {"PORT"},
}

// Load reads the configuration file at path (DefaultPath when empty), applies environment
// overrides and defaults, and validates the result. All problems are reported at once.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	// A missing `.env` is normal outside development, so the error is ignored.
	_ = godotenv.Load()

	settings, err := readFile(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return nil, apperror.NewConfigError("failed to merge configuration", err)
	}

	// SERVER_PORT overrides server.port, LOGGING_LOG_LEVEL overrides logging.log_level, etc.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		names := append([]string{key, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(names...); err != nil {
			return nil, apperror.NewConfigError(fmt.Sprintf("failed to bind environment for %s", key), err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperror.NewConfigError("failed to decode configuration", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile parses the TOML file and expands environment placeholders in every string value.
func readFile(path string) (map[string]any, error) {
	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("toml")
	if err := file.ReadInConfig(); err != nil {
		return nil, apperror.NewConfigError(fmt.Sprintf("failed to read configuration file %s", path), err)
	}
	return expandMap(file.AllSettings()), nil
}

// normalize canonicalizes values that have several accepted spellings and fills
// engine-dependent defaults.
func (c *Config) normalize() {
	c.Database.DBType = NormalizeDBType(c.Database.DBType)
	if c.Database.Port == 0 {
		switch c.Database.DBType {
		case MySQL:
			c.Database.Port = 3306
		case Postgres:
			c.Database.Port = 5432
		}
	}
	c.Logging.LogLevel = strings.ToUpper(strings.TrimSpace(c.Logging.LogLevel))
	c.Logging.RotationType = strings.ToLower(strings.TrimSpace(c.Logging.RotationType))
	if c.Application.APIPrefix != "" && !strings.HasPrefix(c.Application.APIPrefix, "/") {
		c.Application.APIPrefix = "/" + c.Application.APIPrefix
	}
	c.Application.APIPrefix = strings.TrimSuffix(c.Application.APIPrefix, "/")
}

// NormalizeDBType maps accepted aliases (e.g. "postgresql", "sqlite3") to the canonical engine name.
func NormalizeDBType(dbType string) string {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "sqlite", "sqlite3":
		return SQLite
	case "mysql", "mariadb":
		return MySQL
	case "postgres", "postgresql", "pgx":
		return Postgres
	default:
		return strings.ToLower(strings.TrimSpace(dbType))
	}
}

var validLogLevels = map[string]bool{
	"DEBUG": true, "INFO": true, "WARNING": true, "WARN": true, "ERROR": true, "CRITICAL": true,
}

// Validate checks the configuration and reports every problem found in a single error.
func (c *Config) Validate() error {
	var errors []string

	switch c.Database.DBType {
	case SQLite:
		if c.Database.SQLiteFile == "" {
			errors = append(errors, "database.sqlite_file is required for sqlite")
		}
	case MySQL, Postgres:
		if c.Database.Host == "" {
			errors = append(errors, fmt.Sprintf("database.host is required for %s", c.Database.DBType))
		}
		if c.Database.Username == "" {
			errors = append(errors, fmt.Sprintf("database.username is required for %s", c.Database.DBType))
		}
		if c.Database.Database == "" {
			errors = append(errors, fmt.Sprintf("database.database is required for %s", c.Database.DBType))
		}
		if c.Database.Port <= 0 {
			errors = append(errors, fmt.Sprintf("database.port must be positive, got %d", c.Database.Port))
		}
	default:
		errors = append(errors, fmt.Sprintf("unsupported database.db_type %q (expected sqlite, mysql or postgres)", c.Database.DBType))
	}
	if c.Database.PoolSize <= 0 {
		errors = append(errors, fmt.Sprintf("database.pool_size must be positive, got %d", c.Database.PoolSize))
	}
	if c.Database.MaxOverflow < 0 {
		errors = append(errors, fmt.Sprintf("database.max_overflow must not be negative, got %d", c.Database.MaxOverflow))
	}
	if c.Database.PoolTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("database.pool_timeout must be positive, got %d", c.Database.PoolTimeout))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errors = append(errors, fmt.Sprintf("server.rate_limit must not be negative, got %d", c.Server.RateLimit))
	}

	if !validLogLevels[c.Logging.LogLevel] {
		errors = append(errors, fmt.Sprintf("unknown logging.log_level %q", c.Logging.LogLevel))
	}
	switch c.Logging.RotationType {
	case RotateBySize, RotateByTime, RotateByBoth:
	default:
		errors = append(errors, fmt.Sprintf("unknown logging.rotation_type %q (expected size, time or both)", c.Logging.RotationType))
	}
	if c.Logging.RotationInterval <= 0 {
		errors = append(errors, fmt.Sprintf("logging.rotation_interval must be positive, got %d", c.Logging.RotationInterval))
	}

	if len(errors) > 0 {
		return apperror.NewConfigError(fmt.Sprintf("configuration errors:\n- %s", strings.Join(errors, "\n- ")), nil)
	}
	return nil
}

// Get returns the raw value stored under section.key, or def when the key is unset.
func (c *Config) Get(section, key string, def any) any {
	if c.v == nil {
		return def
	}
	value := c.v.Get(section + "." + key)
	if value == nil {
		return def
	}
	return value
}

// AppName returns the configured application name.
func (c *Config) AppName() string { return c.Application.AppName }

// APIPrefix returns the path prefix under which resource routers are mounted.
func (c *Config) APIPrefix() string { return c.Application.APIPrefix }

// ServerPort returns the HTTP listen port.
func (c *Config) ServerPort() int { return c.Server.Port }

// ServerAddr returns the host:port the HTTP server listens on.
func (c *Config) ServerAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// DBType returns the canonical database engine name.
func (c *Config) DBType() string { return c.Database.DBType }
