// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase   = "sqlite"
	PostgresDatabase = "postgres"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// OwnerHeader is the request header carrying the authenticated owner
	// identity. It is set by the upstream auth proxy, never by browsers.
	OwnerHeader    string `mapstructure:"ownerheader"`
	AllowedOrigins string `mapstructure:"allowedorigins"`

	// File paths
	DatabasePath string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings
	GeoDBPath    string `mapstructure:"geodbpath"`

	// GeoLite settings. Without a license key the database file is only
	// reloaded when something else replaces it.
	GeoLiteLicenseKey  string `mapstructure:"geolitelicensekey"`
	GeoLiteDownloadURL string `mapstructure:"geolitedownloadurl"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseURL          string `mapstructure:"databaseurl"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Live presence settings
	LiveWindowSeconds      int `mapstructure:"livewindowseconds"`
	PresenceRetentionHours int `mapstructure:"presenceretentionhours"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// AnalyticsWorkers bounds the fan-out of the all-websites query
	AnalyticsWorkers int `mapstructure:"analyticsworkers"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "insightica")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("ownerheader", "X-Owner-Email")
		v.SetDefault("allowedorigins", "*")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("geolitelicensekey", "")
		v.SetDefault("geolitedownloadurl", "https://download.maxmind.com/app/geoip_download?edition_id=GeoLite2-City&license_key=%s&suffix=tar.gz")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("databaseurl", "")
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("livewindowseconds", 30)
		v.SetDefault("presenceretentionhours", 24)
		v.SetDefault("jobintervalseconds", 3600)
		v.SetDefault("analyticsworkers", 4)

		v.BindEnv("appname", "INSIGHTICA_APP_NAME")
		v.BindEnv("appport", "INSIGHTICA_APP_PORT")
		v.BindEnv("environment", "INSIGHTICA_ENV")
		v.BindEnv("loglevel", "INSIGHTICA_LOG_LEVEL")
		v.BindEnv("ownerheader", "INSIGHTICA_OWNER_HEADER")
		v.BindEnv("allowedorigins", "INSIGHTICA_ALLOWED_ORIGINS")
		v.BindEnv("storagepath", "INSIGHTICA_STORAGE_PATH")
		v.BindEnv("geodbpath", "INSIGHTICA_GEO_DB_PATH")
		v.BindEnv("geolitelicensekey", "INSIGHTICA_GEOLITE_LICENSE_KEY")
		v.BindEnv("geolitedownloadurl", "INSIGHTICA_GEOLITE_DOWNLOAD_URL")
		v.BindEnv("logsdir", "INSIGHTICA_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "INSIGHTICA_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "INSIGHTICA_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "INSIGHTICA_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "INSIGHTICA_DB_TYPE")
		v.BindEnv("databaseurl", "INSIGHTICA_DATABASE_URL")
		v.BindEnv("dbmaxopenconns", "INSIGHTICA_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "INSIGHTICA_DB_MAX_IDLE_CONNS")
		v.BindEnv("livewindowseconds", "INSIGHTICA_LIVE_WINDOW_SECONDS")
		v.BindEnv("presenceretentionhours", "INSIGHTICA_PRESENCE_RETENTION_HOURS")
		v.BindEnv("jobintervalseconds", "INSIGHTICA_JOB_INTERVAL_SECONDS")
		v.BindEnv("analyticsworkers", "INSIGHTICA_ANALYTICS_WORKERS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	switch c.DatabaseType {
	case SQLiteDatabase:
	case PostgresDatabase:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database url is required for %s", PostgresDatabase)
		}
	default:
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.LiveWindowSeconds <= 0 {
		return fmt.Errorf("live window must be positive, got %d", c.LiveWindowSeconds)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// LiveWindow returns how recent a heartbeat must be for a visitor to count as live.
func (c *Config) LiveWindow() time.Duration {
	return time.Duration(c.LiveWindowSeconds) * time.Second
}

// PresenceRetention returns how long stale presence rows are kept before cleanup.
func (c *Config) PresenceRetention() time.Duration {
	return time.Duration(c.PresenceRetentionHours) * time.Hour
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1 (required for in-memory SQLite stability)
// - Development/Production: 10 (allows concurrent reads for parallel analytics queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetAnalyticsWorkers returns the worker count for the all-websites query, at least 1.
func (c *Config) GetAnalyticsWorkers() int {
	if c.AnalyticsWorkers < 1 {
		return 1
	}
	return c.AnalyticsWorkers
}

// JobInterval returns how often background jobs run, at least one minute.
func (c *Config) JobInterval() time.Duration {
	if c.JobIntervalSeconds < 60 {
		return time.Minute
	}
	return time.Duration(c.JobIntervalSeconds) * time.Second
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
