// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Server() ServerConfig
	GitHub() GitHubConfig
	Database() DatabaseConfig
	Audit() AuditConfig
}

// Config holds the entire application configuration. Fields are exported so
// viper can unmarshal into them; access from the rest of the codebase goes
// through the Interface getters.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	ServerCfg   ServerConfig   `mapstructure:"server" yaml:"server"`
	GitHubCfg   GitHubConfig   `mapstructure:"github" yaml:"github"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	AuditCfg    AuditConfig    `mapstructure:"audit" yaml:"audit"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Server() ServerConfig     { return c.ServerCfg }
func (c *Config) GitHub() GitHubConfig     { return c.GitHubCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Audit() AuditConfig       { return c.AuditCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig holds settings for the HTTP ingestion listener.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	// MaxBodyBytes caps the size of a findings upload. Requests above it are
	// rejected with 413 before any processing.
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// MaxConns limits concurrently accepted connections. Zero disables the
	// limit.
	MaxConns int `mapstructure:"max_conns" yaml:"max_conns"`
}

// GitHubConfig holds settings for the identity service client.
type GitHubConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url" yaml:"api_base_url"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// RequestsPerSecond throttles outbound identity lookups so a burst of
	// uploads cannot exhaust the GitHub API quota.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// DatabaseConfig holds the database connection details and pool sizing.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" yaml:"url"`
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time" yaml:"max_conn_idle_time"`
	// QueryTimeout bounds each storage write so a hung database cannot pin a
	// request forever.
	QueryTimeout time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
}

// AuditConfig holds settings for the asynchronous ingest audit recorder.
type AuditConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
	QueueSize     int           `mapstructure:"queue_size" yaml:"queue_size"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "flusec-cloud")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Server --
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.max_body_bytes", 5*1024*1024)
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.max_conns", 0)

	// -- GitHub identity service --
	v.SetDefault("github.api_base_url", "https://api.github.com")
	v.SetDefault("github.timeout", "10s")
	v.SetDefault("github.requests_per_second", 10.0)
	v.SetDefault("github.burst", 5)

	// -- Database --
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.query_timeout", "10s")

	// -- Audit trail --
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.batch_size", 50)
	v.SetDefault("audit.flush_interval", "2s")
	v.SetDefault("audit.queue_size", 1024)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("database.url", "FLUSEC_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// The database URL is deliberately not required here; commands that need it
// (serve) fail fast at component initialization instead, so version/help
// remain usable without a database.
func (c *Config) Validate() error {
	if err := c.ServerCfg.Validate(); err != nil {
		return fmt.Errorf("server configuration invalid: %w", err)
	}
	if err := c.GitHubCfg.Validate(); err != nil {
		return fmt.Errorf("github configuration invalid: %w", err)
	}
	if err := c.DatabaseCfg.Validate(); err != nil {
		return fmt.Errorf("database configuration invalid: %w", err)
	}
	if err := c.AuditCfg.Validate(); err != nil {
		return fmt.Errorf("audit configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the server listener settings.
func (s *ServerConfig) Validate() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr must not be empty")
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be a positive integer")
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be a positive duration")
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be a positive duration")
	}
	if s.MaxConns < 0 {
		return fmt.Errorf("server.max_conns must not be negative")
	}
	return nil
}

// Validate checks the identity service client settings.
func (g *GitHubConfig) Validate() error {
	if g.APIBaseURL == "" {
		return fmt.Errorf("github.api_base_url must not be empty")
	}
	if _, err := url.Parse(g.APIBaseURL); err != nil {
		return fmt.Errorf("github.api_base_url is not a valid URL: %w", err)
	}
	if g.Timeout <= 0 {
		return fmt.Errorf("github.timeout must be a positive duration")
	}
	if g.RequestsPerSecond <= 0 {
		return fmt.Errorf("github.requests_per_second must be positive")
	}
	if g.Burst <= 0 {
		return fmt.Errorf("github.burst must be a positive integer")
	}
	return nil
}

// Validate checks the database pool settings. The URL itself is optional at
// this stage (see Config.Validate).
func (d *DatabaseConfig) Validate() error {
	if d.MaxConns <= 0 {
		return fmt.Errorf("database.max_conns must be a positive integer")
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		return fmt.Errorf("database.min_conns must be between 0 and database.max_conns")
	}
	if d.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be a positive duration")
	}
	return nil
}

// Validate checks the audit recorder settings.
func (a *AuditConfig) Validate() error {
	if !a.Enabled {
		return nil
	}
	if a.BatchSize <= 0 {
		return fmt.Errorf("audit.batch_size must be a positive integer")
	}
	if a.FlushInterval <= 0 {
		return fmt.Errorf("audit.flush_interval must be a positive duration")
	}
	if a.QueueSize <= 0 {
		return fmt.Errorf("audit.queue_size must be a positive integer")
	}
	return nil
}
