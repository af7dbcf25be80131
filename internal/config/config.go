// Package config handles loading and validating the application configuration
// from YAML (or JSON) files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/donaldgifford/tap-paypal/internal/bookmark"
)

// State backends.
const (
	StateBackendFile     = "file"
	StateBackendPostgres = "postgres"
)

// Config is the top-level application configuration.
type Config struct {
	PayPal   PayPalConfig   `yaml:"paypal"`
	State    StateConfig    `yaml:"state"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PayPalConfig defines PayPal API settings.
type PayPalConfig struct {
	ClientID          string          `yaml:"client_id"`
	ClientSecret      string          `yaml:"client_secret"`
	BaseURL           string          `yaml:"base_url"`
	UserAgent         string          `yaml:"user_agent"`
	StartDate         string          `yaml:"start_date"`
	EndDate           string          `yaml:"end_date"`
	Timeout           time.Duration   `yaml:"timeout"`
	DetailConcurrency int             `yaml:"detail_concurrency"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines client-side request pacing. PerSecond 0 disables it.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// StateConfig defines where the replication bookmark is kept.
type StateConfig struct {
	Backend string `yaml:"backend"` // file, postgres
	Path    string `yaml:"path"`
}

// OutputConfig defines the row sinks.
type OutputConfig struct {
	Singer    bool `yaml:"singer"`
	Postgres  bool `yaml:"postgres"`
	BatchSize int  `yaml:"batch_size"`
}

// DatabaseConfig defines PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode, d.PoolSize,
	)
}

// ServerConfig defines the Echo HTTP server settings for serve mode.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ScheduleConfig defines the sync interval in serve mode. Zero disables
// scheduled syncs.
type ScheduleConfig struct {
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// TracingConfig defines OTLP trace export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, pretty
}

// UsesPostgres reports whether any component needs a database connection.
func (c *Config) UsesPostgres() bool {
	return c.Output.Postgres || c.State.Backend == StateBackendPostgres
}

// Override adjusts a defaulted configuration before it is validated. The CLI
// uses it to apply flag and environment overrides.
type Override func(*Config)

// Load reads and parses a config file, performing environment variable
// substitution and validation.
func Load(path string, overrides ...Override) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)
	for _, o := range overrides {
		o(cfg)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyPayPalDefaults(&cfg.PayPal)
	applyStateDefaults(&cfg.State)
	applyOutputDefaults(&cfg.Output)
	applyDatabaseDefaults(&cfg.Database)
	applyServerDefaults(&cfg.Server)
	applyTracingDefaults(&cfg.Tracing)
	applyLoggingDefaults(&cfg.Logging)
}

func applyPayPalDefaults(p *PayPalConfig) {
	if p.BaseURL == "" {
		p.BaseURL = "https://api-m.paypal.com"
	}
	if p.Timeout == 0 {
		p.Timeout = 30 * time.Second
	}
	if p.DetailConcurrency == 0 {
		p.DetailConcurrency = 1
	}
	if p.RateLimit.Burst == 0 {
		p.RateLimit.Burst = 1
	}
}

func applyStateDefaults(s *StateConfig) {
	if s.Backend == "" {
		s.Backend = StateBackendFile
	}
	if s.Backend == StateBackendFile && s.Path == "" {
		s.Path = "state.json"
	}
}

func applyOutputDefaults(o *OutputConfig) {
	if !o.Singer && !o.Postgres {
		o.Singer = true
	}
	if o.BatchSize == 0 {
		o.BatchSize = 500
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 4
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		// A manual sync over the API runs inside the request.
		s.WriteTimeout = 10 * time.Minute
	}
}

func applyTracingDefaults(t *TracingConfig) {
	if t.ServiceName == "" {
		t.ServiceName = "tap-paypal"
	}
	if t.Endpoint == "" {
		t.Endpoint = "localhost:4317"
	}
	if t.SampleRatio == 0 {
		t.SampleRatio = 1
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

// Validate checks a fully defaulted configuration and reports every problem
// at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.PayPal.ClientID == "" {
		errs = append(errs, fmt.Errorf("paypal.client_id is required"))
	}
	if cfg.PayPal.ClientSecret == "" {
		errs = append(errs, fmt.Errorf("paypal.client_secret is required"))
	}
	if cfg.PayPal.StartDate != "" {
		if _, err := bookmark.ParseTimestamp(cfg.PayPal.StartDate); err != nil {
			errs = append(errs, fmt.Errorf("paypal.start_date: %w", err))
		}
	}
	if cfg.PayPal.EndDate != "" {
		if _, err := bookmark.ParseTimestamp(cfg.PayPal.EndDate); err != nil {
			errs = append(errs, fmt.Errorf("paypal.end_date: %w", err))
		}
	}
	if cfg.PayPal.DetailConcurrency < 1 {
		errs = append(errs, fmt.Errorf("paypal.detail_concurrency must be at least 1"))
	}
	if cfg.PayPal.RateLimit.PerSecond < 0 {
		errs = append(errs, fmt.Errorf("paypal.rate_limit.per_second must not be negative"))
	}

	switch cfg.State.Backend {
	case StateBackendFile:
		if cfg.State.Path == "" {
			errs = append(errs, fmt.Errorf("state.path is required when backend is file"))
		}
	case StateBackendPostgres:
	default:
		errs = append(errs, fmt.Errorf(
			"state.backend must be one of: file, postgres (got %q)",
			cfg.State.Backend,
		))
	}

	if cfg.UsesPostgres() {
		if cfg.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required when postgres is used"))
		}
		if cfg.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.name is required when postgres is used"))
		}
		if cfg.Database.User == "" {
			errs = append(errs, fmt.Errorf("database.user is required when postgres is used"))
		}
	}

	if cfg.Schedule.SyncInterval < 0 {
		errs = append(errs, fmt.Errorf("schedule.sync_interval must not be negative"))
	}

	switch cfg.Logging.Format {
	case "text", "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf(
			"logging.format must be one of: text, json, pretty (got %q)",
			cfg.Logging.Format,
		))
	}

	return errors.Join(errs...)
}
