package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Scanner  ScannerConfig `mapstructure:"scanner" yaml:"scanner"`
	Poll     PollConfig    `mapstructure:"poll" yaml:"poll"`
	Storage  StorageConfig `mapstructure:"storage" yaml:"storage"`
	History  HistoryConfig `mapstructure:"history" yaml:"history"`
	Scope    ScopeConfig   `mapstructure:"scope" yaml:"scope"`
	Notify   NotifyConfig  `mapstructure:"notify" yaml:"notify"`
	Server   ServerConfig  `mapstructure:"server" yaml:"server"`
	Metrics  MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	LogLevel string        `mapstructure:"log_level" yaml:"log_level"`
}

// ScannerConfig points at the external scanning backend
type ScannerConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	RequestTimeout string `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// PollConfig controls the live scan polling loop
type PollConfig struct {
	Interval string `mapstructure:"interval" yaml:"interval"`
}

// StorageConfig selects the history backend
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// HistoryConfig controls what is recorded and where history is seeded from
type HistoryConfig struct {
	RecordFailed    bool `mapstructure:"record_failed" yaml:"record_failed"`
	SeedFromScanner bool `mapstructure:"seed_from_scanner" yaml:"seed_from_scanner"`
}

// ScopeConfig limits which targets may be scanned
type ScopeConfig struct {
	AllowedDomains []string `mapstructure:"allowed_domains" yaml:"allowed_domains"`
	AllowedCIDRs   []string `mapstructure:"allowed_cidrs" yaml:"allowed_cidrs"`
}

// NotifyConfig holds the optional completion sinks
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	AMQPURL    string `mapstructure:"amqp_url" yaml:"amqp_url"`
	AMQPQueue  string `mapstructure:"amqp_queue" yaml:"amqp_queue"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// MetricsConfig toggles the /metrics endpoint
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

const (
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

// Load reads and parses configuration from a YAML file.
// If path is empty, searches for scandash.yaml in the current directory,
// ./configs and ~/.config/scandash/, and falls back to defaults when none
// is found. SCANDASH_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("SCANDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scandash")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "scandash"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("scanner.base_url", d.Scanner.BaseURL)
	v.SetDefault("scanner.request_timeout", d.Scanner.RequestTimeout)
	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.db_path", d.Storage.DBPath)
	v.SetDefault("storage.dsn", d.Storage.DSN)
	v.SetDefault("history.record_failed", d.History.RecordFailed)
	v.SetDefault("history.seed_from_scanner", d.History.SeedFromScanner)
	v.SetDefault("scope.allowed_domains", d.Scope.AllowedDomains)
	v.SetDefault("scope.allowed_cidrs", d.Scope.AllowedCIDRs)
	v.SetDefault("notify.webhook_url", d.Notify.WebhookURL)
	v.SetDefault("notify.amqp_url", d.Notify.AMQPURL)
	v.SetDefault("notify.amqp_queue", d.Notify.AMQPQueue)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("log_level", d.LogLevel)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Scanner.BaseURL == "" {
		errs = append(errs, errors.New("scanner.base_url cannot be empty"))
	} else if u, err := url.Parse(c.Scanner.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("scanner.base_url %q is not an absolute url", c.Scanner.BaseURL))
	}

	if err := positiveDuration("scanner.request_timeout", c.Scanner.RequestTimeout); err != nil {
		errs = append(errs, err)
	}

	if err := positiveDuration("poll.interval", c.Poll.Interval); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Driver {
	case DriverBolt:
		if c.Storage.DBPath == "" {
			errs = append(errs, errors.New("storage.db_path cannot be empty"))
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be %q or %q", c.Storage.Driver, DriverBolt, DriverPostgres))
	}

	for _, cidr := range c.Scope.AllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errs = append(errs, fmt.Errorf("scope.allowed_cidrs: %q is not a valid CIDR", cidr))
		}
	}

	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen cannot be empty"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// RequestTimeout returns scanner.request_timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Scanner.RequestTimeout)
	return d
}

// PollInterval returns poll.interval as a duration.
func (c *Config) PollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Poll.Interval)
	return d
}

func positiveDuration(key, s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", key)
	}
	return nil
}
