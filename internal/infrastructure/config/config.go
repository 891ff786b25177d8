// Package config provides configuration structs and utilities for the moneta application.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config represents the root configuration for the moneta application.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Sync     SyncConfig     `yaml:"sync"`
	Chat     ChatConfig     `yaml:"chat"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// DatabaseConfig holds configuration for the local SQLite store.
type DatabaseConfig struct {
	Path        string        `yaml:"path"` // Path to the SQLite file; ":memory:" for tests
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RemoteConfig holds configuration for the cloud store HTTP client.
type RemoteConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// SyncConfig holds configuration for the background sync scheduler.
type SyncConfig struct {
	Period         time.Duration `yaml:"period"`          // Interval between periodic cycles
	Flex           time.Duration `yaml:"flex"`            // Jitter window applied to each interval
	InitialBackoff time.Duration `yaml:"initial_backoff"` // First retry delay after a failed cycle
	MaxBackoff     time.Duration `yaml:"max_backoff"`     // Ceiling for exponential retry delays
	MarkQueueSize  int           `yaml:"mark_queue_size"` // Buffer for mark-for-upload requests
}

// ChatConfig holds configuration for the assistant chat feature.
type ChatConfig struct {
	Primary          ChatProviderConfig `yaml:"primary"`
	Fallback         ChatProviderConfig `yaml:"fallback"`
	TripThreshold    int                `yaml:"trip_threshold"`    // Consecutive failures before a provider is tripped
	RecoveryInterval time.Duration      `yaml:"recovery_interval"` // How long a tripped provider stays benched
	HistoryLimit     int                `yaml:"history_limit"`     // Messages of prior conversation sent per request
}

// ChatProviderConfig holds configuration for a single chat model endpoint.
// API keys are stored either plain in APIKey or machine-encrypted in
// APIKeyEncrypted; the plain field wins when both are set.
type ChatProviderConfig struct {
	Name            string        `yaml:"name"`
	BaseURL         string        `yaml:"base_url,omitempty"` // Optional custom endpoint (e.g., for proxies)
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key,omitempty"`
	APIKeyEncrypted string        `yaml:"api_key_encrypted,omitempty"`
	Enabled         bool          `yaml:"enabled"`
	Timeout         time.Duration `yaml:"timeout"`
}

// LoggingConfig holds configuration for application logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`       // Whether tracing is enabled
	ExporterType string  `yaml:"exporter_type"` // none, stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint"` // OTLP collector endpoint
	SampleRate   float64 `yaml:"sample_rate"`   // Sampling rate (0.0 to 1.0)
	ServiceName  string  `yaml:"service_name"`  // Service name for traces
}

// Default configuration values.
const (
	DefaultDatabaseFile = "moneta.db"
	DefaultBusyTimeout  = 5 * time.Second

	DefaultRemoteBaseURL  = "https://api.moneta.cloud"
	DefaultRemoteTimeout  = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = 1 * time.Second

	DefaultSyncPeriod     = 2 * time.Hour
	DefaultSyncFlex       = 30 * time.Minute
	DefaultInitialBackoff = 15 * time.Minute
	DefaultMaxBackoff     = 2 * time.Hour
	DefaultMarkQueueSize  = 256

	DefaultTripThreshold    = 3
	DefaultRecoveryInterval = 5 * time.Minute
	DefaultHistoryLimit     = 20
	DefaultChatTimeout      = 60 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultTracingEnabled      = false
	DefaultTracingExporterType = "none"
	DefaultTracingSampleRate   = 1.0
	DefaultTracingServiceName  = "moneta"
)

// Valid log levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Valid log formats.
var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

// Valid tracing exporter types.
var validTracingExporterTypes = map[string]bool{
	"none":   true,
	"stdout": true,
	"otlp":   true,
}

// NewDefaultConfig creates a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "", // Resolved by the loader relative to the config directory
			BusyTimeout: DefaultBusyTimeout,
		},
		Remote: RemoteConfig{
			BaseURL:        DefaultRemoteBaseURL,
			Timeout:        DefaultRemoteTimeout,
			MaxRetries:     DefaultMaxRetries,
			RetryBaseDelay: DefaultRetryBaseDelay,
		},
		Sync: SyncConfig{
			Period:         DefaultSyncPeriod,
			Flex:           DefaultSyncFlex,
			InitialBackoff: DefaultInitialBackoff,
			MaxBackoff:     DefaultMaxBackoff,
			MarkQueueSize:  DefaultMarkQueueSize,
		},
		Chat: ChatConfig{
			Primary: ChatProviderConfig{
				Name:    "gemini",
				Model:   "gemini-2.0-flash",
				Enabled: true,
				Timeout: DefaultChatTimeout,
			},
			Fallback: ChatProviderConfig{
				Name:    "openrouter",
				Model:   "meta-llama/llama-3.3-70b-instruct",
				Enabled: true,
				Timeout: DefaultChatTimeout,
			},
			TripThreshold:    DefaultTripThreshold,
			RecoveryInterval: DefaultRecoveryInterval,
			HistoryLimit:     DefaultHistoryLimit,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Tracing: TracingConfig{
			Enabled:      DefaultTracingEnabled,
			ExporterType: DefaultTracingExporterType,
			SampleRate:   DefaultTracingSampleRate,
			ServiceName:  DefaultTracingServiceName,
		},
	}
}

// Validate checks if the Config is valid, collecting all errors found.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	if err := c.Remote.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("remote: %w", err))
	}

	if err := c.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}

	if err := c.Chat.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chat: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the DatabaseConfig is valid.
func (d *DatabaseConfig) Validate() error {
	if d.BusyTimeout < 0 {
		return errors.New("busy_timeout must not be negative")
	}
	return nil
}

// Validate checks if the RemoteConfig is valid.
func (r *RemoteConfig) Validate() error {
	var errs []error

	if r.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	} else if _, err := url.Parse(r.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid base_url %q: %w", r.BaseURL, err))
	}

	if r.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}

	if r.MaxRetries < 0 {
		errs = append(errs, errors.New("max_retries must not be negative"))
	}

	if r.RetryBaseDelay <= 0 {
		errs = append(errs, errors.New("retry_base_delay must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the SyncConfig is valid.
func (s *SyncConfig) Validate() error {
	var errs []error

	if s.Period <= 0 {
		errs = append(errs, errors.New("period must be positive"))
	}

	if s.Flex < 0 {
		errs = append(errs, errors.New("flex must not be negative"))
	}

	if s.Flex >= s.Period && s.Period > 0 {
		errs = append(errs, errors.New("flex must be shorter than period"))
	}

	if s.InitialBackoff <= 0 {
		errs = append(errs, errors.New("initial_backoff must be positive"))
	}

	if s.MaxBackoff < s.InitialBackoff {
		errs = append(errs, errors.New("max_backoff must not be shorter than initial_backoff"))
	}

	if s.MarkQueueSize <= 0 {
		errs = append(errs, errors.New("mark_queue_size must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the ChatConfig is valid.
func (c *ChatConfig) Validate() error {
	var errs []error

	if err := c.Primary.Validate("primary"); err != nil {
		errs = append(errs, err)
	}

	if err := c.Fallback.Validate("fallback"); err != nil {
		errs = append(errs, err)
	}

	if c.TripThreshold <= 0 {
		errs = append(errs, errors.New("trip_threshold must be positive"))
	}

	if c.RecoveryInterval <= 0 {
		errs = append(errs, errors.New("recovery_interval must be positive"))
	}

	if c.HistoryLimit < 0 {
		errs = append(errs, errors.New("history_limit must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the ChatProviderConfig is valid.
func (p *ChatProviderConfig) Validate(label string) error {
	var errs []error

	if p.Enabled {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required when enabled", label))
		}
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("%s: model is required when enabled", label))
		}
		if p.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("%s: timeout must be positive when enabled", label))
		}
	}

	if p.BaseURL != "" {
		if _, err := url.Parse(p.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid base_url %q: %w", label, p.BaseURL, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the LoggingConfig is valid.
func (l *LoggingConfig) Validate() error {
	var errs []error

	if l.Level != "" && !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", l.Level))
	}

	if l.Format != "" && !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("invalid log format %q: must be one of json, text", l.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the TracingConfig is valid.
func (t *TracingConfig) Validate() error {
	var errs []error

	if t.Enabled {
		if t.ExporterType != "" && !validTracingExporterTypes[t.ExporterType] {
			errs = append(errs, fmt.Errorf("invalid exporter_type %q: must be one of none, stdout, otlp", t.ExporterType))
		}
		if t.ExporterType == "otlp" && t.OTLPEndpoint == "" {
			errs = append(errs, errors.New("otlp_endpoint is required when exporter_type is 'otlp'"))
		}
		if t.SampleRate < 0 || t.SampleRate > 1 {
			errs = append(errs, errors.New("sample_rate must be between 0.0 and 1.0"))
		}
		if t.ServiceName == "" {
			errs = append(errs, errors.New("service_name is required when tracing is enabled"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
