package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg == nil {
		t.Fatal("NewDefaultConfig returned nil")
	}

	// Check remote defaults
	if cfg.Remote.BaseURL != DefaultRemoteBaseURL {
		t.Errorf("expected remote base URL %q, got %q", DefaultRemoteBaseURL, cfg.Remote.BaseURL)
	}
	if cfg.Remote.Timeout != DefaultRemoteTimeout {
		t.Errorf("expected remote timeout %v, got %v", DefaultRemoteTimeout, cfg.Remote.Timeout)
	}
	if cfg.Remote.MaxRetries != DefaultMaxRetries {
		t.Errorf("expected max retries %d, got %d", DefaultMaxRetries, cfg.Remote.MaxRetries)
	}

	// Check sync defaults
	if cfg.Sync.Period != DefaultSyncPeriod {
		t.Errorf("expected sync period %v, got %v", DefaultSyncPeriod, cfg.Sync.Period)
	}
	if cfg.Sync.Flex != DefaultSyncFlex {
		t.Errorf("expected sync flex %v, got %v", DefaultSyncFlex, cfg.Sync.Flex)
	}
	if cfg.Sync.InitialBackoff != DefaultInitialBackoff {
		t.Errorf("expected initial backoff %v, got %v", DefaultInitialBackoff, cfg.Sync.InitialBackoff)
	}
	if cfg.Sync.MarkQueueSize != DefaultMarkQueueSize {
		t.Errorf("expected mark queue size %d, got %d", DefaultMarkQueueSize, cfg.Sync.MarkQueueSize)
	}

	// Check chat defaults
	if !cfg.Chat.Primary.Enabled {
		t.Error("expected primary chat provider to be enabled by default")
	}
	if !cfg.Chat.Fallback.Enabled {
		t.Error("expected fallback chat provider to be enabled by default")
	}
	if cfg.Chat.TripThreshold != DefaultTripThreshold {
		t.Errorf("expected trip threshold %d, got %d", DefaultTripThreshold, cfg.Chat.TripThreshold)
	}

	// Check logging defaults
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("expected log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("expected log format %q, got %q", DefaultLogFormat, cfg.Logging.Format)
	}

	// Check tracing defaults
	if cfg.Tracing.Enabled {
		t.Error("expected tracing to be disabled by default")
	}
	if cfg.Tracing.ServiceName != DefaultTracingServiceName {
		t.Errorf("expected tracing service name %q, got %q", DefaultTracingServiceName, cfg.Tracing.ServiceName)
	}
}

func TestConfig_Validate_DefaultIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid, got error: %v", err)
	}
}

func TestRemoteConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  RemoteConfig
		wantErr bool
	}{
		{
			name: "valid config",
			config: RemoteConfig{
				BaseURL:        "https://api.example.com",
				Timeout:        30 * time.Second,
				MaxRetries:     3,
				RetryBaseDelay: time.Second,
			},
			wantErr: false,
		},
		{
			name: "missing base URL",
			config: RemoteConfig{
				Timeout:        30 * time.Second,
				MaxRetries:     3,
				RetryBaseDelay: time.Second,
			},
			wantErr: true,
		},
		{
			name: "zero timeout",
			config: RemoteConfig{
				BaseURL:        "https://api.example.com",
				MaxRetries:     3,
				RetryBaseDelay: time.Second,
			},
			wantErr: true,
		},
		{
			name: "negative retries",
			config: RemoteConfig{
				BaseURL:        "https://api.example.com",
				Timeout:        30 * time.Second,
				MaxRetries:     -1,
				RetryBaseDelay: time.Second,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSyncConfig_Validate(t *testing.T) {
	valid := SyncConfig{
		Period:         2 * time.Hour,
		Flex:           30 * time.Minute,
		InitialBackoff: 15 * time.Minute,
		MaxBackoff:     2 * time.Hour,
		MarkQueueSize:  256,
	}

	tests := []struct {
		name    string
		mutate  func(*SyncConfig)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*SyncConfig) {},
			wantErr: false,
		},
		{
			name:    "zero period",
			mutate:  func(c *SyncConfig) { c.Period = 0 },
			wantErr: true,
		},
		{
			name:    "negative flex",
			mutate:  func(c *SyncConfig) { c.Flex = -time.Minute },
			wantErr: true,
		},
		{
			name:    "flex longer than period",
			mutate:  func(c *SyncConfig) { c.Flex = 3 * time.Hour },
			wantErr: true,
		},
		{
			name:    "zero initial backoff",
			mutate:  func(c *SyncConfig) { c.InitialBackoff = 0 },
			wantErr: true,
		},
		{
			name:    "max backoff below initial",
			mutate:  func(c *SyncConfig) { c.MaxBackoff = time.Minute },
			wantErr: true,
		},
		{
			name:    "zero mark queue size",
			mutate:  func(c *SyncConfig) { c.MarkQueueSize = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChatProviderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ChatProviderConfig
		wantErr bool
	}{
		{
			name: "valid enabled provider",
			config: ChatProviderConfig{
				Name:    "gemini",
				Model:   "gemini-2.0-flash",
				Enabled: true,
				Timeout: time.Minute,
			},
			wantErr: false,
		},
		{
			name:    "disabled provider needs nothing",
			config:  ChatProviderConfig{Enabled: false},
			wantErr: false,
		},
		{
			name: "enabled without model",
			config: ChatProviderConfig{
				Name:    "gemini",
				Enabled: true,
				Timeout: time.Minute,
			},
			wantErr: true,
		},
		{
			name: "enabled without timeout",
			config: ChatProviderConfig{
				Name:    "gemini",
				Model:   "gemini-2.0-flash",
				Enabled: true,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate("primary")
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid debug level",
			config:  LoggingConfig{Level: "debug", Format: "json"},
			wantErr: false,
		},
		{
			name:    "valid info level",
			config:  LoggingConfig{Level: "info", Format: "text"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			config:  LoggingConfig{Level: "invalid", Format: "json"},
			wantErr: true,
		},
		{
			name:    "invalid log format",
			config:  LoggingConfig{Level: "info", Format: "invalid"},
			wantErr: true,
		},
		{
			name:    "empty values are valid",
			config:  LoggingConfig{},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTracingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  TracingConfig
		wantErr bool
	}{
		{
			name:    "disabled needs nothing",
			config:  TracingConfig{Enabled: false},
			wantErr: false,
		},
		{
			name: "valid stdout exporter",
			config: TracingConfig{
				Enabled:      true,
				ExporterType: "stdout",
				SampleRate:   1.0,
				ServiceName:  "moneta",
			},
			wantErr: false,
		},
		{
			name: "otlp requires endpoint",
			config: TracingConfig{
				Enabled:      true,
				ExporterType: "otlp",
				SampleRate:   1.0,
				ServiceName:  "moneta",
			},
			wantErr: true,
		},
		{
			name: "sample rate out of range",
			config: TracingConfig{
				Enabled:      true,
				ExporterType: "stdout",
				SampleRate:   1.5,
				ServiceName:  "moneta",
			},
			wantErr: true,
		},
		{
			name: "missing service name",
			config: TracingConfig{
				Enabled:      true,
				ExporterType: "stdout",
				SampleRate:   1.0,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_Load_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	loader, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	cfg, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Remote.BaseURL != DefaultRemoteBaseURL {
		t.Errorf("expected default remote base URL, got %q", cfg.Remote.BaseURL)
	}
	want := filepath.Join(dir, DefaultDatabaseFile)
	if cfg.Database.Path != want {
		t.Errorf("expected database path %q, got %q", want, cfg.Database.Path)
	}
}

func TestLoader_LoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
remote:
  base_url: https://sync.example.com
  timeout: 10s
sync:
  period: 1h
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	cfg, err := loader.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Remote.BaseURL != "https://sync.example.com" {
		t.Errorf("expected overridden base URL, got %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.Timeout != 10*time.Second {
		t.Errorf("expected overridden timeout, got %v", cfg.Remote.Timeout)
	}
	if cfg.Sync.Period != time.Hour {
		t.Errorf("expected overridden sync period, got %v", cfg.Sync.Period)
	}
	// Unset fields keep their defaults.
	if cfg.Sync.MarkQueueSize != DefaultMarkQueueSize {
		t.Errorf("expected default mark queue size, got %d", cfg.Sync.MarkQueueSize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected overridden log level, got %q", cfg.Logging.Level)
	}
}

func TestLoader_LoadFromFile_NotFound(t *testing.T) {
	loader, err := NewLoader(t.TempDir())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	if _, err := loader.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoader_SaveAndReload(t *testing.T) {
	dir := t.TempDir()
	loader, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	cfg := NewDefaultConfig()
	cfg.Remote.BaseURL = "https://sync.example.com"
	cfg.Sync.Period = time.Hour

	if err := loader.Save(cfg, ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if reloaded.Remote.BaseURL != cfg.Remote.BaseURL {
		t.Errorf("expected base URL %q, got %q", cfg.Remote.BaseURL, reloaded.Remote.BaseURL)
	}
	if reloaded.Sync.Period != cfg.Sync.Period {
		t.Errorf("expected sync period %v, got %v", cfg.Sync.Period, reloaded.Sync.Period)
	}
}
