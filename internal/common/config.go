package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment     string          `toml:"environment"`       // "development" or "production"
	DeleteOnStartup []string        `toml:"delete_on_startup"` // data categories (jobs, businesses, exports) reported by ShouldDelete; nothing wipes them at startup
	Storage         StorageConfig   `toml:"storage"`
	Logging         LoggingConfig   `toml:"logging"`
	Scheduler       SchedulerConfig `toml:"scheduler"`
	Adapter         AdapterConfig   `toml:"adapter"`
	Export          ExportConfig    `toml:"export"`
	Catalog         CatalogConfig   `toml:"catalog"`
}

// StorageConfig groups the document-store configuration.
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig is BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path"`             // database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // delete database on startup, for clean test runs
}

// LoggingConfig controls arbor logger setup.
type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default "15:04:05.000"
}

// SchedulerConfig holds the scheduler's default concurrency/delay and the
// background sweep schedules. DefaultConcurrentRequests is only shown in the
// startup banner and DefaultRequestDelay is not read; job admission, catalog
// seeding and the CLI fall back to the package constants
// DefaultConcurrentRequests/DefaultRequestDelay, not these fields.
type SchedulerConfig struct {
	DefaultConcurrentRequests int           `toml:"default_concurrent_requests"`
	DefaultRequestDelay       float64       `toml:"default_request_delay"`
	StaleThreshold            time.Duration `toml:"stale_threshold"`
	StaleSweepSchedule        string        `toml:"stale_sweep_schedule"`        // cron expression; empty disables the sweep
	AutoResumeNetworkPaused   bool          `toml:"auto_resume_network_paused"`  // run ResumeNetworkPaused on the same sweep
}

// AdapterConfig controls the site adapter's HTTP behavior.
type AdapterConfig struct {
	UserAgent         string        `toml:"user_agent"`
	UserAgentRotation bool          `toml:"user_agent_rotation"`
	RequestTimeout    time.Duration `toml:"request_timeout"`
}

// ExportConfig holds defaults for export jobs.
type ExportConfig struct {
	DefaultBatchSize int `toml:"default_batch_size"`
}

// CatalogConfig points at the seed catalog file.
type CatalogConfig struct {
	Path string `toml:"path"`
}

// NewDefaultConfig returns a Config populated with sane defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/badger",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Scheduler: SchedulerConfig{
			DefaultConcurrentRequests: DefaultConcurrentRequests,
			DefaultRequestDelay:       DefaultRequestDelay,
			StaleThreshold:            DefaultStaleThreshold,
			StaleSweepSchedule:        "",
			AutoResumeNetworkPaused:   false,
		},
		Adapter: AdapterConfig{
			UserAgent:         DefaultUserAgents[0],
			UserAgentRotation: true,
			RequestTimeout:    DefaultRequestTimeout,
		},
		Export: ExportConfig{
			DefaultBatchSize: DefaultExportBatchSize,
		},
		Catalog: CatalogConfig{
			Path: "./catalog.json",
		},
	}
}

// LoadFromFiles loads and merges TOML configuration files in order, each
// overriding fields present in the ones before it. Starts from
// NewDefaultConfig so unset fields keep their defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	return config, nil
}

// ApplyEnvOverrides applies a small set of environment variable overrides,
// useful for containerized deployment without a mounted config file.
func ApplyEnvOverrides(config *Config) {
	if v := os.Getenv("YELLO_CRAWL_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("YELLO_CRAWL_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("YELLO_CRAWL_ENVIRONMENT"); v != "" {
		config.Environment = v
	}
}

// IsProduction reports whether the configured environment is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ShouldDelete reports whether the given data category was named in
// delete_on_startup.
func (c *Config) ShouldDelete(category string) bool {
	for _, c := range c.DeleteOnStartup {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}
