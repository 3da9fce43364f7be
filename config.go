package corrstream

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines pipeline configuration.
type Config struct {
	// Ingest configures the record source and poll cycle.
	Ingest IngestConfig

	// Classifier holds the adaptive severity thresholds.
	Classifier ClassifierConfig

	// Context is the initial severity context; it can be replaced at
	// runtime via Pipeline.SetSeverityContext.
	Context SeverityContext

	// HTTP configures the query API served to the presentation layer.
	HTTP HTTPConfig

	// Stream configures WebSocket streaming of committed insights.
	Stream StreamConfig

	// Audit configures the SQLite insight-history log.
	Audit AuditConfig
}

// IngestConfig groups record-source and polling settings.
type IngestConfig struct {
	// Path is the local NDJSON file to tail. Ignored when S3 is set.
	Path string

	// S3 reads the stream from object storage instead of a local file.
	S3 *S3SourceConfig

	// PollInterval is how often the poller checks for new records.
	// Default: 30 seconds.
	PollInterval time.Duration

	// BucketSize is the time-bucket width used for id derivation and
	// alignment display. Must be 30s or 60s. Default: 60s.
	BucketSize time.Duration

	// Retry configures retry behavior for source reads.
	Retry RetryConfig

	// BreakerFailures is how many consecutive failed cycles open the
	// source circuit breaker. Default: 5.
	BreakerFailures int

	// BreakerReset is how long an open breaker waits before a probe read.
	// Default: 2 minutes.
	BreakerReset time.Duration
}

// HTTPConfig groups HTTP server settings.
type HTTPConfig struct {
	// Enabled turns on the HTTP API server. Default: false.
	Enabled bool

	// Port is the listen port. Default: 8099.
	Port int
}

// AuditConfig groups insight-history settings.
type AuditConfig struct {
	// Enabled turns on the SQLite audit log. Default: false.
	Enabled bool

	// Path is the SQLite database file. Default: "corrstream_audit.db".
	Path string

	// KeyPassword, when set, encrypts stored payloads at rest with a key
	// derived via PBKDF2.
	KeyPassword string
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Ingest: IngestConfig{
			PollInterval:    30 * time.Second,
			BucketSize:      60 * time.Second,
			Retry:           DefaultRetryConfig(),
			BreakerFailures: 5,
			BreakerReset:    2 * time.Minute,
		},
		Classifier: DefaultClassifierConfig(),
		HTTP: HTTPConfig{
			Enabled: false,
			Port:    8099,
		},
		Stream: DefaultStreamConfig(),
		Audit: AuditConfig{
			Enabled: false,
			Path:    "corrstream_audit.db",
		},
	}
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.Ingest.BucketSize != 30*time.Second && c.Ingest.BucketSize != 60*time.Second {
		return fmt.Errorf("bucket size must be 30s or 60s, got %s", c.Ingest.BucketSize)
	}
	if c.Ingest.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Ingest.PollInterval)
	}
	if err := c.Classifier.Validate(); err != nil {
		return err
	}
	return c.Context.Validate()
}

// fileConfig is the YAML-friendly shape of Config; durations are strings
// like "30s".
type fileConfig struct {
	Ingest struct {
		Path         string          `yaml:"path"`
		S3           *S3SourceConfig `yaml:"s3,omitempty"`
		PollInterval string          `yaml:"poll_interval"`
		BucketSize   string          `yaml:"bucket_size"`
	} `yaml:"ingest"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Context    SeverityContext  `yaml:"context"`
	HTTP       struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"http"`
	Audit struct {
		Enabled     bool   `yaml:"enabled"`
		Path        string `yaml:"path"`
		KeyPassword string `yaml:"key_password"`
	} `yaml:"audit"`
}

// LoadConfig reads a YAML configuration file, applying defaults for any
// omitted field.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read config file: %w", err)
	}

	var fc fileConfig
	fc.Classifier = cfg.Classifier
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("cannot parse config file: %w", err)
	}

	cfg.Ingest.Path = fc.Ingest.Path
	cfg.Ingest.S3 = fc.Ingest.S3
	if fc.Ingest.PollInterval != "" {
		d, err := time.ParseDuration(fc.Ingest.PollInterval)
		if err != nil {
			return cfg, fmt.Errorf("invalid poll_interval: %w", err)
		}
		cfg.Ingest.PollInterval = d
	}
	if fc.Ingest.BucketSize != "" {
		d, err := time.ParseDuration(fc.Ingest.BucketSize)
		if err != nil {
			return cfg, fmt.Errorf("invalid bucket_size: %w", err)
		}
		cfg.Ingest.BucketSize = d
	}
	cfg.Classifier = fc.Classifier
	cfg.Context = fc.Context
	cfg.HTTP.Enabled = fc.HTTP.Enabled
	if fc.HTTP.Port != 0 {
		cfg.HTTP.Port = fc.HTTP.Port
	}
	cfg.Audit.Enabled = fc.Audit.Enabled
	if fc.Audit.Path != "" {
		cfg.Audit.Path = fc.Audit.Path
	}
	cfg.Audit.KeyPassword = fc.Audit.KeyPassword

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
