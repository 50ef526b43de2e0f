// Package config loads logmate settings from a YAML file, LOGMATE_*
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Default values.
const (
	DefaultServerAddr        = ":8000"
	DefaultUploadDir         = "uploads"
	DefaultMaxUploadSize     = "512MB"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultCSRF              = true

	DefaultRedisURL       = "redis://localhost:6379/0"
	DefaultRedisQueueKey  = "logmate:tasks"
	DefaultChannelPrefix  = "logmate:events:"
	DefaultRedisMaxActive = 16

	DefaultWorkerConcurrency = 1
	DefaultMaxRetries        = 3
	DefaultRetryBackoff      = 2 * time.Second
	DefaultTaskTimeLimit     = 30 * time.Minute
	DefaultPollInterval      = time.Second

	DefaultBlobPrefix  = "uploads/"
	DefaultBlobTimeout = 30 * time.Second

	DefaultChunkCount = 5
	DefaultGroup      = "logstatus_group"

	DefaultLogLevel = "info"
	DefaultService  = "logmate"
)

// Sentinel errors for Validate.
var (
	ErrInvalidConcurrency   = errors.New("worker.concurrency must be at least 1")
	ErrInvalidMaxRetries    = errors.New("worker.max_retries must not be negative")
	ErrInvalidRetryBackoff  = errors.New("worker.retry_backoff must not be negative")
	ErrInvalidTaskTimeLimit = errors.New("worker.task_time_limit must be positive")
	ErrInvalidChunkCount    = errors.New("processing.chunk_count must be at least 1")
	ErrInvalidChunkDelay    = errors.New("processing.chunk_delay must not be negative")
	ErrEmptyGroup           = errors.New("processing.group must not be empty")
	ErrInvalidUploadSize    = errors.New("server.max_upload_size is not a valid size")
	ErrEmptyUploadDir       = errors.New("server.upload_dir must not be empty")
	ErrEmptyRedisURL        = errors.New("redis.url is required when redis is enabled")
	ErrInvalidBlobTimeout   = errors.New("blob.timeout must be positive")
)

// Config is the top-level configuration struct for logmate.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Store      StoreConfig      `mapstructure:"store"`
	Blob       BlobConfig       `mapstructure:"blob"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP ingress settings.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	UploadDir         string        `mapstructure:"upload_dir"`
	MaxUploadSize     string        `mapstructure:"max_upload_size"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	CSRF              bool          `mapstructure:"csrf"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	// EmbeddedWorkers runs worker loops inside the server when Redis is
	// disabled. Zero uses worker.concurrency.
	EmbeddedWorkers int `mapstructure:"embedded_workers"`
}

// RedisConfig holds the shared queue and event channel settings.
type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	QueueKey      string `mapstructure:"queue_key"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
	MaxActive     int    `mapstructure:"max_active"`
}

// StoreConfig holds job store settings. An empty path keeps jobs in memory.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// BlobConfig holds the S3 location uploads are copied to. An empty bucket
// keeps uploads on the local disk only.
type BlobConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	Region string `mapstructure:"region"`
	// Endpoint overrides the S3 endpoint, e.g. for MinIO.
	Endpoint  string        `mapstructure:"endpoint"`
	PathStyle bool          `mapstructure:"path_style"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether uploads are archived to S3.
func (b BlobConfig) Enabled() bool {
	return b.Bucket != ""
}

// WorkerConfig holds dispatcher settings.
type WorkerConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	TaskTimeLimit time.Duration `mapstructure:"task_time_limit"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
}

// ProcessingConfig holds job controller settings.
type ProcessingConfig struct {
	ChunkCount int           `mapstructure:"chunk_count"`
	ChunkDelay time.Duration `mapstructure:"chunk_delay"`
	Group      string        `mapstructure:"group"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Pretty   bool   `mapstructure:"pretty"`
	SampleN  uint32 `mapstructure:"sample_n"`
	Service  string `mapstructure:"service"`
	Instance string `mapstructure:"instance"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		return ErrEmptyRedisURL
	}
	if c.Blob.Enabled() && c.Blob.Timeout <= 0 {
		return ErrInvalidBlobTimeout
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	return c.validateProcessing()
}

func (c *Config) validateServer() error {
	if c.Server.UploadDir == "" {
		return ErrEmptyUploadDir
	}
	if _, err := c.MaxUploadBytes(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Worker.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.Worker.RetryBackoff < 0 {
		return ErrInvalidRetryBackoff
	}
	if c.Worker.TaskTimeLimit <= 0 {
		return ErrInvalidTaskTimeLimit
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if c.Processing.ChunkCount < 1 {
		return ErrInvalidChunkCount
	}
	if c.Processing.ChunkDelay < 0 {
		return ErrInvalidChunkDelay
	}
	if c.Processing.Group == "" {
		return ErrEmptyGroup
	}
	return nil
}

// MaxUploadBytes parses server.max_upload_size ("512MB", "1GiB", "1048576").
func (c *Config) MaxUploadBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.Server.MaxUploadSize)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUploadSize, c.Server.MaxUploadSize)
	}
	return int64(n), nil
}
