package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = "logmate"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for logmate settings.
const envPrefix = "LOGMATE"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD, $HOME and /etc/logmate.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	// REDIS_URL is honoured for deployments that already export it.
	if err := viperCfg.BindEnv("redis.url", "LOGMATE_REDIS_URL", "REDIS_URL"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
		viperCfg.AddConfigPath("/etc/logmate")
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	if cfg.Logging.Instance == "" {
		cfg.Logging.Instance, _ = os.Hostname()
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("server.addr", DefaultServerAddr)
	viperCfg.SetDefault("server.upload_dir", DefaultUploadDir)
	viperCfg.SetDefault("server.max_upload_size", DefaultMaxUploadSize)
	viperCfg.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	viperCfg.SetDefault("server.csrf", DefaultCSRF)
	viperCfg.SetDefault("server.read_header_timeout", DefaultReadHeaderTimeout)
	viperCfg.SetDefault("server.embedded_workers", 0)

	viperCfg.SetDefault("redis.enabled", false)
	viperCfg.SetDefault("redis.url", DefaultRedisURL)
	viperCfg.SetDefault("redis.queue_key", DefaultRedisQueueKey)
	viperCfg.SetDefault("redis.channel_prefix", DefaultChannelPrefix)
	viperCfg.SetDefault("redis.max_active", DefaultRedisMaxActive)

	viperCfg.SetDefault("store.path", "")

	viperCfg.SetDefault("blob.bucket", "")
	viperCfg.SetDefault("blob.prefix", DefaultBlobPrefix)
	viperCfg.SetDefault("blob.region", "")
	viperCfg.SetDefault("blob.endpoint", "")
	viperCfg.SetDefault("blob.path_style", false)
	viperCfg.SetDefault("blob.timeout", DefaultBlobTimeout)

	viperCfg.SetDefault("worker.concurrency", DefaultWorkerConcurrency)
	viperCfg.SetDefault("worker.max_retries", DefaultMaxRetries)
	viperCfg.SetDefault("worker.retry_backoff", DefaultRetryBackoff)
	viperCfg.SetDefault("worker.task_time_limit", DefaultTaskTimeLimit)
	viperCfg.SetDefault("worker.poll_interval", DefaultPollInterval)

	viperCfg.SetDefault("processing.chunk_count", DefaultChunkCount)
	viperCfg.SetDefault("processing.chunk_delay", time.Duration(0))
	viperCfg.SetDefault("processing.group", DefaultGroup)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.pretty", false)
	viperCfg.SetDefault("logging.sample_n", 0)
	viperCfg.SetDefault("logging.service", DefaultService)
	viperCfg.SetDefault("logging.instance", "")
}
