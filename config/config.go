// Package config loads executor, retry, logging and RabbitMQ settings using
// Viper.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sowinskl/go-syscmd/logging"
)

// EnvPrefix prefixes environment overrides, e.g. SYSCMD_RETRY_ATTEMPTS.
const EnvPrefix = "SYSCMD"

// Config holds the application configuration.
type Config struct {
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq" yaml:"rabbitmq"`
}

// ExecutorConfig holds command execution defaults.
type ExecutorConfig struct {
	// DefaultTimeout applies when no timeout is given. Negative means no
	// bound, zero means no watchdog.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
}

// RetryConfig holds retry policy defaults.
type RetryConfig struct {
	// Attempts is the total number of runs of a failing command in
	// `sysexec run`, the first one included.
	Attempts     int           `mapstructure:"attempts" yaml:"attempts"`
	Delay        time.Duration `mapstructure:"delay" yaml:"delay"`
	WaitAttempts int           `mapstructure:"wait_attempts" yaml:"wait_attempts"`
	WaitDelay    time.Duration `mapstructure:"wait_delay" yaml:"wait_delay"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	CommandLog string `mapstructure:"command_log" yaml:"command_log"`
}

// RabbitMQConfig holds the optional audit and remote stop settings. An empty
// URL disables RabbitMQ.
type RabbitMQConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	AppName        string        `mapstructure:"app_name" yaml:"app_name"`
	Exchange       string        `mapstructure:"exchange" yaml:"exchange"`
	RoutingKey     string        `mapstructure:"routing_key" yaml:"routing_key"`
	StopQueue      string        `mapstructure:"stop_queue" yaml:"stop_queue"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	RetryMax       int           `mapstructure:"retry_max" yaml:"retry_max"`
	RetryStart     time.Duration `mapstructure:"retry_start" yaml:"retry_start"`
}

// Logging converts the log section for the logging package.
func (c LogConfig) Logging() logging.Config {
	return logging.Config{Level: c.Level, Format: c.Format, CommandLog: c.CommandLog}
}

// Enabled reports whether RabbitMQ is configured.
func (c RabbitMQConfig) Enabled() bool {
	return c.URL != ""
}

// Load reads configuration from file and environment. With an empty path the
// file is looked up as ~/.syscmd/config.yaml and may be absent.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".syscmd"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("executor.default_timeout", "-1ns")

	v.SetDefault("retry.attempts", 1)
	v.SetDefault("retry.delay", "1s")
	v.SetDefault("retry.wait_attempts", 10)
	v.SetDefault("retry.wait_delay", "1s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatText)
	v.SetDefault("log.command_log", "")

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.app_name", "sysexec")
	v.SetDefault("rabbitmq.exchange", "syscmd.audit")
	v.SetDefault("rabbitmq.routing_key", "syscmd.command")
	v.SetDefault("rabbitmq.stop_queue", "")
	v.SetDefault("rabbitmq.reconnect_delay", "1s")
	v.SetDefault("rabbitmq.retry_max", 3)
	v.SetDefault("rabbitmq.retry_start", "1s")
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("%w: retry.attempts must be > 0, got %d", ErrInvalid, c.Retry.Attempts)
	}
	if c.Retry.WaitAttempts <= 0 {
		return fmt.Errorf("%w: retry.wait_attempts must be > 0, got %d", ErrInvalid, c.Retry.WaitAttempts)
	}
	if c.Retry.Delay < 0 || c.Retry.WaitDelay < 0 {
		return fmt.Errorf("%w: retry delays must not be negative", ErrInvalid)
	}
	switch c.Log.Format {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: unknown log.format %q", ErrInvalid, c.Log.Format)
	}
	if c.RabbitMQ.RetryMax < 0 {
		return fmt.Errorf("%w: rabbitmq.retry_max must not be negative", ErrInvalid)
	}
	return nil
}

// Dump writes cfg as YAML.
func Dump(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
