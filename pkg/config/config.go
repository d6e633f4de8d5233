// Package config loads the graphquery server configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-graphquery/pkg/logging"
	"github.com/dd0wney/cluso-graphquery/pkg/validation"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

const (
	DefaultTCPAddr      = ":7000"
	DefaultMetricsAddr  = ":9090"
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultNNGWorkers   = 4
)

// Config is the root of the configuration file
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
	Query   QueryConfig   `yaml:"query"`
}

// ServerConfig configures the front-end transports
type ServerConfig struct {
	TCPAddr       string        `yaml:"tcp_addr" validate:"required"`
	NNGAddr       string        `yaml:"nng_addr" validate:"omitempty,startswith=tcp://|startswith=inproc://|startswith=ipc://"`
	NNGWorkers    int           `yaml:"nng_workers" validate:"gte=1,lte=1024"`
	MaxFrameBytes int           `yaml:"max_frame_bytes" validate:"gte=1024"`
	Compression   bool          `yaml:"compression"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

// MetricsConfig configures the HTTP endpoint serving /metrics and /health
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig configures the process logger
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// QueryConfig bounds query results. Zero disables a bound.
type QueryConfig struct {
	DefaultLimit int `yaml:"default_limit" validate:"gte=0"`
	MaxLimit     int `yaml:"max_limit" validate:"gte=0"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path, applies defaults and the LOG_LEVEL override, and validates
// the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Server.TCPAddr = validation.DefaultOr(c.Server.TCPAddr, DefaultTCPAddr)
	c.Server.NNGWorkers = validation.DefaultOr(c.Server.NNGWorkers, DefaultNNGWorkers)
	c.Server.MaxFrameBytes = validation.DefaultOr(c.Server.MaxFrameBytes, wire.DefaultMaxFrameBytes)
	c.Server.ReadTimeout = validation.DefaultOrDuration(c.Server.ReadTimeout, DefaultReadTimeout)
	c.Server.WriteTimeout = validation.DefaultOrDuration(c.Server.WriteTimeout, DefaultWriteTimeout)
	c.Metrics.Addr = validation.DefaultOr(c.Metrics.Addr, DefaultMetricsAddr)
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		c.Logging.Level = env
	}
	c.Logging.Level = strings.ToLower(validation.DefaultOr(c.Logging.Level, "info"))
}

// Validate checks struct tags, then ranges and cross-field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	if err := validation.NewConfigValidator("server").
		Address("tcp_addr", c.Server.TCPAddr).
		RangeInt("max_frame_bytes", c.Server.MaxFrameBytes, 1024, 1<<30).
		MinDuration("read_timeout", c.Server.ReadTimeout, time.Millisecond).
		MinDuration("write_timeout", c.Server.WriteTimeout, time.Millisecond).
		Validate(); err != nil {
		return err
	}

	if err := validation.NewConfigValidator("metrics").
		When(c.Metrics.Enabled, func(cv *validation.ConfigValidator) {
			cv.Address("addr", c.Metrics.Addr)
		}).
		Validate(); err != nil {
		return err
	}

	if err := validation.NewConfigValidator("logging").
		Custom("level", func() error {
			_, err := logging.ParseLevel(c.Logging.Level)
			return err
		}).
		Validate(); err != nil {
		return err
	}

	return validation.NewConfigValidator("query").
		AtMost("default_limit", c.Query.DefaultLimit, "max_limit", c.Query.MaxLimit).
		Validate()
}

// LogLevel returns the parsed logging level
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return level
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: field is required", fe.Namespace()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s: must be at least %s", fe.Namespace(), fe.Param()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("%s: must not exceed %s", fe.Namespace(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: validation failed (%s)", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
