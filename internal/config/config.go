// Package config provides configuration loading for the compass tools.
// Values come from an optional YAML file and are overridden by COMPASS_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/signalsfoundry/compass-survey/internal/logging"
	"github.com/signalsfoundry/compass-survey/internal/observability"
)

// Configuration errors.
var (
	ErrInvalidLogLevel     = errors.New("log_level must be one of debug, info, warn, error")
	ErrInvalidLogFormat    = errors.New("log_format must be text or json")
	ErrInvalidEncoding     = errors.New("encoding must be auto, utf-8 or windows-1252")
	ErrInvalidConcurrency  = errors.New("concurrency must be at least 1")
	ErrInvalidExporter     = errors.New("tracing_exporter must be stdout or otlp")
	ErrMissingOTLPEndpoint = errors.New("otlp_endpoint is required when tracing_exporter is otlp")
	ErrInvalidSampleRatio  = errors.New("tracing_sample_ratio must be between 0 and 1")
	ErrInvalidValue        = errors.New("invalid environment value")
)

// Default values.
const (
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultEncoding        = "auto"
	DefaultMetricsAddr     = ":9464"
	DefaultCatalogPath     = "compass.db"
	DefaultTracingExporter = "stdout"
	DefaultServiceName     = "compass"
	DefaultSampleRatio     = 1.0
)

// Config holds all settings for the compass tools.
type Config struct {
	LogLevel    string `koanf:"log_level"`
	LogFormat   string `koanf:"log_format"`
	Encoding    string `koanf:"encoding"`
	Concurrency int    `koanf:"concurrency"`
	MetricsAddr string `koanf:"metrics_addr"`
	CatalogPath string `koanf:"catalog_path"`

	TracingEnabled     bool    `koanf:"tracing_enabled"`
	TracingExporter    string  `koanf:"tracing_exporter"`
	TracingServiceName string  `koanf:"tracing_service_name"`
	OTLPEndpoint       string  `koanf:"otlp_endpoint"`
	TracingSampleRatio float64 `koanf:"tracing_sample_ratio"`
}

// Option overrides a setting after the file and environment are read,
// before validation.
type Option func(*Config)

// WithLogLevel overrides log_level when level is not empty.
func WithLogLevel(level string) Option {
	return func(c *Config) {
		if level != "" {
			c.LogLevel = strings.ToLower(level)
		}
	}
}

// WithLogFormat overrides log_format when format is not empty.
func WithLogFormat(format string) Option {
	return func(c *Config) {
		if format != "" {
			c.LogFormat = strings.ToLower(format)
		}
	}
}

// Load reads configuration from the YAML file at path, if path is not
// empty, applies environment overrides and then opts. It returns the
// config and every problem found; the config is usable only when the slice
// is empty.
func Load(path string, opts ...Option) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("failed to load config file %s: %w", path, err))
		}
	}

	concurrency := runtime.GOMAXPROCS(0)
	if k.Exists("concurrency") {
		concurrency = k.Int("concurrency")
	}
	concurrency, err := getEnvIntOrDefault("COMPASS_CONCURRENCY", concurrency)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	ratio := DefaultSampleRatio
	if k.Exists("tracing_sample_ratio") {
		ratio = k.Float64("tracing_sample_ratio")
	}
	ratio, err = getEnvFloatOrDefault("COMPASS_TRACING_SAMPLE_RATIO", ratio)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	tracing, err := getEnvBoolOrDefault("COMPASS_TRACING_ENABLED", k.Bool("tracing_enabled"))
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		LogLevel:           strings.ToLower(getEnvOrDefault("COMPASS_LOG_LEVEL", k.String("log_level"), DefaultLogLevel)),
		LogFormat:          strings.ToLower(getEnvOrDefault("COMPASS_LOG_FORMAT", k.String("log_format"), DefaultLogFormat)),
		Encoding:           strings.ToLower(getEnvOrDefault("COMPASS_ENCODING", k.String("encoding"), DefaultEncoding)),
		Concurrency:        concurrency,
		MetricsAddr:        getEnvOrDefault("COMPASS_METRICS_ADDR", k.String("metrics_addr"), DefaultMetricsAddr),
		CatalogPath:        getEnvOrDefault("COMPASS_CATALOG_PATH", k.String("catalog_path"), DefaultCatalogPath),
		TracingEnabled:     tracing,
		TracingExporter:    strings.ToLower(getEnvOrDefault("COMPASS_TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter)),
		TracingServiceName: getEnvOrDefault("COMPASS_TRACING_SERVICE_NAME", k.String("tracing_service_name"), DefaultServiceName),
		OTLPEndpoint:       getEnvOrDefault("COMPASS_OTLP_ENDPOINT", k.String("otlp_endpoint"), ""),
		TracingSampleRatio: ratio,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg, append(loadErrs, cfg.Validate()...)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise fallback.
// An unparsable value keeps fallback and reports ErrInvalidValue.
func getEnvIntOrDefault(envKey string, fallback int) (int, error) {
	val := os.Getenv(envKey)
	if val == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidValue)
	}
	return i, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise fallback.
// An unparsable value keeps fallback and reports ErrInvalidValue.
func getEnvFloatOrDefault(envKey string, fallback float64) (float64, error) {
	val := os.Getenv(envKey)
	if val == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a valid float: %w", envKey, ErrInvalidValue)
	}
	return f, nil
}

// getEnvBoolOrDefault returns the environment variable as bool if set, otherwise the koanf value.
func getEnvBoolOrDefault(envKey string, koanfVal bool) (bool, error) {
	val := os.Getenv(envKey)
	if val == "" {
		return koanfVal, nil
	}
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s must be a boolean: %w", envKey, ErrInvalidValue)
	}
}

// Validate checks every setting and returns all problems found.
func (c *Config) Validate() []error {
	var errs []error

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ErrInvalidLogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, ErrInvalidLogFormat)
	}
	switch c.Encoding {
	case "auto", "utf-8", "utf8", "windows-1252", "cp1252":
	default:
		errs = append(errs, ErrInvalidEncoding)
	}
	if c.Concurrency < 1 {
		errs = append(errs, ErrInvalidConcurrency)
	}
	switch c.TracingExporter {
	case "stdout":
	case "otlp":
		if c.TracingEnabled && c.OTLPEndpoint == "" {
			errs = append(errs, ErrMissingOTLPEndpoint)
		}
	default:
		errs = append(errs, ErrInvalidExporter)
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		errs = append(errs, ErrInvalidSampleRatio)
	}

	return errs
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat}
}

// TracingConfig returns the tracing settings.
func (c *Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.TracingEnabled,
		ServiceName: c.TracingServiceName,
		Exporter:    c.TracingExporter,
		Endpoint:    c.OTLPEndpoint,
		SampleRatio: c.TracingSampleRatio,
	}
}

// LogSummary returns the configuration as strings suitable for logging.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"log_level":            c.LogLevel,
		"log_format":           c.LogFormat,
		"encoding":             c.Encoding,
		"concurrency":          strconv.Itoa(c.Concurrency),
		"metrics_addr":         c.MetricsAddr,
		"catalog_path":         c.CatalogPath,
		"tracing_enabled":      strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":     c.TracingExporter,
		"otlp_endpoint":        c.OTLPEndpoint,
		"tracing_sample_ratio": strconv.FormatFloat(c.TracingSampleRatio, 'f', -1, 64),
	}
}
