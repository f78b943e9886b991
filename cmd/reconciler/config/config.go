// Package config loads the service configuration and builds the engine
// and its collaborators from it.
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"inventory-reconciliation-service/internal/api"
	"inventory-reconciliation-service/internal/locations"
	"inventory-reconciliation-service/internal/parsers"
	"inventory-reconciliation-service/internal/reconciler"
	"inventory-reconciliation-service/internal/reporter"
	"inventory-reconciliation-service/pkg/errors"
	"inventory-reconciliation-service/pkg/logger"
)

// Source drivers.
const (
	DriverCSV      = "csv"
	DriverPostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Sources        SourcesConfig        `mapstructure:"sources"`
	Locations      LocationsConfig      `mapstructure:"locations"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SourcesConfig selects and configures both adapters.
type SourcesConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	SourceA      SourceConfig  `mapstructure:"source_a"`
	SourceB      SourceConfig  `mapstructure:"source_b"`
}

// SourceConfig configures one adapter. File is used by the csv driver and
// DSN by the postgres driver.
type SourceConfig struct {
	Driver           string            `mapstructure:"driver"`
	File             string            `mapstructure:"file"`
	DSN              string            `mapstructure:"dsn"`
	Delimiter        string            `mapstructure:"delimiter"`
	DecimalSeparator string            `mapstructure:"decimal_separator"`
	ColumnAliases    map[string]string `mapstructure:"column_aliases"`
}

// LocationsConfig holds the static location tables.
type LocationsConfig struct {
	// Mapping maps each Source-A location code to its Source-B code.
	Mapping        map[string]string  `mapstructure:"mapping"`
	Buffers        map[string]float64 `mapstructure:"buffers"`
	SourceBBuffers map[string]float64 `mapstructure:"source_b_buffers"`
	DefaultBuffer  float64            `mapstructure:"default_buffer"`
}

// ReconciliationConfig holds classification and paging settings.
type ReconciliationConfig struct {
	WarningThreshold  float64 `mapstructure:"warning_threshold"`
	CriticalThreshold float64 `mapstructure:"critical_threshold"`
	DefaultLimit      int     `mapstructure:"default_limit"`
	MaxLimit          int     `mapstructure:"max_limit"`
}

// CacheConfig configures the optional Redis row-set cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LoggingConfig configures pkg/logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	File   string `mapstructure:"file"`
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	engine := reconciler.DefaultConfig()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("sources.fetch_timeout", engine.FetchTimeout.String())
	v.SetDefault("sources.source_a.driver", DriverCSV)
	v.SetDefault("sources.source_a.delimiter", ",")
	v.SetDefault("sources.source_a.decimal_separator", ".")
	v.SetDefault("sources.source_b.driver", DriverCSV)
	v.SetDefault("sources.source_b.delimiter", ",")
	v.SetDefault("sources.source_b.decimal_separator", ".")

	v.SetDefault("locations.default_buffer", locations.DefaultBuffer.InexactFloat64())

	v.SetDefault("reconciliation.warning_threshold", engine.WarningThreshold.InexactFloat64())
	v.SetDefault("reconciliation.critical_threshold", engine.CriticalThreshold.InexactFloat64())
	v.SetDefault("reconciliation.default_limit", engine.DefaultLimit)
	v.SetDefault("reconciliation.max_limit", engine.MaxLimit)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", "60s")

	v.SetDefault("logging.level", string(logger.InfoLevel))
	v.SetDefault("logging.format", string(logger.TextFormat))
	v.SetDefault("logging.output", string(logger.StderrOutput))
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "config", nil, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that cannot be checked by the component
// constructors.
func (c *Config) Validate() error {
	if err := c.Sources.SourceA.validate("sources.source_a"); err != nil {
		return err
	}
	if err := c.Sources.SourceB.validate("sources.source_b"); err != nil {
		return err
	}
	if c.Sources.FetchTimeout <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "sources.fetch_timeout", c.Sources.FetchTimeout.String(), nil)
	}
	if len(c.Locations.Mapping) == 0 {
		return errors.ConfigurationError(errors.CodeMissingConfig, "locations.mapping", nil, nil).
			WithSuggestion("add a locations.mapping table of source A code to source B code")
	}
	if c.Cache.Enabled {
		if strings.TrimSpace(c.Cache.RedisURL) == "" {
			return errors.ConfigurationError(errors.CodeMissingConfig, "cache.redis_url", nil, nil)
		}
		if c.Cache.TTL <= 0 {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "cache.ttl", c.Cache.TTL.String(), nil)
		}
	}
	return nil
}

func (s SourceConfig) validate(setting string) error {
	switch s.Driver {
	case DriverCSV:
		if strings.TrimSpace(s.File) == "" {
			return errors.ConfigurationError(errors.CodeMissingConfig, setting+".file", nil, nil).
				WithSuggestion("set the path of the CSV export for the csv driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(s.DSN) == "" {
			return errors.ConfigurationError(errors.CodeMissingConfig, setting+".dsn", nil, nil).
				WithSuggestion("set a postgres connection string for the postgres driver")
		}
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, setting+".driver", s.Driver, nil).
			WithSuggestion("driver must be csv or postgres")
	}
	return nil
}

// ParserConfig returns the CSV parser configuration of s.
func (s SourceConfig) ParserConfig() (*parsers.SourceParserConfig, error) {
	config := parsers.DefaultSourceParserConfig()
	if s.Delimiter != "" {
		if utf8.RuneCountInString(s.Delimiter) != 1 {
			return nil, fmt.Errorf("delimiter must be a single character, got %q", s.Delimiter)
		}
		config.Delimiter, _ = utf8.DecodeRuneInString(s.Delimiter)
	}
	if s.DecimalSeparator != "" {
		if utf8.RuneCountInString(s.DecimalSeparator) != 1 {
			return nil, fmt.Errorf("decimal separator must be a single character, got %q", s.DecimalSeparator)
		}
		config.DecimalSeparator, _ = utf8.DecodeRuneInString(s.DecimalSeparator)
	}
	for standard, alias := range s.ColumnAliases {
		config.ColumnAliases[strings.ToLower(standard)] = alias
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// BuildMapper creates the location mapper.
func (c *Config) BuildMapper() (*locations.Mapper, error) {
	mapper, err := locations.NewMapper(c.Locations.Mapping)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "locations.mapping", nil, err)
	}
	return mapper, nil
}

// BuildBuffers creates the buffer tables.
func (c *Config) BuildBuffers() (*locations.Buffers, error) {
	buffers, err := locations.NewBuffers(c.Locations.Buffers, c.Locations.SourceBBuffers, c.Locations.DefaultBuffer)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "locations.buffers", nil, err)
	}
	return buffers, nil
}

// ReconcilerConfig returns the engine configuration.
func (c *Config) ReconcilerConfig() (*reconciler.Config, error) {
	config := &reconciler.Config{
		WarningThreshold:  decimal.NewFromFloat(c.Reconciliation.WarningThreshold),
		CriticalThreshold: decimal.NewFromFloat(c.Reconciliation.CriticalThreshold),
		DefaultLimit:      c.Reconciliation.DefaultLimit,
		MaxLimit:          c.Reconciliation.MaxLimit,
		FetchTimeout:      c.Sources.FetchTimeout,
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciliation", nil, err)
	}
	return config, nil
}

// LoggerConfig returns the logger configuration. verbose forces debug level.
func (c *Config) LoggerConfig(verbose bool) *logger.Config {
	config := &logger.Config{
		Level:      logger.Level(strings.ToLower(c.Logging.Level)),
		Format:     logger.Format(strings.ToLower(c.Logging.Format)),
		Output:     logger.Output(strings.ToLower(c.Logging.Output)),
		File:       c.Logging.File,
		CallerInfo: verbose,
	}
	if verbose {
		config.Level = logger.DebugLevel
	}
	return config
}

// APIServerConfig returns the HTTP listener settings.
func (c *Config) APIServerConfig() api.ServerConfig {
	return api.ServerConfig{
		Address:         c.Server.Address,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
	}
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch format {
	case "json":
		config.Format = reporter.FormatJSON
	default:
		config.Format = reporter.OutputFormat(format)
		config.IncludeLocations = true
		config.IncludeMetadata = true
	}

	return config
}
