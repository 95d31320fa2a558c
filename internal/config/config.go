// Package config loads and validates evaluation configuration. Settings can
// come from a config file (JSON or YAML, loaded through viper) and are
// merged over built-in defaults; CLI flags override on top.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"crev/internal/location"
	"crev/internal/metrics"
)

// Config represents the complete evaluation configuration.
type Config struct {
	Granularities GranularitiesConfig `json:"granularities" mapstructure:"granularities"`
	Spans         SpansConfig         `json:"spans" mapstructure:"spans"`
	Vacuous       VacuousConfig       `json:"vacuous" mapstructure:"vacuous"`
	Cache         CacheConfig         `json:"cache" mapstructure:"cache"`
	Scip          ScipConfig          `json:"scip" mapstructure:"scip"`
	Workers       int                 `json:"workers" mapstructure:"workers"`
	Logging       LoggingConfig       `json:"logging" mapstructure:"logging"`
}

// GranularitiesConfig toggles the three evaluation granularities.
type GranularitiesConfig struct {
	File   bool `json:"file" mapstructure:"file"`
	Symbol bool `json:"symbol" mapstructure:"symbol"`
	Span   bool `json:"span" mapstructure:"span"`
}

// SpansConfig controls how line spans are measured.
type SpansConfig struct {
	Unit string `json:"unit" mapstructure:"unit"` // "line" or "byte"
}

// VacuousConfig sets the scores used when one side of a comparison is empty.
type VacuousConfig struct {
	EmptyGoldCoverage  float64 `json:"emptyGoldCoverage" mapstructure:"emptyGoldCoverage"`
	EmptyPredPrecision float64 `json:"emptyPredPrecision" mapstructure:"emptyPredPrecision"`
}

// CacheConfig locates the on-disk caches.
type CacheConfig struct {
	ReposDir   string `json:"reposDir" mapstructure:"reposDir"`
	SymbolsDir string `json:"symbolsDir" mapstructure:"symbolsDir"`
}

// ScipConfig configures the optional prebuilt symbol index.
type ScipConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	IndexPath string `json:"indexPath" mapstructure:"indexPath"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Granularities: GranularitiesConfig{
			File:   true,
			Symbol: true,
			Span:   true,
		},
		Spans: SpansConfig{
			Unit: "byte",
		},
		Vacuous: VacuousConfig{
			EmptyGoldCoverage:  1.0,
			EmptyPredPrecision: 1.0,
		},
		Cache: CacheConfig{
			ReposDir:   "./repos",
			SymbolsDir: "./.crev-cache",
		},
		Scip: ScipConfig{
			Enabled:   false,
			IndexPath: "",
		},
		Workers: 4,
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig reads configuration from path. An empty path returns defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext != "" {
		v.SetConfigType(ext)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !c.Granularities.File && !c.Granularities.Symbol && !c.Granularities.Span {
		return &ConfigError{Field: "granularities", Message: "at least one granularity must be enabled"}
	}
	if c.Spans.Unit != "line" && c.Spans.Unit != "byte" {
		return &ConfigError{Field: "spans.unit", Message: "must be \"line\" or \"byte\""}
	}
	for field, val := range map[string]float64{
		"vacuous.emptyGoldCoverage":  c.Vacuous.EmptyGoldCoverage,
		"vacuous.emptyPredPrecision": c.Vacuous.EmptyPredPrecision,
	} {
		if val < 0 || val > 1 {
			return &ConfigError{Field: field, Message: "must be within [0, 1]"}
		}
	}
	if c.Workers < 1 {
		return &ConfigError{Field: "workers", Message: "must be at least 1"}
	}
	if c.Scip.Enabled && c.Scip.IndexPath == "" {
		return &ConfigError{Field: "scip.indexPath", Message: "required when scip is enabled"}
	}
	return nil
}

// MetricsOptions maps the configuration onto scoring options.
func (c *Config) MetricsOptions() metrics.Options {
	opt := metrics.DefaultOptions()
	opt.File = c.Granularities.File
	opt.Symbol = c.Granularities.Symbol
	opt.Span = c.Granularities.Span
	opt.EmptyGoldCoverage = c.Vacuous.EmptyGoldCoverage
	opt.EmptyPredPrecision = c.Vacuous.EmptyPredPrecision
	return opt
}

// SpanUnit returns the configured measurement unit.
func (c *Config) SpanUnit() location.Unit {
	if c.Spans.Unit == "line" {
		return location.UnitLine
	}
	return location.UnitByte
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
