package prober

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/APIProbe/internal/output"
	"github.com/PentesterFlow/APIProbe/internal/probe"
	"github.com/PentesterFlow/APIProbe/internal/scope"
)

// CatalogCustom selects Config.CustomParameters as the parameter catalog.
const CatalogCustom = "custom"

// Config holds all prober configuration.
type Config struct {
	// Base URL of the API under analysis
	Target string `json:"target" yaml:"target"`

	// Paths to analyze instead of probing the path catalog
	Endpoints []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`

	// File with one path per line, merged after Endpoints
	EndpointsFile string `json:"endpoints_file,omitempty" yaml:"endpoints_file,omitempty"`

	// Per-request timeout
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Minimum spacing between requests; 0 disables pacing
	Delay time.Duration `json:"delay" yaml:"delay"`

	// Endpoints analyzed in parallel
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// minimal, extensive or custom
	ParameterCatalog string `json:"parameter_catalog" yaml:"parameter_catalog"`

	// Used when ParameterCatalog is "custom"
	CustomParameters probe.Catalog `json:"custom_parameters,omitempty" yaml:"custom_parameters,omitempty"`

	// Depth at which inferred response schemas are cut off
	MaxSchemaDepth int `json:"max_schema_depth" yaml:"max_schema_depth"`

	// Path include/exclude globs
	Scope scope.Rules `json:"scope" yaml:"scope"`

	// Headers sent with every probe
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	UserAgent     string `json:"user_agent" yaml:"user_agent"`
	SkipTLSVerify bool   `json:"skip_tls_verify" yaml:"skip_tls_verify"`

	Output OutputConfig `json:"output" yaml:"output"`
	State  StateConfig  `json:"state" yaml:"state"`

	Verbose bool `json:"verbose" yaml:"verbose"`
	Debug   bool `json:"debug" yaml:"debug"`
}

// OutputConfig controls the files written after a run.
type OutputConfig struct {
	Path    string `json:"path" yaml:"path"`
	Swagger bool   `json:"swagger" yaml:"swagger"`
	// Format of the OpenAPI document; the analysis is always JSON.
	SwaggerFormat string `json:"swagger_format" yaml:"swagger_format"`
	SwaggerPath   string `json:"swagger_path" yaml:"swagger_path"`
	Title         string `json:"title,omitempty" yaml:"title,omitempty"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	// Stream endpoint analyses to stdout as they complete
	Stream bool `json:"stream" yaml:"stream"`
}

// StateConfig controls the run archive.
type StateConfig struct {
	// Archive file; empty disables archiving
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:          10 * time.Second,
		Delay:            100 * time.Millisecond,
		Concurrency:      1,
		ParameterCatalog: probe.CatalogMinimal,
		MaxSchemaDepth:   8,
		UserAgent:        "APIProbe/1.0",
		SkipTLSVerify:    true,
		Output: OutputConfig{
			Path:          "analysis.json",
			SwaggerFormat: string(output.FormatJSON),
			SwaggerPath:   "swagger.json",
		},
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("target URL is required")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	if c.MaxSchemaDepth < 1 {
		return fmt.Errorf("max schema depth must be at least 1")
	}

	if _, err := output.ParseFormat(c.Output.SwaggerFormat); err != nil {
		return err
	}

	if _, err := c.Catalog(); err != nil {
		return err
	}

	return nil
}

// Catalog resolves the parameter catalog.
func (c *Config) Catalog() (probe.Catalog, error) {
	if c.ParameterCatalog == CatalogCustom {
		if len(c.CustomParameters) == 0 {
			return nil, fmt.Errorf("custom parameter catalog is empty")
		}
		if err := c.CustomParameters.Validate(); err != nil {
			return nil, fmt.Errorf("invalid custom parameter catalog: %w", err)
		}
		return c.CustomParameters, nil
	}
	return probe.CatalogByName(c.ParameterCatalog)
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}
