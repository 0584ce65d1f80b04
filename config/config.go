// Package config loads the YAML configuration of a jsongate deployment and
// turns it into an immutable ingestion pipeline.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen       = ":8080"
	defaultMaxBodyBytes = 10 << 20
	defaultVerbosity    = 1
	defaultDebounceMs   = 250
)

// LimitsConfig holds the structural limits. A nil field is unbounded.
type LimitsConfig struct {
	MaxStringLength *int `yaml:"max_string_length"`
	MaxChildren     *int `yaml:"max_children"`
	MaxDepth        *int `yaml:"max_depth"`
}

// SchemaConfig selects the schema binding. File and ByRootProperty are
// mutually exclusive; with neither set no schema is applied.
type SchemaConfig struct {
	File           string            `yaml:"file"`
	ByRootProperty map[string]string `yaml:"by_root_property"`
	// AssertFormat turns the "format" keyword into an assertion.
	AssertFormat bool `yaml:"assert_format"`
}

type HTTPConfig struct {
	Listen       string `yaml:"listen"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	// Verbosity is the number of error cause levels revealed to clients.
	Verbosity int      `yaml:"verbosity"`
	Accept    []string `yaml:"accept"`
	// SchemaViolationStatus is 400 (default) or 422.
	SchemaViolationStatus int `yaml:"schema_violation_status"`
}

type ReloadConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// Lang selects the message language of error payloads ("en"/"ja").
	Lang string `yaml:"lang"`
}

// Config is the decoded configuration file.
type Config struct {
	Limits  LimitsConfig  `yaml:"limits"`
	Schema  SchemaConfig  `yaml:"schema"`
	HTTP    HTTPConfig    `yaml:"http"`
	Reload  ReloadConfig  `yaml:"reload"`
	Logging LoggingConfig `yaml:"logging"`

	// baseDir resolves relative schema paths.
	baseDir string
	raw     []byte
}

// Load reads and validates the configuration file at path. Relative schema
// paths resolve against the file's directory.
func Load(path string) (*Config, error) {
	// #nosec G304 -- path is provided by trusted config/flag.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates configuration bytes. Unknown keys are errors.
func Parse(data []byte, baseDir string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	cfg.baseDir = baseDir
	cfg.raw = append([]byte(nil), data...)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		cfg.HTTP.Listen = defaultListen
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.HTTP.Verbosity == 0 {
		cfg.HTTP.Verbosity = defaultVerbosity
	}
	if cfg.HTTP.SchemaViolationStatus == 0 {
		cfg.HTTP.SchemaViolationStatus = 400
	}
	if cfg.Reload.DebounceMs <= 0 {
		cfg.Reload.DebounceMs = defaultDebounceMs
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Lang == "" {
		cfg.Logging.Lang = "en"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("JSONGATE_LISTEN")); v != "" {
		cfg.HTTP.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("JSONGATE_VERBOSITY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Verbosity = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("JSONGATE_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

func validate(cfg *Config) error {
	for name, v := range map[string]*int{
		"limits.max_string_length": cfg.Limits.MaxStringLength,
		"limits.max_children":      cfg.Limits.MaxChildren,
		"limits.max_depth":         cfg.Limits.MaxDepth,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d (omit it for unbounded)", name, *v)
		}
	}
	if cfg.Schema.File != "" && len(cfg.Schema.ByRootProperty) > 0 {
		return errors.New("schema.file and schema.by_root_property are mutually exclusive")
	}
	for k, v := range cfg.Schema.ByRootProperty {
		if k == "" {
			return errors.New("schema.by_root_property: empty property name")
		}
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("schema.by_root_property.%s: empty schema path", k)
		}
	}
	if cfg.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must not be negative, got %d", cfg.HTTP.MaxBodyBytes)
	}
	if cfg.HTTP.Verbosity < 0 {
		return fmt.Errorf("http.verbosity must not be negative, got %d", cfg.HTTP.Verbosity)
	}
	if s := cfg.HTTP.SchemaViolationStatus; s != 400 && s != 422 {
		return fmt.Errorf("http.schema_violation_status must be 400 or 422, got %d", s)
	}
	switch cfg.Logging.Lang {
	case "en", "ja":
	default:
		return fmt.Errorf("logging.lang must be en or ja, got %q", cfg.Logging.Lang)
	}
	return nil
}

// SchemaFiles returns the resolved schema paths in a stable order.
func (c *Config) SchemaFiles() []string {
	if c.Schema.File != "" {
		return []string{c.resolve(c.Schema.File)}
	}
	keys := make([]string, 0, len(c.Schema.ByRootProperty))
	for k := range c.Schema.ByRootProperty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	seen := map[string]bool{}
	for _, k := range keys {
		p := c.resolve(c.Schema.ByRootProperty[k])
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}
	return filepath.Join(c.baseDir, p)
}
