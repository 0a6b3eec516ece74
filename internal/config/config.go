// Package config loads plantsearch configuration from defaults, YAML files,
// a .env file and PLANTSEARCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
	"github.com/Aman-CERP/plantsearch/internal/logging"
)

// ProjectConfigName is the project-level config file name.
const ProjectConfigName = ".plantsearch.yaml"

// Flush policies control when written documents become searchable.
const (
	FlushDocument = "document"
	FlushBatch    = "batch"
	FlushRun      = "run"
)

// Rebuild modes control how the index is replaced during a refresh.
const (
	RebuildInPlace = "in_place"
	RebuildShadow  = "shadow"
)

// Config represents the complete plantsearch configuration.
type Config struct {
	Version    int            `yaml:"version" json:"version"`
	Store      StoreConfig    `yaml:"store" json:"store"`
	Index      IndexConfig    `yaml:"index" json:"index"`
	Search     SearchConfig   `yaml:"search" json:"search"`
	Locales    []LocaleConfig `yaml:"locales" json:"locales"`
	Logging    LoggingConfig  `yaml:"logging" json:"logging"`
	Vocabulary string         `yaml:"vocabulary,omitempty" json:"vocabulary,omitempty"`
}

// StoreConfig locates the relational plant store.
type StoreConfig struct {
	// Path is the SQLite database file. It is opened read-only.
	Path string `yaml:"path" json:"path"`
}

// IndexConfig configures the full-text index and the refresh job.
type IndexConfig struct {
	Path     string `yaml:"path" json:"path"`
	Name     string `yaml:"name" json:"name"`
	PageSize int    `yaml:"page_size" json:"page_size"`
	Flush    string `yaml:"flush" json:"flush"`
	Rebuild  string `yaml:"rebuild" json:"rebuild"`
	MinGram  int    `yaml:"min_gram" json:"min_gram"`
	MaxGram  int    `yaml:"max_gram" json:"max_gram"`
}

// SearchConfig configures the finder.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	// CacheSize bounds the plant resolver's LRU cache. 0 uses the default size.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LocaleConfig is one entry of the ordered locale list.
type LocaleConfig struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label" json:"label"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// DefaultLocales is the locale order used when none is configured.
func DefaultLocales() []LocaleConfig {
	return []LocaleConfig{
		{Code: "nl", Label: "Dutch"},
		{Code: "en", Label: "English"},
		{Code: "de", Label: "German"},
		{Code: "fr", Label: "French"},
	}
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			Path: "plants.db",
		},
		Index: IndexConfig{
			Path:     filepath.Join(".plantsearch", "index"),
			Name:     "plant",
			PageSize: 100,
			Flush:    FlushDocument,
			Rebuild:  RebuildInPlace,
			MinGram:  2,
			MaxGram:  3,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			CacheSize:    256,
		},
		Locales: DefaultLocales(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LocaleCodes returns the configured locale codes in order.
func (c *Config) LocaleCodes() []string {
	codes := make([]string, len(c.Locales))
	for i, l := range c.Locales {
		codes[i] = l.Code
	}
	return codes
}

// GetUserConfigPath returns the user configuration file path:
// $XDG_CONFIG_HOME/plantsearch/config.yaml or ~/.config/plantsearch/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "plantsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "plantsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "plantsearch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the project in dir.
// Sources in increasing precedence:
//  1. Defaults
//  2. User config (~/.config/plantsearch/config.yaml)
//  3. Project config (.plantsearch.yaml in dir)
//  4. dir/.env
//  5. PLANTSEARCH_* environment variables
//
// Relative paths are resolved against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if path := filepath.Join(dir, ProjectConfigName); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	dotenv, err := readDotEnv(filepath.Join(dir, ".env"))
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(envLookup(dotenv)); err != nil {
		return nil, err
	}

	cfg.resolvePaths(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML merges the non-zero values of a YAML file into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeConfigNotFound, "failed to read config file", err).
			WithDetail("path", path)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return amerrors.ConfigError("failed to parse config file", err).
			WithDetail("path", path).
			WithSuggestion("Check the YAML syntax, or regenerate it with 'plantsearch config --init'")
	}

	// Relative paths in a file are relative to that file.
	parsed.resolvePaths(filepath.Dir(path))
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
// A non-empty locale list replaces the current list.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}

	if other.Index.Path != "" {
		c.Index.Path = other.Index.Path
	}
	if other.Index.Name != "" {
		c.Index.Name = other.Index.Name
	}
	if other.Index.PageSize != 0 {
		c.Index.PageSize = other.Index.PageSize
	}
	if other.Index.Flush != "" {
		c.Index.Flush = other.Index.Flush
	}
	if other.Index.Rebuild != "" {
		c.Index.Rebuild = other.Index.Rebuild
	}
	if other.Index.MinGram != 0 {
		c.Index.MinGram = other.Index.MinGram
	}
	if other.Index.MaxGram != 0 {
		c.Index.MaxGram = other.Index.MaxGram
	}

	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.CacheSize != 0 {
		c.Search.CacheSize = other.Search.CacheSize
	}

	if len(other.Locales) > 0 {
		c.Locales = append([]LocaleConfig(nil), other.Locales...)
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Vocabulary != "" {
		c.Vocabulary = other.Vocabulary
	}
}

// readDotEnv reads a .env file. A missing file yields an empty map.
func readDotEnv(path string) (map[string]string, error) {
	if !fileExists(path) {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, amerrors.ConfigError("failed to parse .env file", err).WithDetail("path", path)
	}
	return values, nil
}

// envLookup prefers the process environment over .env values.
func envLookup(dotenv map[string]string) func(string) string {
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}
}

// applyEnvOverrides applies PLANTSEARCH_* overrides.
func (c *Config) applyEnvOverrides(getenv func(string) string) error {
	if v := getenv("PLANTSEARCH_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := getenv("PLANTSEARCH_INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := getenv("PLANTSEARCH_INDEX_NAME"); v != "" {
		c.Index.Name = v
	}
	if v := getenv("PLANTSEARCH_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return amerrors.ConfigError("PLANTSEARCH_PAGE_SIZE must be an integer", err).WithDetail("value", v)
		}
		c.Index.PageSize = n
	}
	if v := getenv("PLANTSEARCH_FLUSH"); v != "" {
		c.Index.Flush = strings.ToLower(v)
	}
	if v := getenv("PLANTSEARCH_REBUILD"); v != "" {
		c.Index.Rebuild = strings.ToLower(v)
	}
	if v := getenv("PLANTSEARCH_LOCALES"); v != "" {
		locales, err := ParseLocales(v)
		if err != nil {
			return err
		}
		c.Locales = locales
	}
	if v := getenv("PLANTSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("PLANTSEARCH_VOCABULARY"); v != "" {
		c.Vocabulary = v
	}
	return nil
}

// ParseLocales parses "nl:Dutch,en:English". A missing label defaults to the code.
func ParseLocales(s string) ([]LocaleConfig, error) {
	var locales []LocaleConfig
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, label, _ := strings.Cut(part, ":")
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, amerrors.ConfigError("empty locale code", nil).WithDetail("value", s)
		}
		label = strings.TrimSpace(label)
		if label == "" {
			label = code
		}
		locales = append(locales, LocaleConfig{Code: code, Label: label})
	}
	if len(locales) == 0 {
		return nil, amerrors.ConfigError("no locales given", nil).WithDetail("value", s)
	}
	return locales, nil
}

func (c *Config) resolvePaths(dir string) {
	c.Store.Path = resolve(dir, c.Store.Path)
	c.Index.Path = resolve(dir, c.Index.Path)
	c.Vocabulary = resolve(dir, c.Vocabulary)
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return amerrors.ConfigError(fmt.Sprintf(format, args...), nil).
			WithSuggestion("Fix " + ProjectConfigName + " or the PLANTSEARCH_* environment")
	}

	if c.Store.Path == "" {
		return invalid("store.path must be set")
	}
	if c.Index.Path == "" {
		return invalid("index.path must be set")
	}
	if c.Index.Name == "" || strings.ContainsAny(c.Index.Name, `/\`) {
		return invalid("index.name must be a plain name, got %q", c.Index.Name)
	}
	if c.Index.PageSize <= 0 {
		return invalid("index.page_size must be positive, got %d", c.Index.PageSize)
	}
	switch c.Index.Flush {
	case FlushDocument, FlushBatch, FlushRun:
	default:
		return invalid("index.flush must be 'document', 'batch' or 'run', got %q", c.Index.Flush)
	}
	switch c.Index.Rebuild {
	case RebuildInPlace, RebuildShadow:
	default:
		return invalid("index.rebuild must be 'in_place' or 'shadow', got %q", c.Index.Rebuild)
	}
	if c.Index.MinGram < 1 || c.Index.MaxGram < c.Index.MinGram {
		return invalid("index.min_gram (%d) and max_gram (%d) must satisfy 1 <= min <= max", c.Index.MinGram, c.Index.MaxGram)
	}
	if c.Search.DefaultLimit <= 0 {
		return invalid("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.CacheSize < 0 {
		return invalid("search.cache_size must be non-negative, got %d", c.Search.CacheSize)
	}
	if len(c.Locales) == 0 {
		return invalid("at least one locale must be configured")
	}
	seen := make(map[string]bool, len(c.Locales))
	for _, l := range c.Locales {
		if l.Code == "" {
			return invalid("locale code must not be empty")
		}
		if seen[l.Code] {
			return invalid("locale %q is listed twice", l.Code)
		}
		seen[l.Code] = true
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return invalid("logging.level must be 'debug', 'info', 'warn' or 'error', got %q", c.Logging.Level)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
