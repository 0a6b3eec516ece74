package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/plantsearch/configs"
	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
)

// isolate points the user config at an empty directory and clears overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{
		"PLANTSEARCH_STORE_PATH", "PLANTSEARCH_INDEX_PATH", "PLANTSEARCH_INDEX_NAME",
		"PLANTSEARCH_PAGE_SIZE", "PLANTSEARCH_FLUSH", "PLANTSEARCH_REBUILD",
		"PLANTSEARCH_LOCALES", "PLANTSEARCH_LOG_LEVEL", "PLANTSEARCH_VOCABULARY",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration
	cfg := NewConfig()

	// Then: defaults are applied
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "plant", cfg.Index.Name)
	assert.Equal(t, 100, cfg.Index.PageSize)
	assert.Equal(t, FlushDocument, cfg.Index.Flush)
	assert.Equal(t, RebuildInPlace, cfg.Index.Rebuild)
	assert.Equal(t, 2, cfg.Index.MinGram)
	assert.Equal(t, 3, cfg.Index.MaxGram)
	assert.Equal(t, []string{"nl", "en", "de", "fr"}, cfg.LocaleCodes())
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles_ResolvesDefaultsAgainstDir(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "plants.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(dir, ".plantsearch", "index"), cfg.Index.Path)
}

func TestLoad_Precedence(t *testing.T) {
	// Given: every layer sets a different page size
	isolate(t)
	dir := t.TempDir()
	writeFile(t, GetUserConfigPath(), "index:\n  page_size: 10\n  name: userindex\n")
	writeFile(t, filepath.Join(dir, ProjectConfigName), "index:\n  page_size: 20\n  flush: batch\n")
	writeFile(t, filepath.Join(dir, ".env"), "PLANTSEARCH_PAGE_SIZE=30\nPLANTSEARCH_LOG_LEVEL=debug\n")
	t.Setenv("PLANTSEARCH_PAGE_SIZE", "40")

	// When: loading
	cfg, err := Load(dir)

	// Then: each value comes from the highest layer that sets it
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Index.PageSize, "process env wins")
	assert.Equal(t, "debug", cfg.Logging.Level, ".env beats files")
	assert.Equal(t, FlushBatch, cfg.Index.Flush, "project file beats user file")
	assert.Equal(t, "userindex", cfg.Index.Name, "user file beats defaults")
}

func TestLoad_ProjectLocalesReplaceDefaults(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "locales:\n  - code: en\n    label: English\n  - code: nl\n    label: Nederlands\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, []LocaleConfig{{"en", "English"}, {"nl", "Nederlands"}}, cfg.Locales)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "index: [unclosed\n")

	_, err := Load(dir)

	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeConfigInvalid, amerrors.GetCode(err))
}

func TestLoad_InvalidEnvPageSize(t *testing.T) {
	isolate(t)
	t.Setenv("PLANTSEARCH_PAGE_SIZE", "many")

	_, err := Load(t.TempDir())

	require.Error(t, err)
	assert.Equal(t, amerrors.CategoryConfig, amerrors.GetCategory(err))
}

func TestLoad_TemplateIsValid(t *testing.T) {
	// Given: the shipped project template
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), configs.ProjectConfigTemplate)

	// Then: it loads cleanly
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "plant", cfg.Index.Name)
}

func TestParseLocales(t *testing.T) {
	locales, err := ParseLocales(" nl:Dutch , en ,fr:Français")
	require.NoError(t, err)
	assert.Equal(t, []LocaleConfig{{"nl", "Dutch"}, {"en", "en"}, {"fr", "Français"}}, locales)

	_, err = ParseLocales(":Dutch")
	assert.Error(t, err)

	_, err = ParseLocales(" , ")
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"page size", func(c *Config) { c.Index.PageSize = 0 }},
		{"flush", func(c *Config) { c.Index.Flush = "sometimes" }},
		{"rebuild", func(c *Config) { c.Index.Rebuild = "atomic" }},
		{"grams", func(c *Config) { c.Index.MinGram, c.Index.MaxGram = 3, 2 }},
		{"index name", func(c *Config) { c.Index.Name = "a/b" }},
		{"no locales", func(c *Config) { c.Locales = nil }},
		{"duplicate locale", func(c *Config) { c.Locales = append(c.Locales, LocaleConfig{Code: "nl"}) }},
		{"log level", func(c *Config) { c.Logging.Level = "chatty" }},
		{"cache size", func(c *Config) { c.Search.CacheSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Equal(t, amerrors.ErrCodeConfigInvalid, amerrors.GetCode(err))
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Index.Rebuild = RebuildShadow

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, RebuildShadow, loaded.Index.Rebuild)
}
