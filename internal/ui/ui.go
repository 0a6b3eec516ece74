// Package ui provides terminal progress display for index refreshes.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents a refresh stage.
type Stage int

const (
	// StagePreparing drops and recreates the index.
	StagePreparing Stage = iota
	// StageIndexing writes documents for one locale.
	StageIndexing
	// StagePromoting swaps a shadow index into service.
	StagePromoting
	// StageComplete indicates the refresh finished.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StagePreparing:
		return "Preparing"
	case StageIndexing:
		return "Indexing"
	case StagePromoting:
		return "Promoting"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StagePreparing:
		return "PREP"
	case StageIndexing:
		return "INDEX"
	case StagePromoting:
		return "SWAP"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage   Stage
	Locale  string
	Current int
	Total   int
	Message string
}

// ErrorEvent represents an error during a refresh.
type ErrorEvent struct {
	Locale string
	Err    error
	IsWarn bool
}

// LocaleStats counts the documents written for one locale.
type LocaleStats struct {
	Code     string
	Label    string
	Full     int
	Fallback int
}

// CompletionStats contains the final refresh statistics.
type CompletionStats struct {
	RunID     string
	Documents int
	Locales   []LocaleStats
	Duration  time.Duration
	Rebuild   string
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// BeginLocale announces a locale and the number of records it will page
	// through. Renderers print the "Count:" and "Indexing:" lines here.
	BeginLocale(code, label string, total int)

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	IndexName  string // Index name shown in the TUI header
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithIndexName sets the index name shown in the header.
func WithIndexName(name string) ConfigOption {
	return func(c *Config) {
		c.IndexName = name
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer creates an appropriate renderer based on config and environment.
// It returns a TUI renderer for interactive terminals, and a plain text
// renderer for CI environments, pipes, or when --no-tui is specified.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// NopRenderer discards all progress. Used by library callers and tests.
type NopRenderer struct{}

func (NopRenderer) Start(context.Context) error     { return nil }
func (NopRenderer) BeginLocale(string, string, int) {}
func (NopRenderer) UpdateProgress(ProgressEvent)    {}
func (NopRenderer) AddError(ErrorEvent)             {}
func (NopRenderer) Complete(CompletionStats)        {}
func (NopRenderer) Stop() error                     { return nil }

var _ Renderer = NopRenderer{}
