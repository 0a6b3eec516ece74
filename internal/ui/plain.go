package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// plainSteps is how many progress lines a locale prints at most.
const plainSteps = 20

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	stage   Stage
	lastPct int
	errors  []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, lastPct: -1}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// BeginLocale implements Renderer.
func (r *PlainRenderer) BeginLocale(code, label string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = StageIndexing
	r.lastPct = -1
	_, _ = fmt.Fprintf(r.out, "Count: %d\n", total)
	_, _ = fmt.Fprintf(r.out, "Indexing: %s\n", label)
}

// UpdateProgress implements Renderer. Indexing progress is printed in
// steps of 1/plainSteps of the total so large runs stay readable.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	tag := event.Stage.Icon()
	if event.Locale != "" {
		tag += " " + event.Locale
	}

	if event.Total > 0 {
		pct := event.Current * plainSteps / event.Total
		if pct == r.lastPct && event.Current != event.Total {
			return
		}
		r.lastPct = pct
		if event.Message != "" {
			_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", tag, event.Current, event.Total, event.Message)
		} else {
			_, _ = fmt.Fprintf(r.out, "[%s] %d/%d\n", tag, event.Current, event.Total)
		}
		return
	}
	if event.Message != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", tag, event.Message)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.Locale != "" {
		_, _ = fmt.Fprintf(r.out, "%s: [%s] %v\n", prefix, event.Locale, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = StageComplete
	_, _ = fmt.Fprintf(r.out, "Complete: %d documents in %s\n",
		stats.Documents, stats.Duration.Round(100*time.Millisecond))
	for _, l := range stats.Locales {
		_, _ = fmt.Fprintf(r.out, "  %s: %d full, %d fallback\n", l.Label, l.Full, l.Fallback)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
