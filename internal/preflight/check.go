package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/plantsearch/internal/config"
	"github.com/Aman-CERP/plantsearch/internal/index"
	"github.com/Aman-CERP/plantsearch/internal/store"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against cfg and returns the results in a fixed
// order.
func (c *Checker) RunAll(ctx context.Context, cfg *config.Config) []CheckResult {
	return []CheckResult{
		c.CheckStore(ctx, cfg.Store.Path),
		c.CheckWritePermissions(cfg.Index.Path),
		c.CheckDiskSpace(cfg.Index.Path),
		c.CheckFileDescriptors(),
		c.CheckRefreshLock(cfg.Index.Path),
	}
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "plantsearch refresh check")
	_, _ = fmt.Fprintln(c.output, "=========================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, failures []string
	for _, r := range results {
		if r.IsCritical() {
			failures = append(failures, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}
	printList(c.output, "error(s)", failures)
	printList(c.output, "warning(s)", warnings)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%d %s:\n", len(items), label)
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "  - %s\n", item)
	}
}

// CheckStore opens the plant database the way a refresh does and counts
// its plants.
func (c *Checker) CheckStore(ctx context.Context, path string) CheckResult {
	result := CheckResult{
		Name:     "plant_store",
		Required: true,
		Details:  path,
	}

	st, err := store.OpenPlantStore(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	defer func() { _ = st.Close() }()

	n, err := st.CountRecords(ctx, "")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("count plants: %v", err)
		return result
	}
	if n == 0 {
		result.Status = StatusWarn
		result.Message = "no plants; a refresh would leave the index empty"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d plants", n)
	return result
}

// CheckWritePermissions checks that the index directory, or the nearest
// existing parent a refresh would create it under, is writable.
func (c *Checker) CheckWritePermissions(indexPath string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	dir := existingDir(indexPath)
	result.Details = dir

	f, err := os.CreateTemp(dir, ".plantsearch-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckRefreshLock warns when another process is refreshing the index.
func (c *Checker) CheckRefreshLock(indexPath string) CheckResult {
	result := CheckResult{
		Name:     "refresh_lock",
		Required: false,
	}

	lock := index.NewRefreshLock(indexPath)
	result.Details = lock.Path()

	if _, err := os.Stat(lock.Path()); errors.Is(err, fs.ErrNotExist) {
		result.Status = StatusPass
		result.Message = "no refresh running"
		return result
	}

	acquired, err := lock.TryLock()
	if err != nil {
		result.Status = StatusWarn
		result.Message = err.Error()
		return result
	}
	if !acquired {
		result.Status = StatusWarn
		result.Message = "another refresh holds the index lock"
		return result
	}
	_ = lock.Unlock()

	result.Status = StatusPass
	result.Message = "no refresh running"
	return result
}

// existingDir returns path or its nearest existing ancestor.
func existingDir(path string) string {
	dir := filepath.Clean(path)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
