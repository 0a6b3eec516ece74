package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer provides a rich terminal UI using bubbletea.
// The Count and Indexing lines are printed above the live view so they
// stay in the scrollback once the refresh finishes.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *refreshModel
	tracker *ProgressTracker
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer.
// Returns an error if the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newRefreshModel(tracker, cfg.IndexName)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

// BeginLocale implements Renderer.
func (r *TUIRenderer) BeginLocale(code, label string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.BeginLocale(code, total)
	if r.program != nil {
		r.program.Println(fmt.Sprintf("Count: %d", total))
		r.program.Println(fmt.Sprintf("Indexing: %s", label))
		r.program.Send(localeMsg{code: code, label: label, total: total})
	}
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Stage != StageIndexing {
		r.tracker.SetStage(event.Stage)
	}
	if event.Total > 0 {
		r.tracker.Update(event.Current)
	}
	if r.program != nil {
		r.program.Send(progressUpdateMsg(event))
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)
	if r.program != nil {
		r.program.Send(errorMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(StageComplete)
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}

	r.program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		// An unresponsive program must not keep the process alive.
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

type localeMsg struct {
	code  string
	label string
	total int
}
type progressUpdateMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats
type tickMsg time.Time

type localeRow struct {
	code  string
	label string
	total int
	done  bool
}

// refreshModel is the bubbletea model for refresh progress.
type refreshModel struct {
	tracker     *ProgressTracker
	indexName   string
	width       int
	quitting    bool
	complete    bool
	stats       CompletionStats
	locales     []localeRow
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
}

func newRefreshModel(tracker *ProgressTracker, indexName string) *refreshModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLeaf))

	p := progress.New(
		progress.WithSolidFill(ColorLeaf),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &refreshModel{
		tracker:     tracker,
		indexName:   indexName,
		width:       80,
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
	}
}

// Init implements tea.Model.
func (m *refreshModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *refreshModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(msg.Width-30, 20)

	case localeMsg:
		for i := range m.locales {
			m.locales[i].done = true
		}
		m.locales = append(m.locales, localeRow{code: msg.code, label: msg.label, total: msg.total})

	case completeMsg:
		for i := range m.locales {
			m.locales[i].done = true
		}
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *refreshModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	stats := m.tracker.Stats()
	var lines []string

	title := "plantsearch refresh"
	if m.indexName != "" {
		title += " • " + m.indexName
	}
	lines = append(lines, m.styles.Header.Render(title))

	if len(m.locales) == 0 {
		lines = append(lines, fmt.Sprintf("%s %s...", m.spinner.View(), stats.Stage))
	}
	for _, l := range m.locales {
		lines = append(lines, m.renderLocale(l, stats))
	}

	if stats.Total > 0 && stats.Stage == StageIndexing {
		bar := m.progressBar.ViewAs(stats.Progress)
		pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
		lines = append(lines, bar+"  "+pct)
		lines = append(lines, m.renderSpeed(stats))
	}

	if status := m.renderStatus(stats); status != "" {
		lines = append(lines, status)
	}

	return m.styles.Panel.Render(strings.Join(lines, "\n")) + "\n"
}

func (m *refreshModel) renderLocale(l localeRow, stats ProgressStats) string {
	if l.done {
		return m.styles.Success.Render("● "+l.label) + m.styles.Dim.Render(fmt.Sprintf("  %d", l.total))
	}
	count := m.styles.Label.Render(fmt.Sprintf("  %d / %d", stats.Current, l.total))
	return m.spinner.View() + " " + m.styles.Active.Render(l.label) + count
}

func (m *refreshModel) renderSpeed(stats ProgressStats) string {
	parts := []string{m.styles.Label.Render(fmt.Sprintf("%.0f docs/s (peak %.0f)", stats.Speed, stats.PeakSpeed))}
	if stats.ETA > 0 {
		parts = append(parts, m.styles.Label.Render("ETA "+formatDuration(stats.ETA)))
	}
	return strings.Join(parts, m.styles.Dim.Render("  •  "))
}

func (m *refreshModel) renderStatus(stats ProgressStats) string {
	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m *refreshModel) renderComplete() string {
	lines := []string{
		m.styles.Success.Render("✓ Refresh complete"),
		"",
		m.styles.Label.Render("Documents: ") + m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Documents)),
		m.styles.Label.Render("Duration:  ") + m.styles.Active.Render(formatDuration(m.stats.Duration)),
	}
	for _, l := range m.stats.Locales {
		lines = append(lines, m.styles.Dim.Render(fmt.Sprintf("  %s: %d full, %d fallback", l.Label, l.Full, l.Fallback)))
	}
	if m.stats.RunID != "" {
		lines = append(lines, m.styles.Dim.Render("run "+m.stats.RunID))
	}
	return m.styles.Panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}

var _ Renderer = (*TUIRenderer)(nil)
