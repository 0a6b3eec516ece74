// Package output formats command results for the terminal: status lines,
// key/value listings and the plant tables printed by search.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/plantsearch/internal/ui"
)

// Writer prints formatted CLI output. Write errors are ignored; there is
// nothing useful to do when the terminal is gone.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New creates a Writer without colors.
func New(out io.Writer) *Writer {
	return &Writer{out: out, styles: ui.NoColorStyles()}
}

// NewStyled creates a Writer that colors output when out is a terminal and
// colors are not disabled.
func NewStyled(out io.Writer, noColor bool) *Writer {
	return &Writer{out: out, styles: ui.GetStyles(noColor || !ui.IsTTY(out))}
}

// Status prints msg after icon, or indented when icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf is Success with formatting.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Header prints a bold title line.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(title))
}

// KeyValue prints an aligned "key: value" line. Keys are padded to width.
func (w *Writer) KeyValue(key, value string, width int) {
	label := w.styles.Label.Render(fmt.Sprintf("%-*s", width, key+":"))
	_, _ = fmt.Fprintf(w.out, "  %s %s\n", label, value)
}

// Line prints msg as is.
func (w *Writer) Line(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// PlantRow is one line of a search result listing.
type PlantRow struct {
	PlantID  int64
	Locale   string
	Name     string
	Score    float64
	Flags    []string
	Fallback bool
}

// Plants prints one numbered line per row, e.g.
//
//  1. Malus domestica  [nl #12]  eetbaar
func (w *Writer) Plants(rows []PlantRow) {
	nameWidth := 0
	for _, r := range rows {
		nameWidth = max(nameWidth, len([]rune(displayName(r))))
	}
	for i, r := range rows {
		name := displayName(r)
		pad := strings.Repeat(" ", nameWidth-len([]rune(name)))
		meta := w.styles.Dim.Render(fmt.Sprintf("[%s #%d]", r.Locale, r.PlantID))
		if r.Fallback {
			meta = w.styles.Dim.Render(fmt.Sprintf("[%s fallback]", r.Locale))
		}
		line := fmt.Sprintf("%3d. %s%s  %s", i+1, w.styles.Active.Render(name), pad, meta)
		if len(r.Flags) > 0 {
			line += "  " + w.styles.Success.Render(strings.Join(r.Flags, " "))
		}
		_, _ = fmt.Fprintln(w.out, line)
	}
}

func displayName(r PlantRow) string {
	if r.Name == "" {
		return "(unnamed)"
	}
	return r.Name
}
