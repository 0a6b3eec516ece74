package ui

import "github.com/charmbracelet/lipgloss"

// Palette. Leaf green accent on neutral grays.
const (
	ColorLeaf     = "70"  // Primary accent
	ColorLeafDim  = "22"  // Inactive locales and borders
	ColorWhite    = "255" // Headers
	ColorGray     = "245" // Labels
	ColorDarkGray = "238" // Separators
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings
)

// Styles holds all UI styles for TUI rendering.
type Styles struct {
	Header   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Active   lipgloss.Style
	Progress lipgloss.Style
	Label    lipgloss.Style
	Panel    lipgloss.Style
}

// DefaultStyles returns styled components for TUI mode.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLeaf)),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLeaf)),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Active:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Progress: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLeaf)),
		Label:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorLeafDim)).
			Padding(0, 1),
	}
}

// NoColorStyles returns unstyled components.
func NoColorStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle(),
		Success:  lipgloss.NewStyle(),
		Warning:  lipgloss.NewStyle(),
		Error:    lipgloss.NewStyle(),
		Dim:      lipgloss.NewStyle(),
		Active:   lipgloss.NewStyle(),
		Progress: lipgloss.NewStyle(),
		Label:    lipgloss.NewStyle(),
		Panel:    lipgloss.NewStyle(),
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
