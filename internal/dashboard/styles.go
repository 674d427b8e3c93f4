package dashboard

import "github.com/charmbracelet/lipgloss"

// Layout constants for the panel. The per-task bar is deliberately narrower
// than the overall bar so slot rows fit inside the box.
const (
	panelWidth   = 65
	barWidth     = 25
	taskBarWidth = 15
)

// Styles holds the lipgloss styles applied to panel sections. A zero style
// is a passthrough, so rendering stays correct with styling disabled.
type Styles struct {
	Header       lipgloss.Style
	Stats        lipgloss.Style
	Label        lipgloss.Style
	BarFilled    lipgloss.Style
	BarRemaining lipgloss.Style
	Completed    lipgloss.Style
}

// PlainStyles returns passthrough styles for non-terminal output.
func PlainStyles() Styles {
	return Styles{}
}

// DefaultStyles returns the standard panel styling.
func DefaultStyles() Styles {
	return Styles{
		Header:       lipgloss.NewStyle().Bold(true),
		Stats:        lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		Label:        lipgloss.NewStyle(),
		BarFilled:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		BarRemaining: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Completed:    lipgloss.NewStyle(),
	}
}
