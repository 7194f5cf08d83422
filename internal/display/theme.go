// Package display renders resolved dashboard state for the terminal.
package display

import (
	"github.com/charmbracelet/lipgloss"

	"risklock/internal/resolver"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

const minWidth = 40

// Palette
var (
	colorSafe    = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorDanger  = lipgloss.Color("#EF4444")
	colorNeutral = lipgloss.Color("#6B7280")
	colorAccent  = lipgloss.Color("#3B82F6")
	colorTitle   = lipgloss.Color("#7C3AED")
)

// Theme holds the styles used by every renderer. A monochrome theme keeps
// the layout and drops colours.
type Theme struct {
	color bool

	Title   lipgloss.Style
	Heading lipgloss.Style
	Dim     lipgloss.Style
	Bold    lipgloss.Style
	Panel   lipgloss.Style
	Card    lipgloss.Style
	Key     lipgloss.Style
}

// NewTheme builds the theme. Pass false to render without colour.
func NewTheme(color bool) Theme {
	t := Theme{color: color}
	t.Title = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	t.Heading = lipgloss.NewStyle().Bold(true).MarginTop(1)
	t.Dim = lipgloss.NewStyle()
	t.Bold = lipgloss.NewStyle().Bold(true)
	t.Panel = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).Padding(0, 1)
	t.Card = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).Padding(0, 1)
	t.Key = lipgloss.NewStyle().Bold(true)

	if color {
		t.Title = t.Title.Foreground(colorTitle)
		t.Heading = t.Heading.Foreground(colorAccent)
		t.Dim = t.Dim.Foreground(colorNeutral)
		t.Panel = t.Panel.BorderForeground(colorAccent)
		t.Card = t.Card.BorderForeground(colorNeutral)
		t.Key = t.Key.Foreground(colorAccent)
	}
	return t
}

func (t Theme) toneColor(tone resolver.Tone) lipgloss.Color {
	switch tone {
	case resolver.ToneSafe:
		return colorSafe
	case resolver.ToneWarning:
		return colorWarning
	case resolver.ToneDanger:
		return colorDanger
	}
	return colorNeutral
}

// Tone styles text with the colour of a tone.
func (t Theme) Tone(tone resolver.Tone) lipgloss.Style {
	s := lipgloss.NewStyle()
	if t.color {
		s = s.Foreground(t.toneColor(tone))
	}
	return s
}

// TonePanel is a bordered panel in the colour of a tone.
func (t Theme) TonePanel(tone resolver.Tone) lipgloss.Style {
	s := lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).Padding(0, 1)
	if t.color {
		s = s.BorderForeground(t.toneColor(tone))
	}
	return s
}

func clampWidth(width int) int {
	if width <= 0 {
		return DefaultWidth
	}
	if width < minWidth {
		return minWidth
	}
	return width
}
