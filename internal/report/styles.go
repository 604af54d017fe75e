// Package report renders instances, result batches, uncertainty sweeps and
// simulation summaries as terminal tables or markdown.
package report

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Light mode
	LightForeground = lipgloss.Color("#101F38")
	LightAccent     = lipgloss.Color("#8BC34A")
	LightMuted      = lipgloss.Color("#6a737d")
	LightBorder     = lipgloss.Color("#dce0e5")

	// Dark mode
	DarkForeground = lipgloss.Color("#f2f2f2")
	DarkAccent     = lipgloss.Color("#8BC34A")
	DarkMuted      = lipgloss.Color("#8b949e")
	DarkBorder     = lipgloss.Color("#2a3850")

	// Best recommendation highlight, same in both modes
	Highlight = lipgloss.Color("#FFC107")
)

// Theme holds the table colors.
type Theme struct {
	Foreground lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme.
func LightTheme() Theme {
	return Theme{
		Foreground: LightForeground,
		Accent:     LightAccent,
		Muted:      LightMuted,
		Border:     LightBorder,
	}
}

// DarkTheme returns the dark mode theme.
func DarkTheme() Theme {
	return Theme{
		Foreground: DarkForeground,
		Accent:     DarkAccent,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		IsDark:     true,
	}
}

// DetectTheme picks a theme from COLORFGBG ("foreground;background").
// Background indexes 0-6 and 8 are treated as dark.
func DetectTheme() Theme {
	parts := strings.Split(os.Getenv("COLORFGBG"), ";")
	if len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
			return DarkTheme()
		}
	}
	return LightTheme()
}

// Styles are the derived cell styles of a theme.
type Styles struct {
	Header    lipgloss.Style
	Label     lipgloss.Style
	Cell      lipgloss.Style
	Muted     lipgloss.Style
	Highlight lipgloss.Style
	Border    lipgloss.Style
	Title     lipgloss.Style
}

// NewStyles derives cell styles from a theme.
func NewStyles(t Theme) Styles {
	cell := lipgloss.NewStyle().Foreground(t.Foreground).Padding(0, 1)
	return Styles{
		Header:    cell.Bold(true).Foreground(t.Accent),
		Label:     cell.Bold(true),
		Cell:      cell.Align(lipgloss.Right),
		Muted:     cell.Foreground(t.Muted).Align(lipgloss.Right),
		Highlight: cell.Bold(true).Foreground(Highlight).Align(lipgloss.Right),
		Border:    lipgloss.NewStyle().Foreground(t.Border),
		Title:     lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
	}
}

// DefaultStyles derives styles from the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}
