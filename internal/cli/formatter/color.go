package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// StageColor returns the stage's configured color, falling back to the
// palette for terminal stages.
func StageColor(s *domain.Stage) lipgloss.TerminalColor {
	switch {
	case s == nil:
		return ColorDim
	case s.Color != "":
		return lipgloss.Color(s.Color)
	case s.IsWon:
		return ColorGreen
	case s.IsLost:
		return ColorRed
	default:
		return ColorBlue
	}
}

// StageBadge renders a stage name with its terminal marker.
func StageBadge(s *domain.Stage) string {
	if s == nil {
		return StyleDim.Render("?")
	}
	style := lipgloss.NewStyle().Foreground(StageColor(s))
	switch {
	case s.IsWon:
		return style.Render("✔ " + s.Name)
	case s.IsLost:
		return style.Render("✖ " + s.Name)
	default:
		return style.Render("● " + s.Name)
	}
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", lipgloss.Width(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}
