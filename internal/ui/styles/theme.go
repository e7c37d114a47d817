package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fenilsonani/dataguard/internal/tree"
)

// Theme colors
var (
	Primary     = lipgloss.Color("#7C3AED")
	Secondary   = lipgloss.Color("#A78BFA")
	Success     = lipgloss.Color("#10B981")
	Warning     = lipgloss.Color("#F59E0B")
	Danger      = lipgloss.Color("#EF4444")
	Info        = lipgloss.Color("#3B82F6")
	Muted       = lipgloss.Color("#6B7280")
	Text        = lipgloss.Color("#F3F4F6")
	TextDim     = lipgloss.Color("#9CA3AF")
	Border      = lipgloss.Color("#4B5563")
	FocusBorder = lipgloss.Color("#A78BFA")
	BgDark      = lipgloss.Color("#1F2937")
	BgLight     = lipgloss.Color("#374151")
	Frozen      = lipgloss.Color("#38BDF8")
)

// Common styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			MarginBottom(1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(1, 2)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	FilePathStyle = lipgloss.NewStyle().
			Foreground(Info)

	FileSizeStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(TextDim).
			Italic(true)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(Text).
			Background(BgDark).
			Padding(0, 1)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(Text).
			Background(Primary).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(TextDim)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(Info).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)
)

// ModeStyle returns the color used for a resolved mode
func ModeStyle(m tree.Mode) lipgloss.Style {
	switch m {
	case tree.ModeExcluded:
		return lipgloss.NewStyle().Foreground(Muted).Strikethrough(true)
	case tree.ModeAppendOnly:
		return lipgloss.NewStyle().Foreground(Success)
	case tree.ModeFrozen:
		return lipgloss.NewStyle().Foreground(Frozen)
	default:
		return lipgloss.NewStyle().Foreground(Text)
	}
}

// PriorityIcon marks the non-default priorities
func PriorityIcon(p tree.Priority) string {
	switch p {
	case tree.PriorityHighest:
		return "⇈"
	case tree.PriorityHigh:
		return "↑"
	case tree.PriorityLow:
		return "↓"
	case tree.PriorityLowest:
		return "⇊"
	default:
		return " "
	}
}

// ExpandMarker shows whether a row can be expanded
func ExpandMarker(expanded, hasChildren bool) string {
	switch {
	case !hasChildren:
		return "  "
	case expanded:
		return "▾ "
	default:
		return "▸ "
	}
}
