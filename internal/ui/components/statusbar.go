package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fenilsonani/dataguard/internal/tree"
	"github.com/fenilsonani/dataguard/internal/ui/styles"
	"github.com/fenilsonani/dataguard/pkg/utils"
)

// StatusBar represents a status bar component that displays at the bottom of views
type StatusBar struct {
	viewName string
	state    string
	total    tree.Stats
	excluded tree.Stats
	known    bool
	message  string
	isError  bool
}

// NewStatusBar creates a new status bar
func NewStatusBar() *StatusBar {
	return &StatusBar{}
}

// SetView sets the current view name
func (s *StatusBar) SetView(viewName string) {
	s.viewName = viewName
}

// SetState sets the session state label
func (s *StatusBar) SetState(state string) {
	s.state = state
}

// SetTotals sets the forest-wide totals. Unknown totals are not shown.
func (s *StatusBar) SetTotals(total, excluded tree.Stats, known bool) {
	s.total = total
	s.excluded = excluded
	s.known = known
}

// SetMessage sets a transient message shown on the right
func (s *StatusBar) SetMessage(message string, isError bool) {
	s.message = message
	s.isError = isError
}

// Render renders the status bar with the given width
func (s *StatusBar) Render(width int) string {
	if width <= 0 {
		width = 80
	}

	var parts []string
	if s.viewName != "" {
		parts = append(parts, styles.BoldStyle.Render(s.viewName))
	}
	if s.state != "" {
		parts = append(parts, s.state)
	}
	if s.known {
		parts = append(parts, fmt.Sprintf("%d files", s.total.Files))
		parts = append(parts, styles.FileSizeStyle.Render(utils.FormatBytes(s.total.Size)))
		if s.excluded.Size > 0 {
			parts = append(parts, styles.DimStyle.Render(utils.FormatBytes(s.excluded.Size)+" excluded"))
		}
	}
	leftSide := strings.Join(parts, " • ")

	rightSide := s.message
	if s.isError {
		rightSide = styles.ErrorStyle.Render(rightSide)
	}

	// Calculate spacing
	leftLen := lipgloss.Width(leftSide)
	rightLen := lipgloss.Width(rightSide)
	spacing := width - leftLen - rightLen - 2 // -2 for padding
	if spacing < 1 {
		spacing = 1
	}

	statusLine := leftSide + strings.Repeat(" ", spacing) + rightSide
	return styles.StatusBarStyle.Width(width).Render(statusLine)
}
