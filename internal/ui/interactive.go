// Package ui hosts the interactive tree browser and the live progress line
// used by the non-interactive commands.
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/dataguard/internal/progress"
	"github.com/fenilsonani/dataguard/internal/session"
	"github.com/fenilsonani/dataguard/internal/ui/models"
)

// RunInteractive starts the interactive TUI mode. The first full scan starts
// immediately; reporter may be nil.
func RunInteractive(svc session.Service, reporter *progress.ProgressReporter) error {
	var updates <-chan *progress.ScanProgress
	if reporter != nil {
		ch := reporter.Subscribe()
		defer reporter.Unsubscribe(ch)
		updates = ch
	}

	m := models.NewAppModel(svc, updates)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running interactive mode: %w", err)
	}
	return nil
}
