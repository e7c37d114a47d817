package models

import (
	"fmt"
	"strings"

	"github.com/fenilsonani/dataguard/internal/ui/styles"
	uiutils "github.com/fenilsonani/dataguard/internal/ui/utils"
	"github.com/fenilsonani/dataguard/internal/watcher"
)

// maxEventLog is how many dispatched events the log keeps
const maxEventLog = 500

// EventsViewModel lists the most recent dispatched changes
type EventsViewModel struct {
	events []watcher.Event
	width  int
	height int
}

// NewEventsViewModel creates an empty event log
func NewEventsViewModel(width, height int) *EventsViewModel {
	return &EventsViewModel{width: width, height: height}
}

// Append adds a dispatched batch, dropping the oldest entries past the cap
func (m *EventsViewModel) Append(events []watcher.Event) {
	m.events = append(m.events, events...)
	if over := len(m.events) - maxEventLog; over > 0 {
		m.events = append(m.events[:0], m.events[over:]...)
	}
}

// Len returns the number of logged events
func (m *EventsViewModel) Len() int {
	return len(m.events)
}

// SetSize records the terminal size
func (m *EventsViewModel) SetSize(width, height int) {
	m.width, m.height = width, height
}

// View renders the newest events first
func (m *EventsViewModel) View(monitoring bool) string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Change events"))
	b.WriteString("\n")
	if monitoring {
		b.WriteString(styles.SuccessStyle.Render("● monitoring"))
	} else {
		b.WriteString(styles.DimStyle.Render("○ not monitoring (press w to start)"))
	}
	b.WriteString("\n\n")

	if len(m.events) == 0 {
		b.WriteString(styles.HelpStyle.Render("No changes dispatched yet"))
		b.WriteString("\n")
	}

	pathWidth := max(m.width-20, 30)
	shown := uiutils.CalculatePageSize(m.height)
	for i := len(m.events) - 1; i >= 0 && shown > 0; i, shown = i-1, shown-1 {
		e := m.events[i]
		path := uiutils.TruncatePath(e.Path(), pathWidth)
		if e.Kind == watcher.KindRename || e.Kind == watcher.KindMove {
			path = uiutils.TruncatePath(e.Path()+" → "+e.NewPath(), pathWidth)
		}
		b.WriteString(fmt.Sprintf("%s %-6s %s\n",
			styles.DimStyle.Render(e.At.Format("15:04:05")),
			e.Kind,
			styles.FilePathStyle.Render(path)))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("esc back • w watch on/off • q quit"))
	return b.String()
}
