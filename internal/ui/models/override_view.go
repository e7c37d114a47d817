package models

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/dataguard/internal/session"
	"github.com/fenilsonani/dataguard/internal/tree"
	"github.com/fenilsonani/dataguard/internal/ui/styles"
	uiutils "github.com/fenilsonani/dataguard/internal/ui/utils"
)

// OverrideKind selects what the override view edits
type OverrideKind int

const (
	OverrideMode OverrideKind = iota
	OverridePriority
)

// confirm buttons
const (
	buttonAll = iota
	buttonOnly
	buttonCancel
)

// maxListedConflicts caps how many conflicting paths the prompt lists
const maxListedConflicts = 8

// OverrideViewModel picks a manual mode or priority for one directory and,
// when descendants carry a conflicting setting, asks whether to apply the
// change to them too
type OverrideViewModel struct {
	svc       session.Service
	node      *tree.Node
	kind      OverrideKind
	modes     []tree.Mode
	prios     []tree.Priority
	cursor    int
	confirm   bool
	conflicts []*tree.Node
	button    int
	width     int
	height    int
}

// NewOverrideViewModel creates the picker for n
func NewOverrideViewModel(svc session.Service, n *tree.Node, kind OverrideKind, width, height int) *OverrideViewModel {
	m := &OverrideViewModel{
		svc:    svc,
		node:   n,
		kind:   kind,
		width:  width,
		height: height,
	}
	if kind == OverrideMode {
		m.modes = []tree.Mode{tree.ModeAuto, tree.ModeExcluded, tree.ModeNormal, tree.ModeAppendOnly, tree.ModeFrozen}
		if !n.IsRoot() {
			m.modes = append(m.modes, tree.ModeInherit)
		}
		for i, mode := range m.modes {
			if mode == n.ModeManual() {
				m.cursor = i
			}
		}
	} else {
		m.prios = []tree.Priority{tree.PriorityAuto, tree.PriorityHighest, tree.PriorityHigh, tree.PriorityNormal, tree.PriorityLow, tree.PriorityLowest}
		for i, p := range m.prios {
			if p == n.PriorityManual() {
				m.cursor = i
			}
		}
	}
	return m
}

func (m *OverrideViewModel) options() int {
	if m.kind == OverrideMode {
		return len(m.modes)
	}
	return len(m.prios)
}

func (m *OverrideViewModel) optionLabel(i int) string {
	if m.kind == OverrideMode {
		return m.modes[i].String()
	}
	return m.prios[i].String()
}

// Confirming reports whether the conflict prompt is showing
func (m *OverrideViewModel) Confirming() bool {
	return m.confirm
}

// Conflicts returns the descendants whose own setting differs from the choice
func (m *OverrideViewModel) Conflicts() []*tree.Node {
	return m.conflicts
}

// Update handles messages
func (m *OverrideViewModel) Update(msg tea.Msg) (*OverrideViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if m.confirm {
			return m, m.updateConfirm(msg)
		}
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < m.options()-1 {
				m.cursor++
			}
		case "enter":
			return m, m.choose()
		case "esc", "q":
			return m, closeOverride("")
		}
	}

	return m, nil
}

func (m *OverrideViewModel) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "left", "h":
		if m.button > 0 {
			m.button--
		}
	case "right", "l":
		if m.button < buttonCancel {
			m.button++
		}
	case "tab":
		m.button = (m.button + 1) % 3
	case "enter":
		switch m.button {
		case buttonAll:
			return m.apply(true)
		case buttonOnly:
			return m.apply(false)
		default:
			return closeOverride("")
		}
	case "y":
		return m.apply(true)
	case "n":
		return m.apply(false)
	case "esc":
		m.confirm = false
	}
	return nil
}

// choose looks for conflicts and either applies at once or asks first
func (m *OverrideViewModel) choose() tea.Cmd {
	if m.kind == OverrideMode {
		m.conflicts = tree.ModeConflicts(m.node, m.modes[m.cursor])
	} else {
		m.conflicts = tree.PriorityConflicts(m.node, m.prios[m.cursor])
	}
	if len(m.conflicts) == 0 {
		return m.apply(false)
	}
	m.confirm = true
	m.button = buttonAll
	return nil
}

// apply sets the chosen value, and with all also on the conflicting descendants
func (m *OverrideViewModel) apply(all bool) tea.Cmd {
	var err error
	if m.kind == OverrideMode {
		mode := m.modes[m.cursor]
		err = m.svc.SetMode(m.node, mode)
		if err == nil && all {
			err = m.svc.ApplyMode(m.conflicts, mode)
		}
	} else {
		err = m.svc.SetPriority(m.node, m.prios[m.cursor], all)
	}

	if err != nil {
		return func() tea.Msg { return OverrideDoneMsg{Err: err} }
	}
	text := fmt.Sprintf("%s of %s set to %s", m.kindName(), m.node.Name(), m.optionLabel(m.cursor))
	if all && len(m.conflicts) > 0 {
		text += fmt.Sprintf(" (and %d subdirectories)", len(m.conflicts))
	}
	return closeOverride(text)
}

func (m *OverrideViewModel) kindName() string {
	if m.kind == OverrideMode {
		return "Mode"
	}
	return "Priority"
}

// View renders the picker or the conflict prompt
func (m *OverrideViewModel) View() string {
	var b strings.Builder

	if warning := uiutils.GetSizeWarningBanner(m.width, m.height); warning != "" {
		b.WriteString(warning)
	}

	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("Set %s", strings.ToLower(m.kindName()))))
	b.WriteString("\n")
	b.WriteString(styles.FilePathStyle.Render(uiutils.TruncatePath(m.node.Path(), max(m.width-4, 30))))
	b.WriteString("\n\n")

	if m.confirm {
		b.WriteString(m.viewConfirm())
		return b.String()
	}

	for i := 0; i < m.options(); i++ {
		cursor := "  "
		if i == m.cursor {
			cursor = styles.SelectedStyle.Render("→ ")
		}
		label := m.optionLabel(i)
		if m.kind == OverrideMode && m.modes[i] != tree.ModeAuto && m.modes[i] != tree.ModeInherit {
			label = styles.ModeStyle(m.modes[i]).Render(label)
		}
		if i == 0 {
			label += styles.DimStyle.Render(" (clear the override)")
		}
		b.WriteString(cursor + label + "\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("↑/↓ choose • enter apply • esc cancel"))
	return b.String()
}

func (m *OverrideViewModel) viewConfirm() string {
	var b strings.Builder

	b.WriteString(styles.WarningStyle.Render(fmt.Sprintf(
		"%d subdirectories have their own %s:", len(m.conflicts), strings.ToLower(m.kindName()))))
	b.WriteString("\n\n")

	for i, c := range m.conflicts {
		if i == maxListedConflicts {
			b.WriteString(styles.DimStyle.Render(fmt.Sprintf("  ... and %d more\n", len(m.conflicts)-i)))
			break
		}
		value := c.Mode().String()
		if m.kind == OverridePriority {
			value = c.Priority().String()
		}
		b.WriteString(fmt.Sprintf("  %s %s\n",
			styles.FilePathStyle.Render(uiutils.TruncatePath(c.Path(), max(m.width-20, 30))),
			styles.DimStyle.Render(value)))
	}
	b.WriteString("\n")

	buttons := []string{"Apply to all", "Only this directory", "Cancel"}
	for i, label := range buttons {
		if i == m.button {
			b.WriteString(styles.HighlightStyle.Render(" " + label + " "))
		} else {
			b.WriteString(styles.DimStyle.Render(" " + label + " "))
		}
		b.WriteString("  ")
	}
	b.WriteString("\n\n")
	b.WriteString(styles.HelpStyle.Render("←/→ choose • enter confirm • y all • n only this • esc back"))
	return b.String()
}

// OpenOverrideMsg asks the app to open the override picker
type OpenOverrideMsg struct {
	Node *tree.Node
	Kind OverrideKind
}

// OverrideDoneMsg closes the picker, reporting the outcome
type OverrideDoneMsg struct {
	Text string
	Err  error
}

func closeOverride(text string) tea.Cmd {
	return func() tea.Msg { return OverrideDoneMsg{Text: text} }
}
