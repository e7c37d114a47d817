package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/dataguard/internal/progress"
	"github.com/fenilsonani/dataguard/internal/scanner"
	"github.com/fenilsonani/dataguard/internal/session"
	"github.com/fenilsonani/dataguard/internal/tree"
	"github.com/fenilsonani/dataguard/internal/ui/components"
	"github.com/fenilsonani/dataguard/internal/ui/styles"
	"github.com/fenilsonani/dataguard/internal/watcher"
)

// refreshInterval is how often the tree is repainted so lazy scans and
// monitoring show up without a key press
const refreshInterval = 500 * time.Millisecond

// ViewState represents the current view in the app
type ViewState int

const (
	ViewScanning ViewState = iota
	ViewTree
	ViewOverride
	ViewEvents
	ViewHelp
)

// AppModel is the root model for the interactive TUI
type AppModel struct {
	state         ViewState
	previousState ViewState

	svc     session.Service
	updates <-chan *progress.ScanProgress
	keys    KeyMap
	help    help.Model
	status  *components.StatusBar

	scanView     *ScanViewModel
	treeView     *TreeViewModel
	overrideView *OverrideViewModel
	eventsView   *EventsViewModel

	scanGen       int
	result        *scanner.Result
	monitorCtx    context.Context
	monitorCancel context.CancelFunc

	width  int
	height int
}

// NewAppModel creates a new app model. updates may be nil when the scanner
// reports no progress.
func NewAppModel(svc session.Service, updates <-chan *progress.ScanProgress) *AppModel {
	return &AppModel{
		state:      ViewScanning,
		svc:        svc,
		updates:    updates,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		status:     components.NewStatusBar(),
		eventsView: NewEventsViewModel(0, 0),
	}
}

// Init starts the first full scan
func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.startScan(), m.waitForProgress(), refreshTick())
}

// State returns the current view
func (m *AppModel) State() ViewState {
	return m.state
}

// startScan restarts the full scan and switches to the scan view
func (m *AppModel) startScan() tea.Cmd {
	if _, err := m.svc.RestartScan(); err != nil {
		return statusCmd(err.Error(), true)
	}
	m.scanGen++
	m.state = ViewScanning
	m.scanView = NewScanViewModel(m.width)
	return tea.Batch(m.scanView.Init(), m.waitForScan(m.scanGen))
}

func (m *AppModel) waitForScan(gen int) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		res, err := svc.WaitScan(context.Background())
		return ScanCompleteMsg{Gen: gen, Result: res, Err: err}
	}
}

func (m *AppModel) waitForProgress() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	updates := m.updates
	return func() tea.Msg {
		p, ok := <-updates
		if !ok {
			return nil
		}
		return ScanProgressMsg{Progress: p}
	}
}

func (m *AppModel) waitForEvents(ctx context.Context) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		events, err := svc.NextEvents(ctx)
		return EventsMsg{Events: events, Err: err}
	}
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Update handles messages
func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.state == ViewHelp {
			m.state = m.previousState
			return m, nil
		}
		if m.state != ViewOverride {
			if cmd, handled := m.handleGlobalKey(msg); handled {
				return m, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.eventsView.SetSize(msg.Width, msg.Height)

	case ScanProgressMsg:
		if m.scanView != nil {
			m.scanView, _ = m.scanView.Update(msg)
		}
		return m, m.waitForProgress()

	case ScanCompleteMsg:
		if msg.Gen != m.scanGen || m.state != ViewScanning {
			return m, nil
		}
		m.result = msg.Result
		return m, m.showTree(scanStatus(msg.Result, msg.Err))

	case ScanCancelledMsg:
		return m, m.showTree(StatusMsg{Text: "Scan cancelled; roots excluded. Expand a directory to scan it."})

	case refreshMsg:
		if m.treeView != nil && m.state != ViewScanning {
			m.treeView.Refresh()
		}
		return m, refreshTick()

	case StatusMsg:
		m.status.SetMessage(msg.Text, msg.IsError)
		return m, nil

	case EventsMsg:
		if msg.Err != nil {
			if !errors.Is(msg.Err, context.Canceled) && !errors.Is(msg.Err, session.ErrCustomSink) {
				m.status.SetMessage(msg.Err.Error(), true)
			}
			return m, nil
		}
		m.eventsView.Append(msg.Events)
		m.status.SetMessage(fmt.Sprintf("%d changes dispatched", m.eventsView.Len()), false)
		if m.monitorCtx == nil {
			return m, nil
		}
		return m, m.waitForEvents(m.monitorCtx)

	case OpenOverrideMsg:
		m.overrideView = NewOverrideViewModel(m.svc, msg.Node, msg.Kind, m.width, m.height)
		m.state = ViewOverride
		return m, nil

	case OverrideDoneMsg:
		m.state = ViewTree
		m.overrideView = nil
		if m.treeView != nil {
			m.treeView.Refresh()
		}
		switch {
		case msg.Err != nil:
			m.status.SetMessage(msg.Err.Error(), true)
		case msg.Text != "":
			m.status.SetMessage(msg.Text, false)
		}
		return m, nil
	}

	return m.delegateUpdate(msg)
}

// handleGlobalKey processes keys that work in every view but the picker
func (m *AppModel) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		m.previousState = m.state
		m.state = ViewHelp
		return nil, true

	case m.state == ViewScanning && key.Matches(msg, m.keys.Cancel):
		svc := m.svc
		m.scanGen++
		return func() tea.Msg {
			svc.CancelScan()
			return ScanCancelledMsg{}
		}, true

	case m.state == ViewScanning:
		return nil, false

	case key.Matches(msg, m.keys.Rescan):
		return m.startScan(), true

	case key.Matches(msg, m.keys.Monitor):
		return m.toggleMonitoring(), true

	case key.Matches(msg, m.keys.Events):
		m.state = ViewEvents
		return nil, true

	case m.state == ViewEvents && key.Matches(msg, m.keys.Back):
		m.state = ViewTree
		return nil, true
	}
	return nil, false
}

// toggleMonitoring starts or stops watching the roots
func (m *AppModel) toggleMonitoring() tea.Cmd {
	if m.svc.State() == session.StateBackupStarted {
		if m.monitorCancel != nil {
			m.monitorCancel()
			m.monitorCtx, m.monitorCancel = nil, nil
		}
		if err := m.svc.StopMonitoring(); err != nil {
			return statusCmd(err.Error(), true)
		}
		return statusCmd("Monitoring stopped", false)
	}

	err := m.svc.BeginMonitoring()
	if m.svc.State() != session.StateBackupStarted {
		if err == nil {
			err = errors.New("monitoring did not start")
		}
		return statusCmd(err.Error(), true)
	}

	m.monitorCtx, m.monitorCancel = context.WithCancel(context.Background())
	text, isErr := "Monitoring changes", false
	if err != nil {
		text, isErr = "Monitoring with errors: "+err.Error(), true
	}
	return tea.Batch(statusCmd(text, isErr), m.waitForEvents(m.monitorCtx))
}

// showTree switches to the tree view, creating it on first use
func (m *AppModel) showTree(status StatusMsg) tea.Cmd {
	m.state = ViewTree
	if m.treeView == nil {
		m.treeView = NewTreeViewModel(m.svc, m.keys, m.width, m.height)
	} else {
		m.treeView.Refresh()
	}
	m.status.SetMessage(status.Text, status.IsError)
	return nil
}

func scanStatus(res *scanner.Result, err error) StatusMsg {
	switch {
	case errors.Is(err, context.Canceled):
		return StatusMsg{Text: "Scan cancelled"}
	case err != nil:
		return StatusMsg{Text: "Scan failed: " + err.Error(), IsError: true}
	case res == nil:
		return StatusMsg{}
	case res.ErrorCount > 0:
		return StatusMsg{Text: fmt.Sprintf("Scan complete in %s, %d directories unreadable",
			progress.FormatDuration(res.Duration), res.ErrorCount), IsError: true}
	default:
		return StatusMsg{Text: fmt.Sprintf("Scan complete in %s", progress.FormatDuration(res.Duration))}
	}
}

// delegateUpdate delegates the update to the current view
func (m *AppModel) delegateUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.state {
	case ViewScanning:
		if m.scanView != nil {
			m.scanView, cmd = m.scanView.Update(msg)
		}
	case ViewTree:
		if m.treeView != nil {
			m.treeView, cmd = m.treeView.Update(msg)
		}
	case ViewOverride:
		if m.overrideView != nil {
			m.overrideView, cmd = m.overrideView.Update(msg)
		}
	}

	return m, cmd
}

// View renders the current view
func (m *AppModel) View() string {
	var body string

	switch m.state {
	case ViewScanning:
		if m.scanView != nil {
			body = m.scanView.View()
		}
	case ViewTree:
		if m.treeView != nil {
			body = styles.TitleStyle.Render("dataguard") + "\n" + m.treeView.View()
		}
	case ViewOverride:
		if m.overrideView != nil {
			body = m.overrideView.View()
		}
	case ViewEvents:
		body = m.eventsView.View(m.svc.State() == session.StateBackupStarted)
	case ViewHelp:
		return m.renderHelp()
	}

	if body == "" {
		body = "Loading..."
	}

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	if m.state == ViewTree {
		b.WriteString(m.help.View(m.keys))
		b.WriteString("\n")
	}
	m.updateStatus()
	b.WriteString(m.status.Render(m.width))
	return b.String()
}

// updateStatus refreshes the status bar from the forest
func (m *AppModel) updateStatus() {
	var total, excluded tree.Stats
	known := false
	for _, root := range m.svc.Forest().Roots() {
		if root.Known() {
			known = true
			total = total.Add(root.Total())
			excluded = excluded.Add(root.Excluded())
		}
	}

	views := map[ViewState]string{
		ViewScanning: "Scan",
		ViewTree:     "Tree",
		ViewOverride: "Override",
		ViewEvents:   "Events",
	}
	m.status.SetView(views[m.state])
	m.status.SetState(m.svc.State().String())
	m.status.SetTotals(total, excluded, known)
}

// renderHelp renders the full key reference
func (m *AppModel) renderHelp() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Help"))
	b.WriteString("\n\n")
	b.WriteString(`Every directory has a backup mode and a priority.

Modes:
  excluded     not backed up
  normal       backed up as usual
  append-only  files are only ever added (photos, archives)
  frozen       content no longer changes
  inherit      follow the parent directory

A * after the mode marks a manual override, ~ marks a directory
whose subdirectories use other modes. Setting a mode or priority
on a directory whose subdirectories have their own asks whether
to apply the change to them as well.`)
	b.WriteString("\n\n")

	full := m.help
	full.ShowAll = true
	b.WriteString(full.View(m.keys))

	b.WriteString("\n\n")
	b.WriteString(styles.HelpStyle.Render("Press any key to close"))
	return b.String()
}

// ScanCompleteMsg reports the end of a full scan
type ScanCompleteMsg struct {
	Gen    int
	Result *scanner.Result
	Err    error
}

// ScanCancelledMsg reports that the user cancelled the full scan
type ScanCancelledMsg struct{}

// EventsMsg carries one dispatched batch of changes
type EventsMsg struct {
	Events []watcher.Event
	Err    error
}

type refreshMsg time.Time
