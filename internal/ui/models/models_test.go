package models

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/dataguard/internal/scanner"
	"github.com/fenilsonani/dataguard/internal/session"
	"github.com/fenilsonani/dataguard/internal/tree"
	"github.com/fenilsonani/dataguard/internal/watcher"
)

// fakeService drives the models without scanners or watchers
type fakeService struct {
	forest    *tree.Forest
	state     session.State
	restarts  int
	cancelled bool
	expanded  []*tree.Node
	events    chan []watcher.Event
}

func (s *fakeService) Forest() *tree.Forest { return s.forest }
func (s *fakeService) State() session.State { return s.state }

func (s *fakeService) RestartScan() (session.State, error) {
	if s.state == session.StateBackupStarted {
		return s.state, session.ErrMonitoring
	}
	s.restarts++
	s.state = session.StateScanStarted
	return s.state, nil
}

func (s *fakeService) CancelScan() session.State {
	s.cancelled = true
	s.state = session.StateScanCancelled
	return s.state
}

func (s *fakeService) WaitScan(ctx context.Context) (*scanner.Result, error) {
	return &scanner.Result{Duration: time.Second}, nil
}

func (s *fakeService) Expand(n *tree.Node) bool {
	n.SetExpanded(true)
	s.expanded = append(s.expanded, n)
	return n.NotTraversed()
}

func (s *fakeService) Collapse(n *tree.Node) { n.SetExpanded(false) }

func (s *fakeService) SetMode(n *tree.Node, m tree.Mode) error { return tree.SetModeManual(n, m) }

func (s *fakeService) SetPriority(n *tree.Node, p tree.Priority, cascade bool) error {
	if err := tree.SetPriorityManual(n, p); err != nil {
		return err
	}
	if cascade {
		tree.CascadePriority(n, p)
	}
	return nil
}

func (s *fakeService) ApplyMode(nodes []*tree.Node, m tree.Mode) error {
	return tree.ApplyMode(nodes, m)
}

func (s *fakeService) BeginMonitoring() error {
	s.state = session.StateBackupStarted
	return nil
}

func (s *fakeService) StopMonitoring() error {
	s.state = session.StateScanCompleted
	return nil
}

func (s *fakeService) NextEvents(ctx context.Context) ([]watcher.Event, error) {
	select {
	case e := <-s.events:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// newFakeService builds /data with docs/{a,b} and photos. docs/a carries a
// manual frozen mode and a manual high priority.
func newFakeService(t *testing.T) *fakeService {
	t.Helper()

	root := tree.NewRoot(filepath.Join(string(filepath.Separator), "data"))
	root.SetModeAuto(tree.ModeNormal)
	docs := root.InsertChild("docs")
	a := docs.InsertChild("a")
	b := docs.InsertChild("b")
	photos := root.InsertChild("photos")

	for _, n := range []*tree.Node{a, b, docs, photos, root} {
		n.MarkScanStarted()
	}
	a.ApplyScan(tree.Stats{Files: 1, Size: 100}, time.Time{})
	b.ApplyScan(tree.Stats{Files: 1, Size: 50}, time.Time{})
	photos.ApplyScan(tree.Stats{Files: 10, Size: 5000}, time.Time{})

	if err := tree.SetModeManual(a, tree.ModeFrozen); err != nil {
		t.Fatal(err)
	}
	if err := tree.SetPriorityManual(a, tree.PriorityHigh); err != nil {
		t.Fatal(err)
	}

	return &fakeService{
		forest: tree.NewForest(root),
		state:  session.StateScanCompleted,
		events: make(chan []watcher.Event, 4),
	}
}

func (s *fakeService) node(path ...string) *tree.Node {
	n := s.forest.Roots()[0]
	for _, p := range path {
		n = n.Child(p)
	}
	return n
}

func keyPress(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

// =============================================================================
// Tree view
// =============================================================================

func TestTreeViewExpandCollapse(t *testing.T) {
	svc := newFakeService(t)
	m := NewTreeViewModel(svc, DefaultKeyMap(), 100, 40)

	if m.Rows() != 1 {
		t.Fatalf("collapsed forest shows %d rows, want 1", m.Rows())
	}

	m, _ = m.Update(keyPress("l"))
	if m.Rows() != 3 {
		t.Fatalf("expanded root shows %d rows, want 3", m.Rows())
	}
	if len(svc.expanded) != 1 || svc.expanded[0] != svc.node() {
		t.Errorf("Expand not routed through the service: %v", svc.expanded)
	}

	// Sorted by size: photos (5000) before docs (150)
	m, _ = m.Update(keyPress("j"))
	if got := m.Selected(); got != svc.node("photos") {
		t.Errorf("selected %s, want photos", got.Name())
	}

	// Collapse on a closed child jumps to the parent
	m, _ = m.Update(keyPress("h"))
	if got := m.Selected(); got != svc.node() {
		t.Errorf("selected %s, want root", got.Name())
	}

	m, _ = m.Update(keyPress("h"))
	if m.Rows() != 1 || svc.node().Expanded() {
		t.Errorf("root should be collapsed, rows = %d", m.Rows())
	}
}

func TestTreeViewSortCycle(t *testing.T) {
	svc := newFakeService(t)
	m := NewTreeViewModel(svc, DefaultKeyMap(), 100, 40)
	m, _ = m.Update(keyPress("l"))

	m, cmd := m.Update(keyPress("s"))
	if m.SortBy() != tree.SortByCount {
		t.Errorf("sort = %v, want count", m.SortBy())
	}
	if msg, ok := cmd().(StatusMsg); !ok || !strings.Contains(msg.Text, "count") {
		t.Errorf("sort should report the new order, got %#v", msg)
	}

	m, _ = m.Update(keyPress("s"))
	m, _ = m.Update(keyPress("j"))
	if m.SortBy() != tree.SortByName || m.Selected() != svc.node("docs") {
		t.Errorf("name order should put docs first, got %s", m.Selected().Name())
	}
}

func TestTreeViewLazyExpand(t *testing.T) {
	svc := newFakeService(t)
	stub := svc.node("photos").InsertChild("2023")
	stub.SetNotTraversed(true)
	stub.SetHasSubdirs(true)
	svc.node().SetExpanded(true)
	svc.node("photos").SetExpanded(true)

	m := NewTreeViewModel(svc, DefaultKeyMap(), 100, 40)
	for m.Selected() != stub {
		m, _ = m.Update(keyPress("j"))
	}

	m, cmd := m.Update(keyPress("l"))
	if cmd == nil {
		t.Fatal("expanding a not-traversed directory should report the lazy scan")
	}
	if msg := cmd().(StatusMsg); !strings.Contains(msg.Text, "Scanning") {
		t.Errorf("status = %q", msg.Text)
	}
	if !strings.Contains(m.View(), "scanning") {
		t.Error("row of a directory being scanned should say so")
	}
}

func TestTreeViewInfoPanel(t *testing.T) {
	svc := newFakeService(t)
	m := NewTreeViewModel(svc, DefaultKeyMap(), 100, 40)

	m, _ = m.Update(keyPress("i"))
	if !m.InfoVisible() {
		t.Fatal("info panel should open")
	}
	if !strings.Contains(m.View(), "Directory Information") {
		t.Error("view should render the panel")
	}
	m, _ = m.Update(keyPress("esc"))
	if m.InfoVisible() {
		t.Error("esc should close the panel")
	}
}

// =============================================================================
// Override picker
// =============================================================================

func choose(m *OverrideViewModel, steps int) (*OverrideViewModel, tea.Cmd) {
	for i := 0; i < steps; i++ {
		m, _ = m.Update(keyPress("j"))
	}
	return m.Update(keyPress("enter"))
}

func TestOverrideAppliesWithoutConflicts(t *testing.T) {
	svc := newFakeService(t)
	b := svc.node("docs", "b")

	m := NewOverrideViewModel(svc, b, OverrideMode, 100, 40)
	m, cmd := choose(m, 4) // frozen
	if m.Confirming() {
		t.Fatal("a leaf has no conflicts to confirm")
	}
	done := cmd().(OverrideDoneMsg)
	if done.Err != nil || !strings.Contains(done.Text, "frozen") {
		t.Errorf("done = %+v", done)
	}
	if b.ModeManual() != tree.ModeFrozen {
		t.Errorf("b mode = %v", b.ModeManual())
	}
}

func TestOverrideModeConflictsApplyToAll(t *testing.T) {
	svc := newFakeService(t)
	docs, a := svc.node("docs"), svc.node("docs", "a")

	m := NewOverrideViewModel(svc, docs, OverrideMode, 100, 40)
	m, cmd := choose(m, 1) // excluded
	if cmd != nil || !m.Confirming() {
		t.Fatal("conflicting descendant should trigger the prompt")
	}
	if c := m.Conflicts(); len(c) != 1 || c[0] != a {
		t.Fatalf("conflicts = %v", c)
	}
	if !strings.Contains(m.View(), "Apply to all") {
		t.Error("prompt should offer to apply to all")
	}

	_, cmd = m.Update(keyPress("y"))
	if done := cmd().(OverrideDoneMsg); !strings.Contains(done.Text, "1 subdirectories") {
		t.Errorf("done = %+v", done)
	}
	if docs.ModeManual() != tree.ModeExcluded || a.ModeManual() != tree.ModeExcluded {
		t.Errorf("modes = %v, %v; want both excluded", docs.ModeManual(), a.ModeManual())
	}
	if got := svc.node().Excluded(); got.Size != 150 {
		t.Errorf("root excluded = %+v, want 150 bytes", got)
	}
}

func TestOverridePriorityOnlyThisDirectory(t *testing.T) {
	svc := newFakeService(t)
	docs, a := svc.node("docs"), svc.node("docs", "a")

	m := NewOverrideViewModel(svc, docs, OverridePriority, 100, 40)
	m, _ = choose(m, 4) // low
	if !m.Confirming() {
		t.Fatal("a's high priority should conflict with low")
	}

	_, cmd := m.Update(keyPress("n"))
	cmd()
	if docs.Priority() != tree.PriorityLow {
		t.Errorf("docs priority = %v", docs.Priority())
	}
	if a.Priority() != tree.PriorityHigh {
		t.Errorf("a priority = %v, should be untouched", a.Priority())
	}
}

func TestOverrideRootOffersNoInherit(t *testing.T) {
	svc := newFakeService(t)
	m := NewOverrideViewModel(svc, svc.node(), OverrideMode, 100, 40)
	if strings.Contains(m.View(), "inherit") {
		t.Error("a root cannot inherit")
	}
}

// =============================================================================
// App
// =============================================================================

func TestAppScanFlow(t *testing.T) {
	svc := newFakeService(t)
	app := NewAppModel(svc, nil)
	app.Init()

	if app.State() != ViewScanning || svc.restarts != 1 {
		t.Fatalf("state = %v, restarts = %d", app.State(), svc.restarts)
	}
	if !strings.Contains(app.View(), "Scanning") {
		t.Error("scan view should render")
	}

	app.Update(ScanCompleteMsg{Gen: 0})
	if app.State() != ViewScanning {
		t.Error("a stale completion must be ignored")
	}

	app.Update(ScanCompleteMsg{Gen: 1, Result: &scanner.Result{Duration: time.Second}})
	if app.State() != ViewTree {
		t.Fatalf("state = %v, want tree", app.State())
	}
	if view := app.View(); !strings.Contains(view, "Scan complete") || !strings.Contains(view, "data") {
		t.Errorf("tree view missing content:\n%s", view)
	}
}

func TestAppCancelScan(t *testing.T) {
	svc := newFakeService(t)
	app := NewAppModel(svc, nil)
	app.Init()

	_, cmd := app.Update(keyPress("c"))
	msg := cmd()
	if !svc.cancelled {
		t.Fatal("cancel key should cancel the scan")
	}
	app.Update(msg)
	if app.State() != ViewTree {
		t.Errorf("state = %v, want tree", app.State())
	}

	// The waiting scan command completes afterwards and is ignored
	app.Update(ScanCompleteMsg{Gen: 1})
	if app.State() != ViewTree {
		t.Error("late completion of the cancelled scan changed the view")
	}
}

func TestAppMonitoring(t *testing.T) {
	svc := newFakeService(t)
	app := NewAppModel(svc, nil)
	app.Init()
	app.Update(ScanCompleteMsg{Gen: 1})

	_, cmd := app.Update(keyPress("w"))
	if svc.state != session.StateBackupStarted || cmd == nil {
		t.Fatalf("state = %v", svc.state)
	}

	events := []watcher.Event{{Kind: watcher.KindCreate, Dir: "/data", Name: "new.txt", At: time.Now()}}
	_, next := app.Update(EventsMsg{Events: events})
	if app.eventsView.Len() != 1 || next == nil {
		t.Errorf("event log = %d, re-armed = %v", app.eventsView.Len(), next != nil)
	}

	app.Update(keyPress("e"))
	if app.State() != ViewEvents || !strings.Contains(app.View(), "new.txt") {
		t.Errorf("events view should list the change")
	}
	app.Update(keyPress("esc"))
	if app.State() != ViewTree {
		t.Errorf("esc should return to the tree, state = %v", app.State())
	}

	_, cmd = app.Update(keyPress("r"))
	if msg := cmd().(StatusMsg); !msg.IsError {
		t.Error("rescan while monitoring should be refused")
	}

	app.Update(keyPress("w"))
	if svc.state != session.StateScanCompleted || app.monitorCtx != nil {
		t.Errorf("monitoring should stop, state = %v", svc.state)
	}
}

func TestAppOverrideRoundTrip(t *testing.T) {
	svc := newFakeService(t)
	app := NewAppModel(svc, nil)
	app.Init()
	app.Update(ScanCompleteMsg{Gen: 1})

	_, cmd := app.Update(keyPress("m"))
	app.Update(cmd())
	if app.State() != ViewOverride {
		t.Fatalf("state = %v, want override", app.State())
	}

	// q closes the picker instead of quitting
	_, cmd = app.Update(keyPress("q"))
	app.Update(cmd())
	if app.State() != ViewTree {
		t.Errorf("state = %v, want tree", app.State())
	}
}

func TestAppHelp(t *testing.T) {
	svc := newFakeService(t)
	app := NewAppModel(svc, nil)
	app.Init()
	app.Update(ScanCompleteMsg{Gen: 1})

	app.Update(keyPress("?"))
	if app.State() != ViewHelp || !strings.Contains(app.View(), "append-only") {
		t.Fatal("help should describe the modes")
	}
	app.Update(keyPress("x"))
	if app.State() != ViewTree {
		t.Errorf("any key should close help, state = %v", app.State())
	}
}
