package session

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fenilsonani/dataguard/internal/classifier"
	"github.com/fenilsonani/dataguard/internal/config"
	"github.com/fenilsonani/dataguard/internal/scanner"
	"github.com/fenilsonani/dataguard/internal/testutil"
	"github.com/fenilsonani/dataguard/internal/tree"
	"github.com/fenilsonani/dataguard/internal/watcher"
)

// slowLister serves an in-memory tree, optionally pausing on every listing
type slowLister struct {
	mu      sync.Mutex
	dirs    map[string][]scanner.Entry
	delay   atomic.Int64
	started chan struct{}
	once    sync.Once
}

func newSlowLister() *slowLister {
	return &slowLister{dirs: map[string][]scanner.Entry{}, started: make(chan struct{})}
}

func (l *slowLister) ReadDir(path string) ([]scanner.Entry, error) {
	l.once.Do(func() { close(l.started) })
	time.Sleep(time.Duration(l.delay.Load()))

	l.mu.Lock()
	defer l.mu.Unlock()
	entries, ok := l.dirs[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return entries, nil
}

// chain builds root/d/d/... depth levels deep with one file per level
func (l *slowLister) chain(root string, depth int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	path := root
	for i := 0; i < depth; i++ {
		l.dirs[path] = []scanner.Entry{
			{Name: "d", Dir: true},
			{Name: "f", Size: 10, ModTime: time.Now().Add(-time.Hour)},
		}
		path = filepath.Join(path, "d")
	}
	l.dirs[path] = nil
}

func newController(t *testing.T, roots []string, lister scanner.Lister, store *config.OverrideStore) *Controller {
	t.Helper()
	s := scanner.New(scanner.Options{}, classifier.DefaultSettings(), lister, nil)
	c := New(Options{
		Roots:     roots,
		Scanner:   s,
		Overrides: store,
		Watcher: watcher.Options{
			Debounce:         30 * time.Millisecond,
			DispatchInterval: 10 * time.Millisecond,
			RetryDelay:       10 * time.Millisecond,
			StallTimeout:     50 * time.Millisecond,
			BatchWindow:      10 * time.Millisecond,
			EventBuffer:      16,
		},
	})
	t.Cleanup(func() { c.Close() })
	return c
}

func waitScan(t *testing.T, c *Controller) *scanner.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := c.WaitScan(ctx)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return res
}

// =============================================================================
// Scan lifecycle
// =============================================================================

func TestRestartScanCompletes(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile(filepath.Join("a", "one.txt"), []byte("1"))
	f.CreateFile(filepath.Join("b", "two.txt"), []byte("22"))

	c := newController(t, []string{f.RootDir}, nil, nil)
	if c.State() != StateIdle {
		t.Errorf("initial state = %v", c.State())
	}

	state, err := c.RestartScan()
	if err != nil || state != StateScanStarted {
		t.Fatalf("RestartScan = %v, %v", state, err)
	}
	res := waitScan(t, c)

	if c.State() != StateScanCompleted {
		t.Errorf("state = %v, want completed", c.State())
	}
	if res.FilesFound != 2 {
		t.Errorf("files = %d", res.FilesFound)
	}
	root := c.Forest().Roots()[0]
	if root.Total() != (tree.Stats{Files: 2, Size: 3}) {
		t.Errorf("root total = %+v", root.Total())
	}
	if err := tree.CheckInvariants(root); err != nil {
		t.Errorf("CheckInvariants: %v", err)
	}
}

func TestCancelScanMarksRootsExcluded(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "deep")
	l := newSlowLister()
	l.chain(root, 5000)
	l.delay.Store(int64(time.Millisecond))

	c := newController(t, []string{root}, l, nil)
	if _, err := c.RestartScan(); err != nil {
		t.Fatal(err)
	}
	<-l.started

	begin := time.Now()
	if state := c.CancelScan(); state != StateScanCancelled {
		t.Fatalf("CancelScan = %v", state)
	}
	if elapsed := time.Since(begin); elapsed > 2*time.Second {
		t.Errorf("cancel took %v", elapsed)
	}

	roots := c.Forest().Roots()
	if len(roots) != 1 {
		t.Fatalf("roots = %d", len(roots))
	}
	r := roots[0]
	if r.Mode() != tree.ModeExcluded || !r.NotTraversed() {
		t.Errorf("root mode=%v notTraversed=%v", r.Mode(), r.NotTraversed())
	}
	if r.NumChildren() != 0 || !r.HasSubdirs() {
		t.Errorf("cancelled root should be listed one level: children=%d hasSubdirs=%v", r.NumChildren(), r.HasSubdirs())
	}
	if r.Known() {
		t.Error("cancelled root should display as unknown")
	}
	if err := tree.CheckInvariants(r); err != nil {
		t.Errorf("CheckInvariants: %v", err)
	}
	if _, err := c.WaitScan(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("WaitScan err = %v", err)
	}
}

func TestExpandCancelledRootScansLazily(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "deep")
	l := newSlowLister()
	l.chain(root, 50)
	l.delay.Store(int64(5 * time.Millisecond))

	c := newController(t, []string{root}, l, nil)
	c.RestartScan()
	<-l.started
	c.CancelScan()
	l.delay.Store(0)

	r := c.Forest().Roots()[0]
	if !c.Expand(r) {
		t.Fatal("expanding a not-traversed root should start a lazy scan")
	}
	c.WaitLazy()

	if !r.Expanded() || r.NotTraversed() {
		t.Errorf("expanded=%v notTraversed=%v", r.Expanded(), r.NotTraversed())
	}
	if r.Total() != (tree.Stats{Files: 50, Size: 500}) {
		t.Errorf("total = %+v", r.Total())
	}
	if r.Excluded() != r.Total() {
		t.Errorf("excluded = %+v, the whole cancelled root stays excluded", r.Excluded())
	}
	if c.Expand(r) {
		t.Error("a traversed node should not be scanned again")
	}
	c.Collapse(r)
	if r.Expanded() {
		t.Error("Collapse should clear the expanded flag")
	}
}

func TestRestartAfterCancel(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("x", []byte("abc"))

	c := newController(t, []string{f.RootDir}, nil, nil)
	c.RestartScan()
	waitScan(t, c)
	c.CancelScan()

	if _, err := c.RestartScan(); err != nil {
		t.Fatal(err)
	}
	waitScan(t, c)
	r := c.Forest().Roots()[0]
	if r.NotTraversed() || r.Total().Size != 3 {
		t.Errorf("rescan should replace the cancelled root, got total %+v", r.Total())
	}
}

// =============================================================================
// Overrides
// =============================================================================

func TestOverridesSurviveRescan(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile(filepath.Join("keep", "a.txt"), []byte("aaaa"))
	f.CreateFile(filepath.Join("keep", "sub", "b.txt"), []byte("b"))
	store, err := config.NewOverrideStore(filepath.Join(t.TempDir(), "overrides.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	c := newController(t, []string{f.RootDir}, nil, store)
	c.RestartScan()
	waitScan(t, c)

	keep := c.Forest().Lookup(f.Path("keep"))
	if err := c.SetMode(keep, tree.ModeExcluded); err != nil {
		t.Fatal(err)
	}
	if err := c.SetPriority(keep, tree.PriorityLowest, true); err != nil {
		t.Fatal(err)
	}
	root := c.Forest().Roots()[0]
	if root.Excluded().Size != 5 || !root.Mixed() {
		t.Fatalf("root excluded=%+v mixed=%v", root.Excluded(), root.Mixed())
	}

	saved, err := store.List()
	if err != nil || len(saved) != 1 {
		t.Fatalf("saved = %v, %v", saved, err)
	}
	if saved[0].Mode != "excluded" || saved[0].Priority != "lowest" || !saved[0].Cascade {
		t.Errorf("saved override = %+v", saved[0])
	}

	c.RestartScan()
	waitScan(t, c)

	keep = c.Forest().Lookup(f.Path("keep"))
	if keep.ModeManual() != tree.ModeExcluded || keep.PriorityManual() != tree.PriorityLowest {
		t.Errorf("override not re-applied: %v/%v", keep.ModeManual(), keep.PriorityManual())
	}
	root = c.Forest().Roots()[0]
	if root.Excluded().Size != 5 {
		t.Errorf("root excluded after rescan = %+v", root.Excluded())
	}
	if err := tree.CheckInvariants(root); err != nil {
		t.Errorf("CheckInvariants: %v", err)
	}

	if err := c.SetMode(keep, tree.ModeAuto); err != nil {
		t.Fatal(err)
	}
	if err := c.SetPriority(keep, tree.PriorityAuto, false); err != nil {
		t.Fatal(err)
	}
	if saved, _ := store.List(); len(saved) != 0 {
		t.Errorf("clearing both overrides should remove the entry, got %v", saved)
	}
}

func TestApplyModeToConflicts(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFileWithAge(filepath.Join("work", "Photos", "p.jpg"), []byte("p"), time.Hour)
	f.CreateFileWithAge(filepath.Join("work", "notes.txt"), []byte("n"), time.Hour)

	c := newController(t, []string{f.RootDir}, nil, nil)
	c.RestartScan()
	waitScan(t, c)

	work := c.Forest().Lookup(f.Path("work"))
	conflicts := tree.ModeConflicts(work, tree.ModeFrozen)
	if len(conflicts) != 1 || conflicts[0].Name() != "Photos" {
		t.Fatalf("conflicts = %v", conflicts)
	}
	if err := c.SetMode(work, tree.ModeFrozen); err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyMode(conflicts, tree.ModeInherit); err != nil {
		t.Fatal(err)
	}
	if got := conflicts[0].ModeNoInherit(); got != tree.ModeFrozen {
		t.Errorf("Photos resolves to %v, want frozen", got)
	}
	if work.Mixed() {
		t.Error("work should no longer be mixed")
	}
}

// =============================================================================
// Monitoring
// =============================================================================

func TestMonitoringDeliversEvents(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("seed.txt", []byte("s"))

	c := newController(t, []string{f.RootDir}, nil, nil)
	c.RestartScan()
	waitScan(t, c)

	if err := c.BeginMonitoring(); err != nil {
		t.Fatalf("BeginMonitoring: %v", err)
	}
	if c.State() != StateBackupStarted {
		t.Errorf("state = %v", c.State())
	}
	if _, err := c.RestartScan(); !errors.Is(err, ErrMonitoring) {
		t.Errorf("RestartScan while monitoring err = %v", err)
	}

	f.CreateFile("fresh.txt", []byte("new"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []watcher.Event
	for len(got) == 0 {
		batch, err := c.NextEvents(ctx)
		if err != nil {
			t.Fatalf("no events dispatched: %v", err)
		}
		for _, e := range batch {
			if e.Name == "fresh.txt" {
				got = append(got, e)
			}
		}
	}
	if got[0].Kind != watcher.KindCreate {
		t.Errorf("events = %v, want CREATE first", got)
	}

	if err := c.StopMonitoring(); err != nil {
		t.Errorf("StopMonitoring: %v", err)
	}
	if c.State() != StateScanCompleted {
		t.Errorf("state after stop = %v", c.State())
	}
}

func TestMonitoringSkipsExcluded(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile(filepath.Join("cache", "c.bin"), []byte("c"))
	f.CreateFile(filepath.Join("docs", "d.txt"), []byte("d"))

	c := newController(t, []string{f.RootDir}, nil, nil)
	c.RestartScan()
	waitScan(t, c)

	if err := c.SetMode(c.Forest().Lookup(f.Path("cache")), tree.ModeExcluded); err != nil {
		t.Fatal(err)
	}
	if err := c.BeginMonitoring(); err != nil {
		t.Fatal(err)
	}

	f.CreateFile(filepath.Join("cache", "ignored.bin"), nil)
	f.CreateFile(filepath.Join("docs", "seen.txt"), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seen := false
	for !seen {
		batch, err := c.NextEvents(ctx)
		if err != nil {
			t.Fatalf("no event for docs/seen.txt: %v", err)
		}
		for _, e := range batch {
			if strings.EqualFold(e.Name, "ignored.bin") {
				t.Errorf("event under an excluded directory: %v", e)
			}
			seen = seen || e.Name == "seen.txt"
		}
	}
}

func TestBeginMonitoringExcludedRoot(t *testing.T) {
	f := testutil.NewFixture(t)
	c := newController(t, []string{f.RootDir}, nil, nil)
	c.RestartScan()
	waitScan(t, c)

	if err := c.SetMode(c.Forest().Roots()[0], tree.ModeExcluded); err != nil {
		t.Fatal(err)
	}
	if err := c.BeginMonitoring(); err == nil {
		t.Error("monitoring only excluded roots should fail")
	}
	if c.State() == StateBackupStarted {
		t.Error("state should not change when nothing is monitored")
	}
}
