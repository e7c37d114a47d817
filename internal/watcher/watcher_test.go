package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fenilsonani/dataguard/internal/testutil"
)

func testOptions() Options {
	return Options{
		Debounce:         50 * time.Millisecond,
		DispatchInterval: 10 * time.Millisecond,
		RetryDelay:       10 * time.Millisecond,
		StallTimeout:     100 * time.Millisecond,
		BatchWindow:      20 * time.Millisecond,
		EventBuffer:      64,
	}
}

func startWatcher(t *testing.T, dir string, opts Options) (*Watcher, *Queue) {
	t.Helper()
	q := NewQueue()
	w, err := NewWatcher(dir, q, opts, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return w, q
}

func hasEvent(q *Queue, kind Kind, name string) bool {
	for _, e := range q.Snapshot() {
		if e.Kind == kind && e.Name == name {
			return true
		}
	}
	return false
}

// =============================================================================
// fsnotify integration
// =============================================================================

func TestWatcherReportsCreate(t *testing.T) {
	f := testutil.NewFixture(t)
	_, q := startWatcher(t, f.RootDir, testOptions())

	f.CreateFile("new.txt", []byte("hello"))

	testutil.Eventually(t, 2*time.Second, func() bool {
		return hasEvent(q, KindCreate, "new.txt")
	}, "CREATE for new.txt")

	// The write that follows the create is folded into it
	for _, e := range q.Snapshot() {
		if e.Kind == KindModify && e.Name == "new.txt" {
			t.Errorf("modify should have merged into the pending create: %v", q.Snapshot())
		}
	}
}

func TestWatcherRecursesIntoNewDirectories(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDir("existing")
	_, q := startWatcher(t, f.RootDir, testOptions())

	f.CreateFile(filepath.Join("existing", "a.txt"), nil)
	testutil.Eventually(t, 2*time.Second, func() bool {
		return hasEvent(q, KindCreate, "a.txt")
	}, "CREATE in pre-existing subdirectory")

	f.CreateDir("fresh")
	testutil.Eventually(t, 2*time.Second, func() bool {
		return hasEvent(q, KindCreate, "fresh")
	}, "CREATE for new directory")

	// Give the watcher a moment to add the new directory
	time.Sleep(100 * time.Millisecond)
	f.CreateFile(filepath.Join("fresh", "b.txt"), nil)
	testutil.Eventually(t, 2*time.Second, func() bool {
		return hasEvent(q, KindCreate, "b.txt")
	}, "CREATE inside newly created directory")
}

func TestWatcherReportsRename(t *testing.T) {
	f := testutil.NewFixture(t)
	old := f.CreateFile("draft.txt", []byte("x"))
	_, q := startWatcher(t, f.RootDir, testOptions())

	if err := os.Rename(old, f.Path("final.txt")); err != nil {
		t.Fatal(err)
	}

	testutil.Eventually(t, 2*time.Second, func() bool {
		for _, e := range q.Snapshot() {
			if (e.Kind == KindRename || e.Kind == KindMove) && e.Name == "draft.txt" && e.NewName == "final.txt" {
				return true
			}
		}
		return false
	}, "RENAME draft.txt -> final.txt")

	if hasEvent(q, KindDelete, "draft.txt") || hasEvent(q, KindCreate, "final.txt") {
		t.Errorf("rename should not produce a DELETE/CREATE pair: %v", q.Snapshot())
	}
}

func TestWatcherFlushesStalledDelete(t *testing.T) {
	f := testutil.NewFixture(t)
	path := f.CreateFile("doomed.txt", []byte("x"))
	_, q := startWatcher(t, f.RootDir, testOptions())

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	testutil.Eventually(t, 2*time.Second, func() bool {
		return hasEvent(q, KindDelete, "doomed.txt")
	}, "DELETE after the stall timeout")
}

func TestWatcherIgnoresFilteredDirectories(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDir("skip")
	opts := testOptions()
	opts.Ignore = func(dir string) bool { return strings.EqualFold(filepath.Base(dir), "skip") }
	_, q := startWatcher(t, f.RootDir, opts)

	f.CreateFile(filepath.Join("skip", "x"), nil)
	f.CreateFile("kept", nil)

	testutil.Eventually(t, 2*time.Second, func() bool {
		return hasEvent(q, KindCreate, "kept")
	}, "CREATE for kept")
	if hasEvent(q, KindCreate, "x") {
		t.Error("events under an ignored directory should be dropped")
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestWatcherStop(t *testing.T) {
	f := testutil.NewFixture(t)
	w, _ := startWatcher(t, f.RootDir, testOptions())

	if !w.IsRunning() {
		t.Fatal("watcher should be running")
	}
	if err := w.Start(); err == nil {
		t.Error("second Start should fail")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher should be stopped")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}

func TestWatcherSetupError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	w, err := NewWatcher(missing, NewQueue(), testOptions(), nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.fsw.Close()

	err = w.Start()
	var setupErr *SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("err = %v, want SetupError", err)
	}
	if setupErr.Dir != missing || !os.IsNotExist(setupErr.Err) {
		t.Errorf("setup error = %+v", setupErr)
	}
}

func TestMonitorBeginReportsFailures(t *testing.T) {
	f := testutil.NewFixture(t)
	good := f.CreateDir("good")
	missing := f.Path("missing")

	m := NewMonitor(NewQueue(), testOptions(), nil)
	err := m.Begin([]string{good, missing})
	defer m.Stop()

	var setupErr *SetupError
	if !errors.As(err, &setupErr) || setupErr.Dir != missing {
		t.Errorf("err = %v, want SetupError for the missing dir", err)
	}
	if dirs := m.Dirs(); len(dirs) != 1 || dirs[0] != good {
		t.Errorf("dirs = %v, the good directory should still be watched", dirs)
	}
	if err := m.Begin([]string{good}); err == nil {
		t.Error("Begin while active should fail")
	}

	if err := m.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if m.Active() {
		t.Error("monitor should be inactive after Stop")
	}
}
