package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fenilsonani/dataguard/internal/config"
	"github.com/fenilsonani/dataguard/internal/logging"
)

// Options controls watcher timing and filtering
type Options struct {
	Debounce         time.Duration
	DispatchInterval time.Duration
	RetryDelay       time.Duration // pause after a notification error
	StallTimeout     time.Duration // quiet time after which a pending delete is flushed
	BatchWindow      time.Duration // notifications closer together than this form one batch
	EventBuffer      int

	// Ignore reports directories whose changes are not interesting. Ignored
	// directories are not watched and their events are dropped.
	Ignore func(dir string) bool
}

// OptionsFromConfig extracts watcher options from the application config
func OptionsFromConfig(wc config.WatcherConfig) Options {
	return Options{
		Debounce:         wc.Debounce,
		DispatchInterval: wc.DispatchInterval,
		RetryDelay:       wc.RetryDelay,
		StallTimeout:     wc.StallTimeout,
		BatchWindow:      wc.BatchWindow,
		EventBuffer:      wc.EventBuffer,
	}
}

// SetupError reports a monitored directory that could not be watched
type SetupError struct {
	Dir string
	Err error
}

// Error implements the error interface
func (e *SetupError) Error() string {
	return fmt.Sprintf("failed to watch %s: %v", e.Dir, e.Err)
}

// Unwrap returns the underlying error
func (e *SetupError) Unwrap() error {
	return e.Err
}

// Watcher monitors one directory recursively and feeds the shared queue.
// It must be stopped before it is discarded; Stop joins the worker goroutine.
type Watcher struct {
	dir        string
	fsw        *fsnotify.Watcher
	queue      *Queue
	translator *Translator
	opts       Options
	logger     *logging.Logger
	now        func() time.Time

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for dir. The OS handle is opened here; the
// directory itself is only added by Start.
func NewWatcher(dir string, queue *Queue, opts Options, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewBufferedWatcher(uint(max(opts.EventBuffer, 0)))
	if err != nil {
		return nil, &SetupError{Dir: dir, Err: err}
	}

	return &Watcher{
		dir:        filepath.Clean(dir),
		fsw:        fsw,
		queue:      queue,
		translator: NewTranslator(filepath.Clean(dir)),
		opts:       opts,
		logger:     logging.OrDiscard(logger),
		now:        time.Now,
		done:       make(chan struct{}),
	}, nil
}

// Dir returns the monitored directory
func (w *Watcher) Dir() string {
	return w.dir
}

// Start watches the directory tree and launches the worker
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher for %s already running", w.dir)
	}

	info, err := os.Stat(w.dir)
	if err != nil {
		return &SetupError{Dir: w.dir, Err: err}
	}
	if !info.IsDir() {
		return &SetupError{Dir: w.dir, Err: errors.New("not a directory")}
	}
	if err := w.fsw.Add(w.dir); err != nil {
		return &SetupError{Dir: w.dir, Err: err}
	}
	w.addTree(w.dir, false)

	w.running = true
	w.wg.Add(1)
	go w.run()

	w.logger.Debug("Watching %s", w.dir)
	return nil
}

// Stop signals the worker, closes the OS handle and waits for the worker to
// exit. A pending delete is flushed to the queue first.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()

	if err != nil {
		return fmt.Errorf("failed to close watcher for %s: %w", w.dir, err)
	}
	return nil
}

// IsRunning returns true if the worker is active
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// addTree adds every directory below dir. Subdirectories that cannot be
// watched are logged and skipped. With self set dir is added as well.
func (w *Watcher) addTree(dir string, self bool) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("Not watching %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path == dir && !self {
			return nil
		}
		if w.opts.Ignore != nil && w.opts.Ignore(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Debug("Not watching %s: %v", path, err)
			return filepath.SkipDir
		}
		return nil
	})
}

func (w *Watcher) run() {
	defer w.wg.Done()

	var batch []RawRecord
	var batchC, stallC <-chan time.Time

	deliver := func(events []Event) {
		for _, e := range events {
			w.queue.Push(e)
		}
	}
	flushBatch := func() {
		if len(batch) > 0 {
			deliver(w.translator.Translate(batch, w.now()))
			batch = nil
		}
		batchC = nil
		stallC = nil
		if w.translator.HasPending() {
			stallC = time.After(w.opts.StallTimeout)
		}
	}
	defer func() {
		flushBatch()
		deliver(w.translator.Flush(w.now()))
	}()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			rec, ok := w.convert(ev)
			if !ok {
				continue
			}
			batch = appendRecord(batch, rec)
			if rec.IsDir && (rec.Action == ActionAdded || rec.Action == ActionRenamedNew) {
				w.addTree(rec.Path, true)
			}
			if batchC == nil {
				batchC = time.After(w.opts.BatchWindow)
			}

		case <-batchC:
			flushBatch()

		case <-stallC:
			stallC = nil
			deliver(w.translator.Flush(w.now()))

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Notification error on %s, retrying in %s: %v", w.dir, w.opts.RetryDelay, err)
			flushBatch()
			deliver(w.translator.Flush(w.now()))
			stallC = nil
			select {
			case <-w.done:
				return
			case <-time.After(w.opts.RetryDelay):
			}
		}
	}
}

// convert maps an fsnotify event to a raw record. Attribute-only changes and
// events inside ignored directories are dropped.
func (w *Watcher) convert(ev fsnotify.Event) (RawRecord, bool) {
	path := filepath.Clean(ev.Name)
	if w.opts.Ignore != nil && w.opts.Ignore(filepath.Dir(path)) {
		return RawRecord{}, false
	}

	rec := RawRecord{Path: path}
	switch {
	case ev.Has(fsnotify.Create):
		rec.Action = ActionAdded
	case ev.Has(fsnotify.Write):
		rec.Action = ActionModified
	case ev.Has(fsnotify.Remove):
		rec.Action = ActionRemoved
		return rec, true
	case ev.Has(fsnotify.Rename):
		rec.Action = ActionRenamedOld
		return rec, true
	default:
		return RawRecord{}, false
	}

	if info, err := os.Lstat(path); err == nil {
		rec.IsDir = info.IsDir()
	}
	return rec, true
}

// appendRecord adds rec to batch. fsnotify reports a rename as the old name
// going away followed by a create of the new name; when both land in the same
// directory back to back the create is the rename's second half.
func appendRecord(batch []RawRecord, rec RawRecord) []RawRecord {
	if rec.Action == ActionAdded && len(batch) > 0 {
		last := batch[len(batch)-1]
		if last.Action == ActionRenamedOld && filepath.Dir(last.Path) == filepath.Dir(rec.Path) {
			rec.Action = ActionRenamedNew
		}
	}
	return append(batch, rec)
}
