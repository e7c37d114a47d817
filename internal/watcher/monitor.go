package watcher

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fenilsonani/dataguard/internal/logging"
)

// Monitor owns the set of active watchers feeding one queue
type Monitor struct {
	queue  *Queue
	opts   Options
	logger *logging.Logger

	mu       sync.Mutex
	watchers []*Watcher
}

// NewMonitor creates a monitor that pushes into queue
func NewMonitor(queue *Queue, opts Options, logger *logging.Logger) *Monitor {
	return &Monitor{
		queue:  queue,
		opts:   opts,
		logger: logging.OrDiscard(logger),
	}
}

// Queue returns the queue the watchers feed
func (m *Monitor) Queue() *Queue {
	return m.queue
}

// Begin starts one watcher per directory. Directories that cannot be watched
// are reported as joined SetupErrors; the others keep running.
func (m *Monitor) Begin(dirs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.watchers) > 0 {
		return fmt.Errorf("monitoring already active on %d directories", len(m.watchers))
	}

	var errs []error
	for _, dir := range dirs {
		w, err := NewWatcher(dir, m.queue, m.opts, m.logger)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := w.Start(); err != nil {
			w.fsw.Close()
			errs = append(errs, err)
			continue
		}
		m.watchers = append(m.watchers, w)
	}

	m.logger.Info("Monitoring %d of %d directories", len(m.watchers), len(dirs))
	return errors.Join(errs...)
}

// Stop stops and joins every watcher
func (m *Monitor) Stop() error {
	m.mu.Lock()
	watchers := m.watchers
	m.watchers = nil
	m.mu.Unlock()

	var errs []error
	for _, w := range watchers {
		if err := w.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(watchers) > 0 {
		m.logger.Info("Stopped monitoring %d directories", len(watchers))
	}
	return errors.Join(errs...)
}

// Dirs returns the directories currently being watched
func (m *Monitor) Dirs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	dirs := make([]string, len(m.watchers))
	for i, w := range m.watchers {
		dirs[i] = w.Dir()
	}
	return dirs
}

// Active reports whether any watcher is running
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers) > 0
}
