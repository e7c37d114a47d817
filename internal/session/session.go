// Package session ties the tree, the scanners and the change monitor together
// behind the operations a front end needs: restart or cancel the full scan,
// expand nodes (triggering lazy scans), assign overrides, and start or stop
// monitoring with a drainable event stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fenilsonani/dataguard/internal/config"
	"github.com/fenilsonani/dataguard/internal/logging"
	"github.com/fenilsonani/dataguard/internal/scanner"
	"github.com/fenilsonani/dataguard/internal/tree"
	"github.com/fenilsonani/dataguard/internal/watcher"
)

// State is the coarse lifecycle of a session
type State int

const (
	StateIdle State = iota
	StateScanStarted
	StateScanCancelled
	StateScanCompleted
	StateBackupStarted
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanStarted:
		return "scanning"
	case StateScanCancelled:
		return "cancelled"
	case StateScanCompleted:
		return "completed"
	case StateBackupStarted:
		return "monitoring"
	default:
		return "unknown"
	}
}

var (
	// ErrMonitoring is returned by scan operations while changes are being monitored
	ErrMonitoring = errors.New("monitoring is active; stop it first")
	// ErrScanInProgress is returned when monitoring is requested mid-scan
	ErrScanInProgress = errors.New("a full scan is in progress")
	// ErrCustomSink is returned by NextEvents when events go to a caller-supplied sink
	ErrCustomSink = errors.New("events are delivered to a custom sink")
)

// Service is the set of operations front ends drive. Controller implements it.
type Service interface {
	Forest() *tree.Forest
	State() State
	RestartScan() (State, error)
	CancelScan() State
	WaitScan(ctx context.Context) (*scanner.Result, error)
	Expand(n *tree.Node) bool
	Collapse(n *tree.Node)
	SetMode(n *tree.Node, m tree.Mode) error
	SetPriority(n *tree.Node, p tree.Priority, cascade bool) error
	ApplyMode(nodes []*tree.Node, m tree.Mode) error
	BeginMonitoring() error
	StopMonitoring() error
	NextEvents(ctx context.Context) ([]watcher.Event, error)
}

// Options configures a Controller
type Options struct {
	Roots     []string
	Scanner   *scanner.Scanner
	Watcher   watcher.Options
	Overrides *config.OverrideStore // nil disables persistence
	Sink      watcher.Sink          // nil buffers events for NextEvents
	Logger    *logging.Logger
}

// Controller owns one forest and the goroutines working on it
type Controller struct {
	roots     []string
	forest    *tree.Forest
	scanner   *scanner.Scanner
	overrides *config.OverrideStore
	queue     *watcher.Queue
	monitor   *watcher.Monitor
	wopts     watcher.Options
	sink      watcher.Sink
	events    *watcher.ChannelSink
	logger    *logging.Logger

	mu         sync.Mutex
	state      State
	scan       *scanRun
	lastResult *scanner.Result
	lastErr    error

	lazyCtx    context.Context
	lazyCancel context.CancelFunc
	lazy       sync.WaitGroup

	dispatchCancel context.CancelFunc
	dispatchDone   chan struct{}
}

// scanRun tracks one full-scan goroutine
type scanRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a controller. Call RestartScan to populate the forest.
func New(opts Options) *Controller {
	c := &Controller{
		roots:     opts.Roots,
		forest:    tree.NewForest(),
		scanner:   opts.Scanner,
		overrides: opts.Overrides,
		queue:     watcher.NewQueue(),
		wopts:     opts.Watcher,
		sink:      opts.Sink,
		logger:    logging.OrDiscard(opts.Logger),
	}
	if c.sink == nil {
		c.events = watcher.NewChannelSink(max(opts.Watcher.EventBuffer, 1))
		c.sink = c.events
	}
	c.wopts.Ignore = c.ignored
	c.monitor = watcher.NewMonitor(c.queue, c.wopts, c.logger)
	c.lazyCtx, c.lazyCancel = context.WithCancel(context.Background())
	return c
}

// Forest returns the shared tree
func (c *Controller) Forest() *tree.Forest {
	return c.forest
}

// Queue returns the pending change-event queue
func (c *Controller) Queue() *watcher.Queue {
	return c.queue
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastResult returns the outcome of the most recent full scan
func (c *Controller) LastResult() (*scanner.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult, c.lastErr
}

// =============================================================================
// Full scan
// =============================================================================

// RestartScan stops any running scan (lazy ones included) and starts a fresh
// full scan of every root in the background
func (c *Controller) RestartScan() (State, error) {
	c.mu.Lock()
	if c.state == StateBackupStarted {
		c.mu.Unlock()
		return c.State(), ErrMonitoring
	}
	prev := c.scan
	c.mu.Unlock()

	c.stopScan(prev)
	c.stopLazy()

	ctx, cancel := context.WithCancel(context.Background())
	run := &scanRun{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.scan = run
	c.state = StateScanStarted
	c.lastResult, c.lastErr = nil, nil
	c.mu.Unlock()

	go c.runScan(ctx, run)
	c.logger.Info("Full scan of %d roots restarted", len(c.roots))
	return StateScanStarted, nil
}

func (c *Controller) runScan(ctx context.Context, run *scanRun) {
	defer close(run.done)

	res, err := c.scanner.Scan(ctx, c.forest, c.roots)
	if err == nil {
		c.applyOverrides()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scan != run {
		return
	}
	c.lastResult, c.lastErr = res, err
	if err == nil {
		c.state = StateScanCompleted
	}
}

// CancelScan abandons the running scan. Every root is replaced by an
// excluded, not-traversed node listed one level deep, so the user can still
// expand and lazily scan parts of it.
func (c *Controller) CancelScan() State {
	c.mu.Lock()
	if c.state == StateBackupStarted {
		c.mu.Unlock()
		return StateBackupStarted
	}
	run := c.scan
	c.mu.Unlock()

	c.stopScan(run)
	c.stopLazy()

	for _, old := range c.forest.Roots() {
		fresh := tree.NewRoot(old.Path())
		fresh.SetModeAuto(tree.ModeExcluded)
		fresh.SetNotTraversed(true)
		if err := c.scanner.ListShallow(fresh); err != nil {
			c.logger.Warn("%v", err)
		}
		c.forest.Replace(old, fresh)
	}

	c.mu.Lock()
	c.state = StateScanCancelled
	c.lastErr = context.Canceled
	c.mu.Unlock()

	c.logger.Info("Full scan cancelled; roots marked excluded")
	return StateScanCancelled
}

// stopScan cancels run and waits for its goroutine
func (c *Controller) stopScan(run *scanRun) {
	if run == nil {
		return
	}
	run.cancel()
	<-run.done
}

// WaitScan blocks until the current full scan finishes or ctx ends
func (c *Controller) WaitScan(ctx context.Context) (*scanner.Result, error) {
	c.mu.Lock()
	run := c.scan
	c.mu.Unlock()

	if run != nil {
		select {
		case <-run.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.LastResult()
}

// applyOverrides re-applies the persisted manual overrides to a fresh tree
func (c *Controller) applyOverrides() {
	if c.overrides == nil {
		return
	}
	saved, err := c.overrides.List()
	if err != nil {
		c.logger.Warn("Failed to load overrides: %v", err)
		return
	}

	for _, o := range saved {
		n := c.forest.Lookup(o.Path)
		if n == nil {
			c.logger.Debug("Override for %s has no matching directory", o.Path)
			continue
		}
		if o.Mode != "" {
			m, err := tree.ParseMode(o.Mode)
			if err == nil {
				err = tree.SetModeManual(n, m)
			}
			if err != nil {
				c.logger.Warn("Ignoring mode override for %s: %v", o.Path, err)
			}
		}
		if o.Priority != "" {
			p, err := tree.ParsePriority(o.Priority)
			if err == nil {
				err = tree.SetPriorityManual(n, p)
			}
			if err != nil {
				c.logger.Warn("Ignoring priority override for %s: %v", o.Path, err)
				continue
			}
			if o.Cascade {
				tree.CascadePriority(n, p)
			}
		}
	}
	c.logger.Debug("Applied %d saved overrides", len(saved))
}

// =============================================================================
// Expand / collapse
// =============================================================================

// Expand marks n expanded and, if n has not been traversed yet, starts a lazy
// scan of it in the background. It reports whether a lazy scan was started.
func (c *Controller) Expand(n *tree.Node) bool {
	n.SetExpanded(true)
	if !n.NotTraversed() {
		return false
	}

	c.mu.Lock()
	ctx := c.lazyCtx
	c.mu.Unlock()

	c.lazy.Add(1)
	go func() {
		defer c.lazy.Done()
		res, err := c.scanner.ScanNode(ctx, n)
		switch {
		case errors.Is(err, scanner.ErrAlreadyScanned), errors.Is(err, context.Canceled):
		case err != nil:
			c.logger.Warn("Lazy scan of %s failed: %v", n.Path(), err)
		default:
			c.logger.Debug("Lazy scan of %s: %d dirs, %d skipped", n.Path(), res.DirsScanned, res.ErrorCount)
		}
	}()
	return true
}

// Collapse marks n collapsed
func (c *Controller) Collapse(n *tree.Node) {
	n.SetExpanded(false)
}

// WaitLazy blocks until every lazy scan has finished
func (c *Controller) WaitLazy() {
	c.lazy.Wait()
}

// stopLazy cancels in-flight lazy scans, waits for them and arms a fresh context
func (c *Controller) stopLazy() {
	c.mu.Lock()
	cancel := c.lazyCancel
	c.mu.Unlock()

	cancel()
	c.lazy.Wait()

	c.mu.Lock()
	c.lazyCtx, c.lazyCancel = context.WithCancel(context.Background())
	c.mu.Unlock()
}

// =============================================================================
// Overrides
// =============================================================================

// SetMode sets or clears (tree.ModeAuto) the manual mode of n and persists it
func (c *Controller) SetMode(n *tree.Node, m tree.Mode) error {
	if err := tree.SetModeManual(n, m); err != nil {
		return fmt.Errorf("failed to set mode of %s: %w", n.Path(), err)
	}
	return c.persist(n, false)
}

// SetPriority sets or clears the manual priority of n. With cascade the
// change is pushed down to descendants.
func (c *Controller) SetPriority(n *tree.Node, p tree.Priority, cascade bool) error {
	if err := tree.SetPriorityManual(n, p); err != nil {
		return fmt.Errorf("failed to set priority of %s: %w", n.Path(), err)
	}
	if cascade {
		tree.CascadePriority(n, p)
	}
	return c.persist(n, cascade)
}

// ApplyMode sets the same manual mode on each node, typically the conflicts
// the user chose from tree.ModeConflicts
func (c *Controller) ApplyMode(nodes []*tree.Node, m tree.Mode) error {
	errs := []error{tree.ApplyMode(nodes, m)}
	for _, n := range nodes {
		errs = append(errs, c.persist(n, false))
	}
	return errors.Join(errs...)
}

func (c *Controller) persist(n *tree.Node, cascade bool) error {
	if c.overrides == nil {
		return nil
	}
	o := config.Override{Path: n.Path(), Cascade: cascade}
	if m := n.ModeManual(); m != tree.ModeAuto {
		o.Mode = m.String()
	}
	if p := n.PriorityManual(); p != tree.PriorityAuto {
		o.Priority = p.String()
	}
	if err := c.overrides.Set(o); err != nil {
		return fmt.Errorf("failed to save override for %s: %w", n.Path(), err)
	}
	return nil
}

// =============================================================================
// Monitoring
// =============================================================================

// BeginMonitoring watches every root that is not excluded and starts the
// dispatcher. Roots that cannot be watched are reported but do not stop the
// others.
func (c *Controller) BeginMonitoring() error {
	c.mu.Lock()
	switch c.state {
	case StateScanStarted:
		c.mu.Unlock()
		return ErrScanInProgress
	case StateBackupStarted:
		c.mu.Unlock()
		return ErrMonitoring
	}
	c.mu.Unlock()

	var dirs []string
	for _, root := range c.forest.Roots() {
		if root.ModeNoInherit() == tree.ModeExcluded {
			c.logger.Debug("Not monitoring excluded root %s", root.Path())
			continue
		}
		dirs = append(dirs, root.Path())
	}

	setupErr := c.monitor.Begin(dirs)
	if !c.monitor.Active() {
		return fmt.Errorf("no directory could be monitored: %w", setupErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d := watcher.NewDispatcher(c.queue, c.sink, c.wopts.DispatchInterval, c.wopts.Debounce, c.logger)
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	c.mu.Lock()
	c.state = StateBackupStarted
	c.dispatchCancel, c.dispatchDone = cancel, done
	c.mu.Unlock()
	return setupErr
}

// StopMonitoring stops every watcher and the dispatcher. Events still
// debouncing stay queued.
func (c *Controller) StopMonitoring() error {
	err := c.monitor.Stop()

	c.mu.Lock()
	cancel, done := c.dispatchCancel, c.dispatchDone
	c.dispatchCancel, c.dispatchDone = nil, nil
	if c.state == StateBackupStarted {
		c.state = StateScanCompleted
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return err
}

// NextEvents returns the next dispatched batch, waiting until one is available
func (c *Controller) NextEvents(ctx context.Context) ([]watcher.Event, error) {
	if c.events == nil {
		return nil, ErrCustomSink
	}
	return c.events.Next(ctx)
}

// ignored drops changes under excluded directories
func (c *Controller) ignored(dir string) bool {
	n := c.forest.Lookup(dir)
	return n != nil && n.ModeNoInherit() == tree.ModeExcluded
}

// Close stops monitoring and every scan
func (c *Controller) Close() error {
	err := c.StopMonitoring()

	c.mu.Lock()
	run := c.scan
	c.mu.Unlock()
	c.stopScan(run)

	c.mu.Lock()
	cancel := c.lazyCancel
	c.mu.Unlock()
	cancel()
	c.lazy.Wait()
	return err
}
