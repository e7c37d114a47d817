// Package daemon runs dataguard unattended: it scans the configured roots,
// monitors them for changes, records dispatched events in the journal and
// re-scans on a cron schedule.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fenilsonani/dataguard/internal/classifier"
	"github.com/fenilsonani/dataguard/internal/config"
	"github.com/fenilsonani/dataguard/internal/journal"
	"github.com/fenilsonani/dataguard/internal/logging"
	"github.com/fenilsonani/dataguard/internal/scanner"
	"github.com/fenilsonani/dataguard/internal/security"
	"github.com/fenilsonani/dataguard/internal/session"
	"github.com/fenilsonani/dataguard/internal/watcher"
)

// pruneInterval is how often acknowledged journal entries are pruned
const pruneInterval = time.Hour

// ErrBusy is returned when a skip-if-busy re-scan finds another one running
var ErrBusy = errors.New("a re-scan is already running")

// Daemon represents the dataguard service
type Daemon struct {
	config    *config.Config
	scheduler *Scheduler
	logger    *logging.Logger
	journal   *journal.Journal
	session   *session.Controller
	pidFile   string

	rescanMu sync.Mutex

	running     bool
	shutdownCtx context.Context
	cancelFunc  context.CancelFunc
	mu          sync.RWMutex
}

// New creates a new daemon instance. The roots must already have platform
// defaults applied.
func New(cfg *config.Config, logger *logging.Logger) (*Daemon, error) {
	logger = logging.OrDiscard(logger)

	roots, err := security.NewRootValidator().ValidateRoots(cfg.Roots)
	if err != nil {
		return nil, fmt.Errorf("invalid roots: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("no roots configured")
	}

	settings, err := classifier.FromConfig(cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("invalid classifier settings: %w", err)
	}

	journalPath, err := JournalPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	pidFile, err := PidFilePath(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	overrides, err := config.NewOverrideStore(cfg.Daemon.OverridesFile)
	if err != nil {
		return nil, err
	}

	jrnl, err := journal.Open(journalPath)
	if err != nil {
		return nil, err
	}

	scnr := scanner.New(scanner.OptionsFromConfig(cfg), settings, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		config:  cfg,
		logger:  logger,
		journal: jrnl,
		session: session.New(session.Options{
			Roots:     roots,
			Scanner:   scnr,
			Watcher:   watcher.OptionsFromConfig(cfg.Watcher),
			Overrides: overrides,
			Sink:      jrnl,
			Logger:    logger,
		}),
		pidFile:     pidFile,
		shutdownCtx: ctx,
		cancelFunc:  cancel,
	}
	d.scheduler = NewScheduler(d, cfg.Daemon.RescanSchedule)
	return d, nil
}

// Journal returns the event journal the daemon writes to
func (d *Daemon) Journal() *journal.Journal {
	return d.journal
}

// Session returns the controller owning the tree
func (d *Daemon) Session() *session.Controller {
	return d.session
}

// Start runs the daemon until Stop is called or a termination signal arrives
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	d.logger.Info("Starting dataguard daemon")

	// Check lock file
	if err := d.acquireLock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer d.releaseLock()

	// Write PID file
	if err := d.writePidFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer d.removePidFile()

	stopSignals := d.setupSignalHandlers()
	defer stopSignals()

	if err := d.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer d.scheduler.Stop()

	d.logger.Info("Daemon started successfully")

	g, ctx := errgroup.WithContext(d.shutdownCtx)
	g.Go(func() error {
		if err := d.Rescan(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("Initial scan failed: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		d.pruneLoop(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	err := g.Wait()

	d.logger.Info("Daemon shutting down")
	if cerr := d.session.Close(); cerr != nil {
		d.logger.Warn("Stopping monitors: %v", cerr)
	}
	if cerr := d.journal.Close(); cerr != nil {
		d.logger.Warn("Closing journal: %v", cerr)
	}
	return err
}

// Stop stops the daemon
func (d *Daemon) Stop() {
	if d.cancelFunc != nil {
		d.cancelFunc()
	}
}

// IsRunning returns whether the daemon is running
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Rescan stops monitoring, runs a full scan and resumes monitoring on the
// fresh tree. Concurrent calls run one after another.
func (d *Daemon) Rescan(ctx context.Context) error {
	d.rescanMu.Lock()
	defer d.rescanMu.Unlock()
	return d.rescanLocked(ctx)
}

// RunRescanJob executes a scheduled re-scan
func (d *Daemon) RunRescanJob(ctx context.Context, job *RescanJob) error {
	if job.SkipIfBusy {
		if !d.rescanMu.TryLock() {
			d.logger.Info("Skipping job %s: %v", job.Name, ErrBusy)
			return ErrBusy
		}
	} else {
		d.rescanMu.Lock()
	}
	defer d.rescanMu.Unlock()

	d.logger.Info("Running rescan job: %s", job.Name)
	return d.rescanLocked(ctx)
}

func (d *Daemon) rescanLocked(ctx context.Context) error {
	startTime := time.Now()

	if err := d.session.StopMonitoring(); err != nil {
		d.logger.Warn("Stopping monitors: %v", err)
	}
	if _, err := d.session.RestartScan(); err != nil {
		return fmt.Errorf("restart scan: %w", err)
	}

	res, err := d.session.WaitScan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	d.logger.Info("Scan completed in %v: %d dirs, %d files, %d bytes, %d errors",
		time.Since(startTime).Round(time.Millisecond), res.DirsScanned, res.FilesFound, res.TotalSize, res.ErrorCount)

	if err := d.session.BeginMonitoring(); err != nil {
		if d.session.State() != session.StateBackupStarted {
			return fmt.Errorf("begin monitoring: %w", err)
		}
		d.logger.Warn("Some roots are not monitored: %v", err)
	}
	return nil
}

// pruneLoop periodically drops acknowledged journal entries past retention
func (d *Daemon) pruneLoop(ctx context.Context) {
	keep := time.Duration(d.config.Daemon.JournalKeepDays) * 24 * time.Hour
	if keep <= 0 {
		return
	}

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.journal.Prune(ctx, time.Now().Add(-keep))
			if err != nil {
				d.logger.Warn("Pruning journal: %v", err)
				continue
			}
			if n > 0 {
				d.logger.Debug("Pruned %d acknowledged events", n)
			}
		}
	}
}

// setupSignalHandlers sets up signal handlers for graceful shutdown. SIGHUP
// triggers an immediate re-scan.
func (d *Daemon) setupSignalHandlers() func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigChan:
				switch sig {
				case syscall.SIGINT, syscall.SIGTERM:
					d.logger.Info("Received shutdown signal: %v", sig)
					d.Stop()
				case syscall.SIGHUP:
					d.logger.Info("Received rescan signal")
					go func() {
						if err := d.Rescan(d.shutdownCtx); err != nil && d.shutdownCtx.Err() == nil {
							d.logger.Error("Rescan failed: %v", err)
						}
					}()
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

// acquireLock acquires the lock file
func (d *Daemon) acquireLock() error {
	lockFile := d.pidFile + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockFile), 0755); err != nil {
		return err
	}

	file, err := os.OpenFile(lockFile, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("daemon already running (lock file exists)")
		}
		return err
	}

	pid := os.Getpid()
	_, err = fmt.Fprintf(file, "%d\n", pid)
	file.Close()
	return err
}

// releaseLock releases the lock file
func (d *Daemon) releaseLock() error {
	return os.Remove(d.pidFile + ".lock")
}

// writePidFile writes the PID file
func (d *Daemon) writePidFile() error {
	pid := os.Getpid()
	return os.WriteFile(d.pidFile, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

// removePidFile removes the PID file
func (d *Daemon) removePidFile() error {
	return os.Remove(d.pidFile)
}

// PidFile returns the path of the daemon's PID file
func (d *Daemon) PidFile() string {
	return d.pidFile
}
