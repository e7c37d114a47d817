package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fenilsonani/dataguard/internal/config"
)

// RescanJob represents a scheduled full re-scan
type RescanJob struct {
	Name       string
	Schedule   string
	SkipIfBusy bool
	NextRun    time.Time
	LastRun    time.Time
}

// Scheduler manages scheduled re-scan jobs
type Scheduler struct {
	daemon    *Daemon
	cron      *cron.Cron
	jobs      map[string]cron.EntryID
	jobsMu    sync.RWMutex
	running   bool
	schedules []config.RescanSchedule
}

// Standard five-field cron plus @daily style descriptors
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NextRun returns when a cron expression fires next after t
func NextRun(spec string, t time.Time) (time.Time, error) {
	sched, err := scheduleParser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return sched.Next(t), nil
}

// NewScheduler creates a new scheduler
func NewScheduler(daemon *Daemon, schedules []config.RescanSchedule) *Scheduler {
	c := cron.New(cron.WithParser(scheduleParser), cron.WithChain(
		cron.Recover(cron.PrintfLogger(daemon.logger)),
	))

	return &Scheduler{
		daemon:    daemon,
		cron:      c,
		jobs:      make(map[string]cron.EntryID),
		schedules: schedules,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	// Add all configured schedules
	for _, schedule := range s.schedules {
		if err := s.addJobInternal(schedule); err != nil {
			return fmt.Errorf("failed to add schedule %s: %w", schedule.Name, err)
		}
	}

	s.cron.Start()
	s.running = true

	s.daemon.logger.Info("Scheduler started with %d jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler, waiting a bounded time for running jobs
func (s *Scheduler) Stop() {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		// Clean shutdown
	case <-time.After(10 * time.Second):
		s.daemon.logger.Warn("Scheduler stop timed out")
	}

	s.running = false
	s.daemon.logger.Info("Scheduler stopped")
}

// addJobInternal adds a job (internal, no lock)
func (s *Scheduler) addJobInternal(schedule config.RescanSchedule) error {
	if _, exists := s.jobs[schedule.Name]; exists {
		return fmt.Errorf("job %s already exists", schedule.Name)
	}

	job := newRescanJob(schedule)
	jobFunc := func() {
		s.daemon.logger.Info("Executing scheduled job: %s", job.Name)
		job.LastRun = time.Now()

		if err := s.daemon.RunRescanJob(s.daemon.shutdownCtx, job); err != nil && err != ErrBusy {
			s.daemon.logger.Error("Job %s failed: %v", job.Name, err)
		}
	}

	id, err := s.cron.AddFunc(schedule.Schedule, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.jobs[schedule.Name] = id

	entry := s.cron.Entry(id)
	job.NextRun = entry.Next

	s.daemon.logger.Info("Added job: %s, next run: %v", schedule.Name, job.NextRun)
	return nil
}

func newRescanJob(schedule config.RescanSchedule) *RescanJob {
	return &RescanJob{
		Name:       schedule.Name,
		Schedule:   schedule.Schedule,
		SkipIfBusy: schedule.SkipIfBusy,
	}
}
