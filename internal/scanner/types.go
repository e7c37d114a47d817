package scanner

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fenilsonani/dataguard/internal/tree"
)

// Result summarises one full or lazy scan
type Result struct {
	Roots       []*tree.Node
	StartTime   time.Time
	Duration    time.Duration
	DirsScanned int64
	FilesFound  int64
	TotalSize   int64
	Skipped     int64 // entries filtered out by the hidden/system/reparse rules
	ErrorCount  int
	Errors      []*EnumError // at most Options.MaxErrors
	Cancelled   bool
}

// run carries the counters and error list of one scan pass
type run struct {
	now       time.Time
	maxErrors int

	// owned by the goroutine driving the scan
	root       string
	rootsDone  int
	rootsTotal int

	dirs    atomic.Int64
	files   atomic.Int64
	bytes   atomic.Int64
	skipped atomic.Int64

	mu         sync.Mutex
	errors     []*EnumError
	errorCount int
}

func newRun(now time.Time, maxErrors int) *run {
	return &run{now: now, maxErrors: maxErrors}
}

func (r *run) addError(err *EnumError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorCount++
	if r.maxErrors <= 0 || len(r.errors) < r.maxErrors {
		r.errors = append(r.errors, err)
	}
}

func (r *run) result(roots []*tree.Node, cancelled bool) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Result{
		Roots:       roots,
		StartTime:   r.now,
		Duration:    time.Since(r.now),
		DirsScanned: r.dirs.Load(),
		FilesFound:  r.files.Load(),
		TotalSize:   r.bytes.Load(),
		Skipped:     r.skipped.Load(),
		ErrorCount:  r.errorCount,
		Errors:      append([]*EnumError(nil), r.errors...),
		Cancelled:   cancelled,
	}
}
