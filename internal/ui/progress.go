package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/fenilsonani/dataguard/internal/progress"
	uiutils "github.com/fenilsonani/dataguard/internal/ui/utils"
	"github.com/fenilsonani/dataguard/pkg/utils"
)

// spinnerFrames animate the current-path line
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// LiveProgress redraws a two-line scan status in place
type LiveProgress struct {
	mu         sync.Mutex
	out        io.Writer
	last       *progress.ScanProgress
	lastUpdate time.Time
	termWidth  int
	enabled    bool
	started    bool
	now        func() time.Time
}

// NewLiveProgress creates a progress display on stderr. It is disabled when
// stderr is not a terminal.
func NewLiveProgress() *LiveProgress {
	fd := int(os.Stderr.Fd())
	width := 80
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		width = w
	}
	return &LiveProgress{
		out:       os.Stderr,
		termWidth: width,
		enabled:   term.IsTerminal(fd),
		now:       time.Now,
	}
}

// Watch redraws from updates until the channel closes or done is closed
func (lp *LiveProgress) Watch(updates <-chan *progress.ScanProgress, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case p, ok := <-updates:
			if !ok {
				return
			}
			lp.Update(p)
		}
	}
}

// Update records p and redraws, at most ten times a second
func (lp *LiveProgress) Update(p *progress.ScanProgress) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	lp.last = p
	if !lp.enabled {
		return
	}
	now := lp.now()
	if now.Sub(lp.lastUpdate) < 100*time.Millisecond && p.Phase == progress.PhaseScanning {
		return
	}
	lp.lastUpdate = now
	lp.render(now)
}

// render draws the status lines, moving back up over the previous draw
func (lp *LiveProgress) render(now time.Time) {
	if lp.started {
		fmt.Fprint(lp.out, "\033[2A")
	}
	lp.started = true

	width := lp.termWidth - 2
	p := lp.last

	line1 := fmt.Sprintf("Root %d/%d | %d dirs | %d files | %s | %s",
		min(p.RootsDone+1, max(p.RootsTotal, 1)), p.RootsTotal,
		p.DirsScanned, p.FilesFound, utils.FormatBytes(p.TotalSize),
		progress.FormatDuration(now.Sub(p.StartTime)))
	fmt.Fprintf(lp.out, "\033[K%s\n", uiutils.TruncateString(line1, width))

	frame := spinnerFrames[int(now.UnixMilli()/100)%len(spinnerFrames)]
	line2 := frame + " " + uiutils.TruncatePath(p.CurrentPath, max(width-2, 10))
	fmt.Fprintf(lp.out, "\033[K%s\n", line2)
}

// Finish clears the status lines
func (lp *LiveProgress) Finish() {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if !lp.enabled || !lp.started {
		return
	}
	fmt.Fprint(lp.out, "\033[2A\033[K\n\033[K\033[1A")
	lp.started = false
}

// Last returns the most recent update, or nil
func (lp *LiveProgress) Last() *progress.ScanProgress {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.last
}

// SetEnabled enables or disables live progress
func (lp *LiveProgress) SetEnabled(enabled bool) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.enabled = enabled
}

// PrintEventLine writes one change event in the format used by `watch`
func PrintEventLine(w io.Writer, at time.Time, kind, path string) {
	fmt.Fprintf(w, "%s %-6s %s\n", at.Format("15:04:05.000"), kind, strings.TrimSpace(path))
}
