package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fenilsonani/dataguard/internal/config"
)

// ErrNotRunning is returned when no live daemon owns the PID file
var ErrNotRunning = errors.New("daemon is not running")

// PidFilePath returns the configured PID file, or the default under the
// config directory
func PidFilePath(cfg *config.Config) (string, error) {
	if cfg.Daemon.PidFile != "" {
		return cfg.Daemon.PidFile, nil
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dataguard.pid"), nil
}

// JournalPath returns the configured journal database, or the default under
// the config directory
func JournalPath(cfg *config.Config) (string, error) {
	if cfg.Daemon.JournalPath != "" {
		return cfg.Daemon.JournalPath, nil
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "journal.db"), nil
}

// ProcessRunning reads pidFile and reports whether that process is alive
func ProcessRunning(pidFile string) (int, bool) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, false
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil || pid <= 0 {
		return 0, false
	}

	// Check if process exists
	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}

	// Signal 0 probes for existence without delivering anything
	return pid, process.Signal(syscall.Signal(0)) == nil
}

// RequestRescan asks the daemon recorded in pidFile to re-scan by sending it
// SIGHUP. It returns the daemon's PID.
func RequestRescan(pidFile string) (int, error) {
	pid, running := ProcessRunning(pidFile)
	if !running {
		return 0, ErrNotRunning
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, err
	}
	if err := process.Signal(syscall.SIGHUP); err != nil {
		return pid, fmt.Errorf("failed to signal daemon: %w", err)
	}
	return pid, nil
}
