package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fenilsonani/dataguard/internal/daemon"
	"github.com/fenilsonani/dataguard/internal/platform"
)

var testConfig bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run or inspect the background monitor",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the daemon in the foreground",
	Long: `Scans the roots, then monitors them and journals every dispatched change.
Scheduled re-scans run according to rescan_schedules. SIGHUP forces a re-scan;
SIGINT or SIGTERM stops the daemon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		platformInfo, err := platform.GetInfo()
		if err != nil {
			return fmt.Errorf("failed to get platform info: %w", err)
		}
		cfg.ApplyPlatformDefaults(platformInfo)

		for _, sched := range cfg.Daemon.RescanSchedule {
			if _, err := daemon.NextRun(sched.Schedule, time.Now()); err != nil {
				return fmt.Errorf("schedule %s: %w", sched.Name, err)
			}
		}

		if testConfig {
			fmt.Println("Configuration is valid")
			fmt.Printf("Roots: %d\n", len(cfg.Roots))
			for _, root := range cfg.Roots {
				fmt.Printf("  - %s\n", root)
			}
			fmt.Printf("Schedules: %d\n", len(cfg.Daemon.RescanSchedule))
			for _, sched := range cfg.Daemon.RescanSchedule {
				fmt.Printf("  - %s: %s\n", sched.Name, sched.Schedule)
			}
			return nil
		}

		pidFile, err := daemon.PidFilePath(cfg)
		if err != nil {
			return err
		}
		if pid, running := daemon.ProcessRunning(pidFile); running {
			return fmt.Errorf("daemon is already running (PID %d)", pid)
		}

		logger := newCLILogger(cfg, cfg.Daemon.LogLevel)
		defer logger.Close()

		d, err := daemon.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create daemon: %w", err)
		}

		fmt.Println("Starting DataGuard daemon...")
		return d.Start()
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the daemon runs and when it re-scans next",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		pidFile, err := daemon.PidFilePath(cfg)
		if err != nil {
			return err
		}
		if pid, running := daemon.ProcessRunning(pidFile); running {
			fmt.Printf("✅ Daemon running (PID %d)\n", pid)
		} else {
			fmt.Println("⏹  Daemon not running")
		}
		fmt.Printf("PID file: %s\n", pidFile)

		if len(cfg.Daemon.RescanSchedule) == 0 {
			fmt.Println("\nNo re-scan schedules configured")
			return nil
		}

		now := time.Now()
		fmt.Println("\nRe-scan schedules:")
		for _, sched := range cfg.Daemon.RescanSchedule {
			next, err := daemon.NextRun(sched.Schedule, now)
			if err != nil {
				fmt.Printf("  %-12s %-16s ⚠️  %v\n", sched.Name, sched.Schedule, err)
				continue
			}
			fmt.Printf("  %-12s %-16s next %s (%s)\n",
				sched.Name, sched.Schedule, next.Format("2006-01-02 15:04"), humanize.Time(next))
		}
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the running daemon to shut down",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		pidFile, err := daemon.PidFilePath(cfg)
		if err != nil {
			return err
		}

		pid, running := daemon.ProcessRunning(pidFile)
		if !running {
			return daemon.ErrNotRunning
		}
		process, err := os.FindProcess(pid)
		if err != nil {
			return err
		}
		if err := process.Signal(os.Interrupt); err != nil {
			return fmt.Errorf("failed to signal daemon: %w", err)
		}
		fmt.Printf("Sent interrupt to PID %d\n", pid)
		return nil
	},
}

var daemonRescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Ask the running daemon to re-scan now",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		pidFile, err := daemon.PidFilePath(cfg)
		if err != nil {
			return err
		}

		pid, err := daemon.RequestRescan(pidFile)
		if err != nil {
			return err
		}
		fmt.Printf("Requested re-scan from PID %d\n", pid)
		return nil
	},
}

func init() {
	daemonStartCmd.Flags().BoolVar(&testConfig, "test-config", false, "validate the configuration and exit")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonRescanCmd)
}
