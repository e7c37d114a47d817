package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/dataguard/internal/classifier"
	"github.com/fenilsonani/dataguard/internal/config"
	"github.com/fenilsonani/dataguard/internal/logging"
	"github.com/fenilsonani/dataguard/internal/platform"
	"github.com/fenilsonani/dataguard/internal/progress"
	"github.com/fenilsonani/dataguard/internal/reporter"
	"github.com/fenilsonani/dataguard/internal/scanner"
	"github.com/fenilsonani/dataguard/internal/security"
	"github.com/fenilsonani/dataguard/internal/session"
	"github.com/fenilsonani/dataguard/internal/tree"
	"github.com/fenilsonani/dataguard/internal/ui"
	"github.com/fenilsonani/dataguard/internal/watcher"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	verbose    bool
	outputFmt  string
	outputFile string
	maxDepth   int
	sortKey    string
	noProgress bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dataguard",
	Short: "Classify directories for backup and follow their changes",
	Long: `DataGuard scans your data roots into a directory tree, classifies every
directory by how it should be backed up (excluded, normal, append-only,
frozen) and with which priority, and then monitors the roots for changes.

Classification is automatic but every directory can be overridden; overrides
are remembered across scans.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan [root...]",
	Short: "Scan the roots and print the classified tree",
	Long: `Runs one full scan of the configured roots (or the roots given as
arguments) and reports sizes, file counts, modes and priorities.

Press Ctrl+C to cancel; the partial result is still reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := reporter.ParseFormat(outputFmt)
		if err != nil {
			return err
		}
		sortBy, err := tree.ParseSortBy(sortKey)
		if err != nil {
			return err
		}

		env, err := setup(args, "warn")
		if err != nil {
			return err
		}
		defer env.close()

		ctl := env.session(nil)
		defer ctl.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		live := ui.NewLiveProgress()
		if noProgress || format == reporter.FormatJSON || format == reporter.FormatYAML {
			live.SetEnabled(false)
		}
		updates := env.progress.Subscribe()
		defer env.progress.Unsubscribe(updates)
		done := make(chan struct{})
		go live.Watch(updates, done)

		if _, err := ctl.RestartScan(); err != nil {
			close(done)
			return err
		}

		result, err := ctl.WaitScan(ctx)
		if errors.Is(err, context.Canceled) {
			ctl.CancelScan()
			result, err = ctl.LastResult()
		}
		close(done)
		live.Finish()
		if err != nil && !errors.Is(err, context.Canceled) && result == nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		if outputFile != "" {
			if err := reporter.SaveToFile(ctl.Forest(), result, outputFile, format, maxDepth); err != nil {
				return fmt.Errorf("failed to save report: %w", err)
			}
			fmt.Printf("Report saved to: %s\n", outputFile)
			return nil
		}

		rptr := reporter.New(os.Stdout, format, maxDepth, sortBy)
		if err := rptr.Report(ctl.Forest(), result); err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		return nil
	},
}

var browseCmd = &cobra.Command{
	Use:   "browse [root...]",
	Short: "Browse and classify the tree interactively",
	Long: `Opens the interactive browser. The first full scan starts immediately;
expand directories to drill down, set modes and priorities, and toggle change
monitoring.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(args, "")
		if err != nil {
			return err
		}
		defer env.close()

		ctl := env.session(nil)
		defer ctl.Close()

		return ui.RunInteractive(ctl, env.progress)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [root...]",
	Short: "Scan once, then print changes as they are dispatched",
	Long: `Runs a full scan and then monitors every root that is not excluded,
printing each dispatched change until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(args, "warn")
		if err != nil {
			return err
		}
		defer env.close()

		ctl := env.session(nil)
		defer ctl.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintln(os.Stderr, "Scanning...")
		if _, err := ctl.RestartScan(); err != nil {
			return err
		}
		result, err := ctl.WaitScan(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("scan failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Scanned %d directories in %s\n",
			result.DirsScanned, progress.FormatDuration(result.Duration))

		if err := ctl.BeginMonitoring(); err != nil {
			if ctl.State() != session.StateBackupStarted {
				return err
			}
			fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
		}
		fmt.Fprintln(os.Stderr, "Monitoring changes (Ctrl+C to stop)")

		for {
			events, err := ctl.NextEvents(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			for _, e := range events {
				path := e.Path()
				if e.Kind == watcher.KindRename || e.Kind == watcher.KindMove {
					path += " -> " + e.NewPath()
				}
				ui.PrintEventLine(os.Stdout, e.At, e.Kind.String(), path)
			}
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Scan command flags
	scanCmd.Flags().StringVarP(&outputFmt, "format", "f", "summary", "output format (summary, table, json, yaml)")
	scanCmd.Flags().StringVarP(&outputFile, "output", "o", "", "save report to file")
	scanCmd.Flags().IntVarP(&maxDepth, "depth", "d", 2, "levels below each root to report (-1 for all)")
	scanCmd.Flags().StringVarP(&sortKey, "sort", "s", "size", "child order (name, size, count)")
	scanCmd.Flags().BoolVar(&noProgress, "no-progress", false, "do not show live progress")

	// Add commands
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(configCmd)
}

// environment is what every scanning command needs
type environment struct {
	cfg       *config.Config
	logger    *logging.Logger
	roots     []string
	scanner   *scanner.Scanner
	progress  *progress.ProgressReporter
	overrides *config.OverrideStore
}

// setup loads the config, applies platform defaults and builds the scanner.
// Arguments replace the configured roots. logLevel is used when logging to
// stderr; an empty level disables stderr logging.
func setup(args []string, logLevel string) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	platformInfo, err := platform.GetInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get platform info: %w", err)
	}
	cfg.ApplyPlatformDefaults(platformInfo)
	if len(args) > 0 {
		cfg.Roots = args
	}

	roots, err := security.NewRootValidator().ValidateRoots(cfg.Roots)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, errors.New("no roots configured; pass directories or set roots in the config file")
	}

	settings, err := classifier.FromConfig(cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("invalid classifier settings: %w", err)
	}

	overrides, err := config.NewOverrideStore(cfg.Daemon.OverridesFile)
	if err != nil {
		return nil, err
	}

	logger := newCLILogger(cfg, logLevel)
	pr := progress.NewProgressReporter()
	scnr := scanner.New(scanner.OptionsFromConfig(cfg), settings, nil, logger)
	scnr.SetProgressReporter(pr)

	return &environment{
		cfg:       cfg,
		logger:    logger,
		roots:     roots,
		scanner:   scnr,
		progress:  pr,
		overrides: overrides,
	}, nil
}

// session creates a controller over the environment's roots
func (e *environment) session(sink watcher.Sink) *session.Controller {
	return session.New(session.Options{
		Roots:     e.roots,
		Scanner:   e.scanner,
		Watcher:   watcher.OptionsFromConfig(e.cfg.Watcher),
		Overrides: e.overrides,
		Sink:      sink,
		Logger:    e.logger,
	})
}

func (e *environment) close() {
	_ = e.logger.Close()
}

// newCLILogger logs to the configured log file when there is one, otherwise to
// stderr at level (or nowhere when level is empty)
func newCLILogger(cfg *config.Config, level string) *logging.Logger {
	debug := verbose || cfg.Verbose
	if cfg.Daemon.LogFile != "" {
		if debug {
			level = "debug"
		}
		return newFileLogger(cfg, level)
	}
	if level == "" {
		return logging.Discard()
	}
	if debug {
		level = "debug"
	}
	return logging.NewWriter(os.Stderr, level)
}

func newFileLogger(cfg *config.Config, level string) *logging.Logger {
	if level == "" {
		level = cfg.Daemon.LogLevel
	}
	return logging.New(logging.Options{
		File:       cfg.Daemon.LogFile,
		Level:      level,
		MaxSizeMB:  cfg.Daemon.LogMaxSizeMB,
		MaxBackups: cfg.Daemon.LogMaxBackups,
		MaxAgeDays: cfg.Daemon.LogMaxAgeDays,
		Compress:   true,
	})
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}

	cfgPath, err := config.GetConfigPath()
	if err != nil {
		return nil, err
	}

	return config.Load(cfgPath)
}

// confirm asks a yes/no question on stdin
func confirm(prompt string) bool {
	fmt.Print(prompt + " (y/N): ")
	var response string
	fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
