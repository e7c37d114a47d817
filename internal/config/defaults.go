package config

import "time"

// GetDefault returns the default configuration. Roots and scanner lists are
// left empty and filled from the platform by ApplyPlatformDefaults.
func GetDefault() *Config {
	return &Config{
		Scanner: ScannerConfig{
			MaxErrors: 100,
		},
		Classifier: ClassifierConfig{
			MaxAutoDepth:          3,
			VCSSuffix:             ".git",
			VCSExcludeSize:        "100MB",
			FrozenAfterDays:       182, // ~6 months
			HotWithinDays:         7,
			FrozenLowPrioritySize: "10MB",
			HotSizeCeiling:        "1GB",
			AppendOnlyMarkers: []string{
				"photo",
				"backup",
			},
		},
		Watcher: WatcherConfig{
			Debounce:         500 * time.Millisecond,
			DispatchInterval: 100 * time.Millisecond,
			RetryDelay:       time.Second,
			StallTimeout:     2 * time.Second,
			BatchWindow:      20 * time.Millisecond,
			EventBuffer:      1024,
		},
		Daemon: DaemonConfig{
			LogLevel:        "info",
			LogMaxSizeMB:    10,
			LogMaxBackups:   3,
			LogMaxAgeDays:   28,
			JournalKeepDays: 7,
			RescanSchedule: []RescanSchedule{
				{Name: "nightly", Schedule: "0 3 * * *", SkipIfBusy: true},
			},
		},
		Verbose: false,
	}
}

// GetExampleConfig returns an example configuration with comments
func GetExampleConfig() string {
	return `# dataguard configuration
# Directories to snapshot. Empty means the platform default (home directory,
# plus the system drive on Windows).
roots: []

# Root whose cache-like subdirectories are excluded after every full scan
profile_root: ""

scanner:
  # Names skipped when they sit directly under a root
  always_excluded: []
  # Hidden directories that are still walked
  traverse_hidden: []
  # System-marked files that are still counted
  system_file_allow: []
  # Paths relative to profile_root forced to excluded after a scan
  profile_cache_dirs: []
  max_errors: 100

classifier:
  max_auto_depth: 3
  vcs_suffix: .git
  vcs_exclude_size: 100MB
  frozen_after_days: 182
  hot_within_days: 7
  frozen_low_priority_size: 10MB
  hot_size_ceiling: 1GB
  append_only_markers:
    - photo
    - backup

watcher:
  debounce: 500ms
  dispatch_interval: 100ms
  retry_delay: 1s
  stall_timeout: 2s
  batch_window: 20ms
  event_buffer: 1024

daemon:
  pid_file: ""
  log_file: ""
  log_level: info
  log_max_size_mb: 10
  log_max_backups: 3
  log_max_age_days: 28
  journal_path: ""
  # Acknowledged change events older than this are pruned (0 keeps them)
  journal_keep_days: 7
  overrides_file: ""
  rescan_schedules:
    - name: nightly
      schedule: "0 3 * * *"
      skip_if_busy: true
`
}
