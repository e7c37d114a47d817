package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fenilsonani/dataguard/internal/platform"
	"github.com/fenilsonani/dataguard/pkg/utils"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Roots       []string         `yaml:"roots"`
	ProfileRoot string           `yaml:"profile_root"`
	Scanner     ScannerConfig    `yaml:"scanner"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	Watcher     WatcherConfig    `yaml:"watcher"`
	Daemon      DaemonConfig     `yaml:"daemon"`
	Verbose     bool             `yaml:"verbose"`
}

// ScannerConfig controls which directory entries the scanners walk. Empty
// lists are filled from the platform defaults.
type ScannerConfig struct {
	AlwaysExcluded   []string `yaml:"always_excluded"`
	TraverseHidden   []string `yaml:"traverse_hidden"`
	SystemFileAllow  []string `yaml:"system_file_allow"`
	ProfileCacheDirs []string `yaml:"profile_cache_dirs"`
	MaxErrors        int      `yaml:"max_errors"` // errors kept per scan result
}

// ClassifierConfig holds the automatic mode/priority heuristics
type ClassifierConfig struct {
	MaxAutoDepth          int      `yaml:"max_auto_depth"`
	VCSSuffix             string   `yaml:"vcs_suffix"`
	VCSExcludeSize        string   `yaml:"vcs_exclude_size"` // e.g., "100MB"
	FrozenAfterDays       int      `yaml:"frozen_after_days"`
	HotWithinDays         int      `yaml:"hot_within_days"`
	FrozenLowPrioritySize string   `yaml:"frozen_low_priority_size"`
	HotSizeCeiling        string   `yaml:"hot_size_ceiling"`
	AppendOnlyMarkers     []string `yaml:"append_only_markers"`
}

// WatcherConfig holds change-monitoring timings
type WatcherConfig struct {
	Debounce         time.Duration `yaml:"debounce"`
	DispatchInterval time.Duration `yaml:"dispatch_interval"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	StallTimeout     time.Duration `yaml:"stall_timeout"`
	BatchWindow      time.Duration `yaml:"batch_window"`
	EventBuffer      int           `yaml:"event_buffer"`
}

// DaemonConfig holds daemon mode configuration
type DaemonConfig struct {
	PidFile         string           `yaml:"pid_file"`
	LogFile         string           `yaml:"log_file"`
	LogLevel        string           `yaml:"log_level"`
	LogMaxSizeMB    int              `yaml:"log_max_size_mb"`
	LogMaxBackups   int              `yaml:"log_max_backups"`
	LogMaxAgeDays   int              `yaml:"log_max_age_days"`
	JournalPath     string           `yaml:"journal_path"`
	JournalKeepDays int              `yaml:"journal_keep_days"` // acknowledged events older than this are pruned
	OverridesFile   string           `yaml:"overrides_file"`
	RescanSchedule  []RescanSchedule `yaml:"rescan_schedules"`
}

// RescanSchedule defines a scheduled full re-scan
type RescanSchedule struct {
	Name       string `yaml:"name"`
	Schedule   string `yaml:"schedule"` // Cron expression
	SkipIfBusy bool   `yaml:"skip_if_busy"`
}

// Load loads configuration from a file
func Load(configPath string) (*Config, error) {
	// If config doesn't exist, return default config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefault(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so partial files only override what they name
	config := GetDefault()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Roots must be absolute
	for _, root := range c.Roots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("root must be absolute: %s", root)
		}
	}
	if c.ProfileRoot != "" && !filepath.IsAbs(c.ProfileRoot) {
		return fmt.Errorf("profile root must be absolute: %s", c.ProfileRoot)
	}

	// Validate classifier thresholds
	cc := c.Classifier
	if cc.MaxAutoDepth < 0 {
		return fmt.Errorf("max auto depth must be >= 0")
	}
	if cc.FrozenAfterDays < 0 || cc.HotWithinDays < 0 {
		return fmt.Errorf("day thresholds must be >= 0")
	}
	for name, size := range map[string]string{
		"vcs_exclude_size":         cc.VCSExcludeSize,
		"frozen_low_priority_size": cc.FrozenLowPrioritySize,
		"hot_size_ceiling":         cc.HotSizeCeiling,
	} {
		if _, err := utils.ParseSize(size); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	// Validate watcher timings
	w := c.Watcher
	if w.Debounce <= 0 || w.DispatchInterval <= 0 || w.RetryDelay <= 0 {
		return fmt.Errorf("watcher debounce, dispatch interval and retry delay must be > 0")
	}
	if w.StallTimeout < 0 || w.BatchWindow < 0 {
		return fmt.Errorf("watcher stall timeout and batch window must be >= 0")
	}
	if w.EventBuffer < 0 {
		return fmt.Errorf("watcher event buffer must be >= 0")
	}

	// Validate log level
	switch strings.ToLower(c.Daemon.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Daemon.LogLevel)
	}

	if c.Daemon.JournalKeepDays < 0 {
		return fmt.Errorf("journal keep days must be >= 0")
	}

	for _, s := range c.Daemon.RescanSchedule {
		if s.Name == "" || s.Schedule == "" {
			return fmt.Errorf("rescan schedules need a name and a cron expression")
		}
	}

	return nil
}

// ApplyPlatformDefaults fills every empty list and path from the platform
// information, leaving explicit settings alone
func (c *Config) ApplyPlatformDefaults(info *platform.Info) {
	if info == nil {
		return
	}
	if len(c.Roots) == 0 {
		c.Roots = append([]string(nil), info.DefaultRoots...)
	}
	if c.ProfileRoot == "" {
		c.ProfileRoot = info.HomeDir
	}
	if len(c.Scanner.AlwaysExcluded) == 0 {
		c.Scanner.AlwaysExcluded = append([]string(nil), info.AlwaysExcluded...)
	}
	if len(c.Scanner.TraverseHidden) == 0 {
		c.Scanner.TraverseHidden = append([]string(nil), info.TraverseHidden...)
	}
	if len(c.Scanner.SystemFileAllow) == 0 {
		c.Scanner.SystemFileAllow = append([]string(nil), info.SystemFileAllow...)
	}
	if len(c.Scanner.ProfileCacheDirs) == 0 {
		c.Scanner.ProfileCacheDirs = append([]string(nil), info.ProfileCacheDirs...)
	}
}

// GetConfigDir returns the directory holding dataguard's files
func GetConfigDir() (string, error) {
	base, err := platform.GetUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "dataguard"), nil
}

// GetConfigPath returns the default config path
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
