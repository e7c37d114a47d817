package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fenilsonani/dataguard/internal/config"
	"github.com/fenilsonani/dataguard/internal/platform"
	"github.com/fenilsonani/dataguard/internal/tree"
)

var (
	overrideMode     string
	overridePriority string
	overrideCascade  bool
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manage saved manual overrides",
	Long: `Manual overrides pin a directory's backup mode or priority. They are applied
again after every full scan, by the browser, the watcher and the daemon.`,
}

var overrideListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openOverrides()
		if err != nil {
			return err
		}
		saved, err := store.List()
		if err != nil {
			return err
		}
		if len(saved) == 0 {
			fmt.Println("No overrides saved")
			return nil
		}

		for _, o := range saved {
			var parts []string
			if o.Mode != "" {
				parts = append(parts, "mode="+o.Mode)
			}
			if o.Priority != "" {
				p := "priority=" + o.Priority
				if o.Cascade {
					p += " (cascaded)"
				}
				parts = append(parts, p)
			}
			fmt.Printf("%s\n    %s, set %s\n", o.Path, strings.Join(parts, ", "), humanize.Time(o.UpdatedAt))
		}
		fmt.Printf("\n%d overrides in %s\n", len(saved), store.Path())
		return nil
	},
}

var overrideSetCmd = &cobra.Command{
	Use:   "set <path>",
	Short: "Save a mode and/or priority override for a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if overrideMode == "" && overridePriority == "" {
			return errors.New("pass --mode and/or --priority")
		}

		store, roots, err := openOverrides()
		if err != nil {
			return err
		}
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		saved, err := store.List()
		if err != nil {
			return err
		}
		o := config.Override{Path: path}
		for _, existing := range saved {
			if strings.EqualFold(existing.Path, path) {
				o = existing
			}
		}

		if overrideMode != "" {
			m, err := tree.ParseMode(overrideMode)
			if err != nil {
				return err
			}
			if m == tree.ModeInherit && isRoot(path, roots) {
				return fmt.Errorf("%s is a root and cannot inherit", path)
			}
			o.Mode = m.String()
			if m == tree.ModeAuto {
				o.Mode = ""
			}
		}
		if overridePriority != "" {
			p, err := tree.ParsePriority(overridePriority)
			if err != nil {
				return err
			}
			o.Priority = p.String()
			o.Cascade = overrideCascade
			if p == tree.PriorityAuto {
				o.Priority, o.Cascade = "", false
			}
		}
		o.UpdatedAt = time.Now()

		if err := store.Set(o); err != nil {
			return err
		}
		fmt.Printf("Saved override for %s\n", path)
		return nil
	},
}

var overrideClearCmd = &cobra.Command{
	Use:   "clear <path>",
	Short: "Remove the override of a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openOverrides()
		if err != nil {
			return err
		}
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if err := store.Remove(path); err != nil {
			return err
		}
		fmt.Printf("Removed override for %s\n", path)
		return nil
	},
}

// openOverrides returns the configured store and the effective roots
func openOverrides() (*config.OverrideStore, []string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if info, err := platform.GetInfo(); err == nil {
		cfg.ApplyPlatformDefaults(info)
	}
	store, err := config.NewOverrideStore(cfg.Daemon.OverridesFile)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg.Roots, nil
}

func isRoot(path string, roots []string) bool {
	for _, r := range roots {
		if strings.EqualFold(filepath.Clean(r), filepath.Clean(path)) {
			return true
		}
	}
	return false
}

func init() {
	overrideSetCmd.Flags().StringVarP(&overrideMode, "mode", "m", "", "auto, excluded, normal, append-only, frozen or inherit")
	overrideSetCmd.Flags().StringVarP(&overridePriority, "priority", "p", "", "auto, highest, high, normal, low or lowest")
	overrideSetCmd.Flags().BoolVar(&overrideCascade, "cascade", false, "apply the priority to every subdirectory too")

	overrideCmd.AddCommand(overrideListCmd)
	overrideCmd.AddCommand(overrideSetCmd)
	overrideCmd.AddCommand(overrideClearCmd)
}
