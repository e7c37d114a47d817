// Package classifier assigns the automatic backup mode and priority of a
// directory from its name, depth, size and last write time.
package classifier

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fenilsonani/dataguard/internal/config"
	"github.com/fenilsonani/dataguard/internal/tree"
	"github.com/fenilsonani/dataguard/pkg/utils"
)

// Rule identifies which heuristic decided a node's classification
type Rule int

const (
	RuleLargeVCS Rule = iota
	RuleTooDeep
	RuleMarker
	RuleNoWrites
	RuleStale
	RuleActive
)

// String returns a human-readable rule name
func (r Rule) String() string {
	switch r {
	case RuleLargeVCS:
		return "large-vcs"
	case RuleTooDeep:
		return "too-deep"
	case RuleMarker:
		return "marker"
	case RuleNoWrites:
		return "no-writes"
	case RuleStale:
		return "stale"
	case RuleActive:
		return "active"
	default:
		return "unknown"
	}
}

// Settings are the parsed classifier thresholds
type Settings struct {
	MaxAutoDepth          int
	VCSSuffix             string
	VCSExcludeSize        int64
	FrozenAfterDays       int
	HotWithinDays         int
	FrozenLowPrioritySize int64
	HotSizeCeiling        int64
	AppendOnlyMarkers     []string
}

// DefaultSettings returns the built-in thresholds
func DefaultSettings() Settings {
	s, err := FromConfig(config.GetDefault().Classifier)
	if err != nil {
		panic(fmt.Sprintf("default classifier config is invalid: %v", err))
	}
	return s
}

// FromConfig parses the human-readable sizes of a ClassifierConfig
func FromConfig(cc config.ClassifierConfig) (Settings, error) {
	vcs, err := utils.ParseSize(cc.VCSExcludeSize)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse vcs_exclude_size: %w", err)
	}
	low, err := utils.ParseSize(cc.FrozenLowPrioritySize)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse frozen_low_priority_size: %w", err)
	}
	ceiling, err := utils.ParseSize(cc.HotSizeCeiling)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse hot_size_ceiling: %w", err)
	}

	markers := make([]string, 0, len(cc.AppendOnlyMarkers))
	for _, m := range cc.AppendOnlyMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}

	return Settings{
		MaxAutoDepth:          cc.MaxAutoDepth,
		VCSSuffix:             strings.ToLower(cc.VCSSuffix),
		VCSExcludeSize:        vcs,
		FrozenAfterDays:       cc.FrozenAfterDays,
		HotWithinDays:         cc.HotWithinDays,
		FrozenLowPrioritySize: low,
		HotSizeCeiling:        ceiling,
		AppendOnlyMarkers:     markers,
	}, nil
}

// Classifier applies the heuristics relative to a fixed scan-start time so
// repeated runs over the same input give the same answer
type Classifier struct {
	settings Settings
	now      time.Time
}

// New creates a classifier anchored at now
func New(settings Settings, now time.Time) *Classifier {
	return &Classifier{settings: settings, now: now}
}

// Now returns the reference time used for write-age computations
func (c *Classifier) Now() time.Time {
	return c.now
}

// Classify sets the automatic mode and priority of n. It must run after n's
// children have been scanned and classified and their totals merged into n.
func (c *Classifier) Classify(n *tree.Node) Rule {
	name := strings.ToLower(filepath.Base(n.Name()))
	total := n.Total()

	// Large version-control metadata is excluded wholesale
	if c.settings.VCSSuffix != "" && strings.HasSuffix(name, c.settings.VCSSuffix) &&
		total.Size > c.settings.VCSExcludeSize {
		n.SetModeAuto(tree.ModeExcluded)
		tree.ForceInherit(n)
		tree.RepairExcluded(n)
		tree.RefreshMixed(n)
		return RuleLargeVCS
	}

	rule := c.classifyContent(n, name, total)
	if rule == RuleMarker || rule == RuleNoWrites {
		return rule
	}

	tree.RefreshMixed(n)
	return rule
}

func (c *Classifier) classifyContent(n *tree.Node, name string, total tree.Stats) Rule {
	if n.Depth() > c.settings.MaxAutoDepth {
		n.SetModeAuto(tree.ModeInherit)
		return RuleTooDeep
	}

	for _, marker := range c.settings.AppendOnlyMarkers {
		if strings.Contains(name, marker) {
			n.SetModeAuto(tree.ModeAppendOnly)
			n.SetPriorityAuto(tree.PriorityLow)
			tree.ForceInherit(n)
			tree.ResetPriority(n)
			tree.RefreshMixed(n)
			return RuleMarker
		}
	}

	lastWrite := n.MaxWriteTime()
	if lastWrite.IsZero() {
		n.SetModeAuto(tree.ModeInherit)
		return RuleNoWrites
	}

	days := int(c.now.Sub(lastWrite) / (24 * time.Hour))
	if days > c.settings.FrozenAfterDays {
		n.SetModeAuto(tree.ModeFrozen)
		if total.Size > c.settings.FrozenLowPrioritySize {
			n.SetPriorityAuto(tree.PriorityLow)
			tree.ResetPriority(n)
		}
		return RuleStale
	}

	n.SetModeAuto(tree.ModeNormal)
	if days <= c.settings.HotWithinDays && total.Size < c.settings.HotSizeCeiling {
		n.SetPriorityAuto(tree.PriorityHigh)
		tree.ResetPriority(n)
	}
	return RuleActive
}
