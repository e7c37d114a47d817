package tree

import (
	"fmt"
	"strings"
)

// Mode is the backup-handling mode assigned to a directory
type Mode int32

const (
	// ModeAuto is the manual-override sentinel meaning "use the automatic value"
	ModeAuto Mode = iota - 1
	ModeExcluded
	ModeNormal
	ModeAppendOnly
	ModeFrozen
	// ModeInherit defers to the nearest ancestor with a concrete mode
	ModeInherit
)

// String returns a human-readable mode name
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeExcluded:
		return "excluded"
	case ModeNormal:
		return "normal"
	case ModeAppendOnly:
		return "append-only"
	case ModeFrozen:
		return "frozen"
	case ModeInherit:
		return "inherit"
	default:
		return "unknown"
	}
}

// Concrete reports whether m is one of the four modes a node can resolve to
func (m Mode) Concrete() bool {
	return m >= ModeExcluded && m <= ModeFrozen
}

// ParseMode converts a mode name back into a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return ModeAuto, nil
	case "excluded", "exclude":
		return ModeExcluded, nil
	case "normal":
		return ModeNormal, nil
	case "append-only", "append_only", "appendonly":
		return ModeAppendOnly, nil
	case "frozen":
		return ModeFrozen, nil
	case "inherit", "inherit-from-parent":
		return ModeInherit, nil
	default:
		return ModeAuto, fmt.Errorf("unknown mode %q", s)
	}
}

// Priority orders directories for backup
type Priority int32

const (
	// PriorityAuto is the manual-override sentinel meaning "use the automatic value"
	PriorityAuto Priority = iota - 1
	PriorityHighest
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityLowest
)

// String returns a human-readable priority name
func (p Priority) String() string {
	switch p {
	case PriorityAuto:
		return "auto"
	case PriorityHighest:
		return "highest"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityLowest:
		return "lowest"
	default:
		return "unknown"
	}
}

// ParsePriority converts a priority name back into a Priority
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return PriorityAuto, nil
	case "highest":
		return PriorityHighest, nil
	case "high":
		return PriorityHigh, nil
	case "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "lowest":
		return PriorityLowest, nil
	default:
		return PriorityAuto, fmt.Errorf("unknown priority %q", s)
	}
}
