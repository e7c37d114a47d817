package tree

import (
	"errors"
	"fmt"
)

// ErrRootInherit is returned when a root would be told to inherit from a parent it does not have
var ErrRootInherit = errors.New("a root directory cannot inherit its mode")

// SetModeManual records an override (or clears it with ModeAuto), repairs the
// excluded aggregates when the node moves into or out of ModeExcluded, and
// refreshes the mixed flags of the node, its inheritors and its ancestors.
// Setting the value a node already has is a no-op.
func SetModeManual(n *Node, m Mode) error {
	if m < ModeAuto || m > ModeInherit {
		return fmt.Errorf("invalid mode %d", m)
	}
	if m == ModeInherit && n.IsRoot() {
		return ErrRootInherit
	}

	before := n.ModeNoInherit()
	n.modeManual.Store(int32(m))
	after := n.ModeNoInherit()

	if (before == ModeExcluded) != (after == ModeExcluded) {
		RepairExcluded(n)
	}
	UpdateMixed(n)
	return nil
}

// SetPriorityManual records a priority override, or clears it with PriorityAuto
func SetPriorityManual(n *Node, p Priority) error {
	if p < PriorityAuto || p > PriorityLowest {
		return fmt.Errorf("invalid priority %d", p)
	}
	n.priorityManual.Store(int32(p))
	return nil
}

// CascadePriority pushes a priority change made on n down to its descendants.
// Explicit descendants keep their value unless it equals p or PriorityNormal,
// in which case they revert to PriorityAuto. Descendants on auto take p only
// when their own heuristic value differs from p and is not PriorityNormal.
func CascadePriority(n *Node, p Priority) {
	for _, c := range n.childrenShared() {
		if manual := c.PriorityManual(); manual != PriorityAuto {
			if manual == p || manual == PriorityNormal {
				c.priorityManual.Store(int32(PriorityAuto))
			}
		} else if auto := c.PriorityAutoValue(); auto != p && auto != PriorityNormal {
			c.priorityManual.Store(int32(p))
		}
		CascadePriority(c, p)
	}
}

// targetMode is the mode n would resolve to if its override became m
func targetMode(n *Node, m Mode) Mode {
	switch m {
	case ModeAuto:
		if a := n.ModeAutoValue(); a != ModeInherit {
			return a
		}
		return n.inheritedMode()
	case ModeInherit:
		return n.inheritedMode()
	default:
		return m
	}
}

// ModeConflicts lists, in pre-order, the descendants of n whose own effective
// mode is concrete and differs from what n would resolve to with override m.
// It does not modify the tree.
func ModeConflicts(n *Node, m Mode) []*Node {
	return appendModeConflicts(nil, n, targetMode(n, m))
}

func appendModeConflicts(out []*Node, n *Node, target Mode) []*Node {
	for _, c := range n.childrenShared() {
		if cm := c.Mode(); cm != ModeInherit && cm != target {
			out = append(out, c)
		}
		out = appendModeConflicts(out, c, target)
	}
	return out
}

// PriorityConflicts lists, in pre-order, the descendants of n carrying a
// non-default priority different from p. It does not modify the tree.
func PriorityConflicts(n *Node, p Priority) []*Node {
	return appendPriorityConflicts(nil, n, p)
}

func appendPriorityConflicts(out []*Node, n *Node, p Priority) []*Node {
	for _, c := range n.childrenShared() {
		if cp := c.Priority(); cp != PriorityNormal && cp != p {
			out = append(out, c)
		}
		out = appendPriorityConflicts(out, c, p)
	}
	return out
}

// ApplyMode sets the same override on each chosen node
func ApplyMode(nodes []*Node, m Mode) error {
	var errs []error
	for _, c := range nodes {
		if err := SetModeManual(c, m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Path(), err))
		}
	}
	return errors.Join(errs...)
}

// ForceInherit sets the heuristic mode of every descendant of n to ModeInherit
// and clears their mixed flags. Manual overrides are left alone.
func ForceInherit(n *Node) {
	for _, c := range n.childrenShared() {
		c.SetModeAuto(ModeInherit)
		c.mixed.Store(false)
		ForceInherit(c)
	}
}

// ResetPriority sets the heuristic priority of every descendant of n to PriorityNormal
func ResetPriority(n *Node) {
	for _, c := range n.childrenShared() {
		c.SetPriorityAuto(PriorityNormal)
		ResetPriority(c)
	}
}
