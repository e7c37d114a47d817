package tree

// ModeAutoValue returns the heuristic mode
func (n *Node) ModeAutoValue() Mode { return Mode(n.modeAuto.Load()) }

// SetModeAuto stores the heuristic mode. It does not repair aggregates or the
// mixed flag; callers batch those after classification.
func (n *Node) SetModeAuto(m Mode) { n.modeAuto.Store(int32(m)) }

// ModeManual returns the override, or ModeAuto when none is set
func (n *Node) ModeManual() Mode { return Mode(n.modeManual.Load()) }

// Mode returns the effective mode: the override if set, otherwise the heuristic value
func (n *Node) Mode() Mode {
	if m := n.ModeManual(); m != ModeAuto {
		return m
	}
	return n.ModeAutoValue()
}

// ModeNoInherit resolves the effective mode through ancestors until a concrete
// mode is found. A root that still says inherit resolves to ModeNormal.
func (n *Node) ModeNoInherit() Mode {
	for p := n; p != nil; p = p.parent {
		if m := p.Mode(); m != ModeInherit {
			return m
		}
	}
	return ModeNormal
}

// inheritedMode is the mode a node set to inherit would resolve to
func (n *Node) inheritedMode() Mode {
	if n.parent == nil {
		return ModeNormal
	}
	return n.parent.ModeNoInherit()
}

// PriorityAutoValue returns the heuristic priority
func (n *Node) PriorityAutoValue() Priority { return Priority(n.priorityAuto.Load()) }

// SetPriorityAuto stores the heuristic priority
func (n *Node) SetPriorityAuto(p Priority) { n.priorityAuto.Store(int32(p)) }

// PriorityManual returns the override, or PriorityAuto when none is set
func (n *Node) PriorityManual() Priority { return Priority(n.priorityManual.Load()) }

// Priority returns the effective priority. Priorities are not inherited; an
// unset value means PriorityNormal.
func (n *Node) Priority() Priority {
	if p := n.PriorityManual(); p != PriorityAuto {
		return p
	}
	if p := n.PriorityAutoValue(); p != PriorityAuto {
		return p
	}
	return PriorityNormal
}

// Mixed reports whether some descendant resolves to a different mode than n
func (n *Node) Mixed() bool { return n.mixed.Load() }

// computeMixed applies the children-comparison rule against n's current state
func (n *Node) computeMixed() bool {
	own := n.ModeNoInherit()
	for _, c := range n.childrenShared() {
		if c.Mixed() {
			return true
		}
		if m := c.Mode(); m != ModeInherit && m != own {
			return true
		}
	}
	return false
}

// RefreshMixed recomputes the mixed flag of n alone from its direct children
func RefreshMixed(n *Node) {
	n.mixed.Store(n.computeMixed())
}

// RefreshMixedSubtree recomputes the mixed flag of every node under n, leaves first
func RefreshMixedSubtree(n *Node) {
	for _, c := range n.childrenShared() {
		RefreshMixedSubtree(c)
	}
	RefreshMixed(n)
}

// UpdateMixed repairs the mixed flag after n's mode changed. Descendants that
// inherit from n are refreshed first since their resolved mode moved with n,
// then n and each ancestor up to the root.
func UpdateMixed(n *Node) {
	refreshInheritors(n)
	for p := n; p != nil; p = p.parent {
		RefreshMixed(p)
	}
}

func refreshInheritors(n *Node) {
	for _, c := range n.childrenShared() {
		if c.Mode() != ModeInherit {
			continue
		}
		refreshInheritors(c)
		RefreshMixed(c)
	}
}
