package tree

import (
	"errors"
	"fmt"
)

// RecomputeExcluded rebuilds the excluded aggregates of n and every descendant
// from scratch and returns n's new value. Ancestors are not touched.
func RecomputeExcluded(n *Node) Stats {
	return recomputeExcluded(n, n.inheritedMode())
}

func recomputeExcluded(n *Node, inherited Mode) Stats {
	resolved := n.Mode()
	if resolved == ModeInherit {
		resolved = inherited
	}

	var sum Stats
	if resolved == ModeExcluded {
		sum = n.Direct()
	}
	for _, c := range n.childrenShared() {
		sum = sum.Add(recomputeExcluded(c, resolved))
	}
	n.setExcluded(sum)
	return sum
}

// RepairExcluded recomputes the excluded aggregates under n and applies the
// resulting delta to every ancestor of n
func RepairExcluded(n *Node) Stats {
	before := n.Excluded()
	after := RecomputeExcluded(n)
	if delta := after.Sub(before); !delta.IsZero() && n.parent != nil {
		n.parent.PropagateExcluded(delta)
	}
	return after
}

// CheckInvariants walks the subtree under n and reports every node whose
// aggregates, excluded aggregates or mixed flag disagree with its children.
// It is meant for tests and debug commands; it is only meaningful once no scan
// or override is in flight.
func CheckInvariants(n *Node) error {
	var errs []error
	checkNode(n, &errs)
	return errors.Join(errs...)
}

func checkNode(n *Node, errs *[]error) {
	children := n.childrenShared()
	path := n.Path()

	if n.IsRoot() && n.ModeNoInherit() == ModeInherit {
		*errs = append(*errs, fmt.Errorf("%s: root resolves to inherit", path))
	}
	if n.NotTraversed() {
		if len(children) > 0 {
			*errs = append(*errs, fmt.Errorf("%s: not traversed but has %d children", path, len(children)))
		}
		if !n.Total().IsZero() {
			*errs = append(*errs, fmt.Errorf("%s: not traversed but totals %+v", path, n.Total()))
		}
	}

	sum := n.Direct()
	var excluded Stats
	if n.ModeNoInherit() == ModeExcluded {
		excluded = n.Direct()
	}
	for _, c := range children {
		checkNode(c, errs)
		sum = sum.Add(c.Total())
		excluded = excluded.Add(c.Excluded())
	}

	total := n.Total()
	if total != sum {
		*errs = append(*errs, fmt.Errorf("%s: total %+v != direct plus children %+v", path, total, sum))
	}
	ex := n.Excluded()
	if ex != excluded {
		*errs = append(*errs, fmt.Errorf("%s: excluded %+v, expected %+v", path, ex, excluded))
	}
	if ex.Files > total.Files || ex.Size > total.Size {
		*errs = append(*errs, fmt.Errorf("%s: excluded %+v exceeds total %+v", path, ex, total))
	}
	if want := n.computeMixed(); n.Mixed() != want {
		*errs = append(*errs, fmt.Errorf("%s: mixed=%v, expected %v", path, n.Mixed(), want))
	}
}
