package scanner

import (
	"context"
	"errors"

	"github.com/fenilsonani/dataguard/internal/tree"
)

// ErrAlreadyScanned is returned when a lazy scan targets a node that has
// already been enumerated
var ErrAlreadyScanned = errors.New("node already scanned")

// ScanNode enumerates a not-yet-traversed node and everything below it using
// the full scanner's enumeration, then repairs excluded aggregates and mixed
// flags. It does not classify: directories found this way inherit their mode.
func (s *Scanner) ScanNode(ctx context.Context, n *tree.Node) (*Result, error) {
	if !n.ClaimNotTraversed() && n.ScanStarted() {
		return nil, ErrAlreadyScanned
	}

	r := newRun(s.now(), s.opts.MaxErrors)
	r.root, r.rootsTotal = n.Path(), 1
	s.logger.Debug("Lazy scan of %s started", n.Path())
	s.scanDir(ctx, r, nil, n, n.Path())

	tree.RepairExcluded(n)
	tree.RefreshMixedSubtree(n)
	tree.UpdateMixed(n)

	if err := ctx.Err(); err != nil {
		return r.result([]*tree.Node{n}, true), err
	}
	res := r.result([]*tree.Node{n}, false)
	s.logger.Debug("Lazy scan of %s finished: %d dirs, %d files", n.Path(), res.DirsScanned, res.FilesFound)
	return res, nil
}
