// Package scanner walks directory roots into the shared tree. The full
// scanner rebuilds whole roots and classifies every directory; the lazy
// scanner fills in one not-yet-traversed node on demand.
package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fenilsonani/dataguard/internal/classifier"
	"github.com/fenilsonani/dataguard/internal/config"
	"github.com/fenilsonani/dataguard/internal/logging"
	"github.com/fenilsonani/dataguard/internal/platform"
	"github.com/fenilsonani/dataguard/internal/progress"
	"github.com/fenilsonani/dataguard/internal/tree"
)

// progressEvery is how many directories pass between progress updates
const progressEvery = 256

// Options controls entry filtering and the post-scan rules
type Options struct {
	AlwaysExcluded   []string
	TraverseHidden   []string
	SystemFileAllow  []string
	ProfileRoot      string
	ProfileCacheDirs []string
	MaxErrors        int
}

// OptionsFromConfig extracts scanner options from the application config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AlwaysExcluded:   cfg.Scanner.AlwaysExcluded,
		TraverseHidden:   cfg.Scanner.TraverseHidden,
		SystemFileAllow:  cfg.Scanner.SystemFileAllow,
		ProfileRoot:      cfg.ProfileRoot,
		ProfileCacheDirs: cfg.Scanner.ProfileCacheDirs,
		MaxErrors:        cfg.Scanner.MaxErrors,
	}
}

// Scanner builds and refreshes the directory tree
type Scanner struct {
	opts             Options
	filter           *platform.Info
	settings         classifier.Settings
	lister           Lister
	logger           *logging.Logger
	progressReporter *progress.ProgressReporter
	now              func() time.Time
}

// New creates a new Scanner. A nil lister uses the operating system.
func New(opts Options, settings classifier.Settings, lister Lister, logger *logging.Logger) *Scanner {
	if lister == nil {
		lister = OSLister{}
	}
	return &Scanner{
		opts: opts,
		// platform.Info carries the name-matching helpers for these lists
		filter: &platform.Info{
			AlwaysExcluded:  opts.AlwaysExcluded,
			TraverseHidden:  opts.TraverseHidden,
			SystemFileAllow: opts.SystemFileAllow,
		},
		settings: settings,
		lister:   lister,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
	}
}

// SetProgressReporter sets the progress reporter for scan updates
func (s *Scanner) SetProgressReporter(pr *progress.ProgressReporter) {
	s.progressReporter = pr
}

// SetClock overrides the clock used for the scan-start timestamp
func (s *Scanner) SetClock(now func() time.Time) {
	s.now = now
}

// Scan rebuilds every root from scratch. Fresh root nodes are published to
// the forest before enumeration starts so readers can watch them fill in.
// On cancellation the partially built roots are left in place and ctx.Err()
// is returned; callers are expected to discard them.
func (s *Scanner) Scan(ctx context.Context, forest *tree.Forest, paths []string) (*Result, error) {
	r := newRun(s.now(), s.opts.MaxErrors)
	c := classifier.New(s.settings, r.now)

	roots := make([]*tree.Node, 0, len(paths))
	for _, p := range paths {
		roots = append(roots, tree.NewRoot(p))
	}
	forest.SetRoots(roots)

	s.logger.Info("Full scan of %d roots started", len(roots))
	r.rootsTotal = len(roots)
	for i, root := range roots {
		if ctx.Err() != nil {
			break
		}
		r.root, r.rootsDone = root.Path(), i
		s.report(r, progress.PhaseScanning, root.Path())
		s.scanDir(ctx, r, c, root, root.Path())
	}

	if err := ctx.Err(); err != nil {
		s.report(r, progress.PhaseCancelled, "")
		s.logger.Info("Full scan cancelled after %d directories", r.dirs.Load())
		return r.result(roots, true), err
	}

	s.applyProfileRules(forest)
	for _, root := range roots {
		tree.RecomputeExcluded(root)
		tree.RefreshMixedSubtree(root)
	}

	res := r.result(roots, false)
	r.rootsDone = len(roots)
	s.report(r, progress.PhaseComplete, "")
	s.logger.Info("Full scan finished: %d dirs, %d files, %d bytes, %d skipped subtrees in %s",
		res.DirsScanned, res.FilesFound, res.TotalSize, res.ErrorCount, res.Duration.Round(time.Millisecond))
	return res, nil
}

// scanDir enumerates n, publishes its children, recurses into them and then
// classifies n. A nil classifier skips classification.
func (s *Scanner) scanDir(ctx context.Context, r *run, c *classifier.Classifier, n *tree.Node, path string) {
	if ctx.Err() != nil {
		return
	}
	n.MarkScanStarted()

	entries, err := s.lister.ReadDir(path)
	if err != nil {
		enumErr := CategorizeError(path, err)
		r.addError(enumErr)
		s.logger.Debug("Skipping %s", enumErr)
		return
	}

	var direct tree.Stats
	var maxWrite time.Time
	children := make([]*tree.Node, 0)
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if !s.accept(e, n.IsRoot()) {
			r.skipped.Add(1)
			continue
		}
		if e.Dir {
			child := n.Child(e.Name)
			if child == nil {
				child = tree.NewChild(n, e.Name)
			}
			children = append(children, child)
			continue
		}
		direct.Files++
		direct.Size += e.Size
		if !e.ModTime.After(r.now) && e.ModTime.After(maxWrite) {
			maxWrite = e.ModTime
		}
	}

	n.SetChildren(children)
	n.SetHasSubdirs(len(children) > 0)
	n.ApplyScan(direct, maxWrite)

	if dirs := r.dirs.Add(1); dirs%progressEvery == 0 {
		s.report(r, progress.PhaseScanning, path)
	}
	r.files.Add(direct.Files)
	r.bytes.Add(direct.Size)

	for _, child := range n.Children() {
		if ctx.Err() != nil {
			return
		}
		if child.ScanStarted() {
			n.WidenMaxWrite(child.MaxWriteTime())
			continue
		}
		s.scanDir(ctx, r, c, child, filepath.Join(path, child.Name()))
		n.WidenMaxWrite(child.MaxWriteTime())
	}

	if c != nil && ctx.Err() == nil {
		c.Classify(n)
	}
}

// accept applies the hidden/system/reparse filter and the top-level exclusions
func (s *Scanner) accept(e Entry, atRoot bool) bool {
	if e.Reparse {
		return false
	}
	if e.System {
		return !e.Dir && s.filter.AllowsSystemFile(e.Name)
	}
	if e.Hidden && !(e.Dir && s.filter.TraversesHidden(e.Name)) {
		return false
	}
	if atRoot && s.filter.IsAlwaysExcluded(e.Name) {
		return false
	}
	return true
}

// applyProfileRules forces the profile root's cache-like directories to excluded
func (s *Scanner) applyProfileRules(forest *tree.Forest) {
	if s.opts.ProfileRoot == "" {
		return
	}
	for _, rel := range s.opts.ProfileCacheDirs {
		n := forest.Lookup(filepath.Join(s.opts.ProfileRoot, rel))
		if n == nil {
			continue
		}
		n.SetModeAuto(tree.ModeExcluded)
		tree.ForceInherit(n)
		s.logger.Debug("Excluded profile cache directory %s", n.Path())
	}
}

// ListShallow lists n one level deep to learn whether it has subdirectories,
// without creating children or touching aggregates
func (s *Scanner) ListShallow(n *tree.Node) error {
	entries, err := s.lister.ReadDir(n.Path())
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", n.Path(), CategorizeError(n.Path(), err))
	}
	hasSubdirs := false
	for _, e := range entries {
		if e.Dir && s.accept(e, n.IsRoot()) {
			hasSubdirs = true
			break
		}
	}
	n.SetHasSubdirs(hasSubdirs)
	return nil
}

func (s *Scanner) report(r *run, phase progress.Phase, path string) {
	if s.progressReporter == nil {
		return
	}
	s.progressReporter.UpdateScanProgress(&progress.ScanProgress{
		Phase:       phase,
		Root:        r.root,
		CurrentPath: path,
		RootsDone:   r.rootsDone,
		RootsTotal:  r.rootsTotal,
		DirsScanned: r.dirs.Load(),
		FilesFound:  r.files.Load(),
		TotalSize:   r.bytes.Load(),
		Skipped:     r.skipped.Load(),
		StartTime:   r.now,
	})
}
