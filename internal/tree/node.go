// Package tree holds the shared directory model: one Node per directory with
// direct and recursive statistics, automatic and manual classification, and the
// bookkeeping that keeps the aggregates consistent after scans and overrides.
//
// Scalar fields are atomics so scanners, the classifier and readers can touch
// them without a lock. Readers may see transiently stale aggregates while a scan
// is in flight; the invariants hold once the scan or override settles.
package tree

import (
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"
)

// Stats is a file count and byte size pair
type Stats struct {
	Files int64 `json:"files" yaml:"files"`
	Size  int64 `json:"size" yaml:"size"`
}

// Add returns the component-wise sum of s and o
func (s Stats) Add(o Stats) Stats {
	return Stats{Files: s.Files + o.Files, Size: s.Size + o.Size}
}

// Sub returns the component-wise difference s - o
func (s Stats) Sub(o Stats) Stats {
	return Stats{Files: s.Files - o.Files, Size: s.Size - o.Size}
}

// IsZero reports whether both components are zero
func (s Stats) IsZero() bool {
	return s.Files == 0 && s.Size == 0
}

// Node is one directory in the tree. A node owns its children; parent is a
// plain back-pointer and is nil for roots.
type Node struct {
	name   string
	key    string
	parent *Node
	depth  int

	childrenLock SpinLock
	children     []*Node // sorted by key, replaced wholesale, never mutated in place

	files         atomic.Int64
	size          atomic.Int64
	totalFiles    atomic.Int64
	totalSize     atomic.Int64
	excludedFiles atomic.Int64
	excludedSize  atomic.Int64
	maxWrite      atomic.Int64 // unix nanoseconds, 0 when no file has been seen

	modeAuto       atomic.Int32
	modeManual     atomic.Int32
	priorityAuto   atomic.Int32
	priorityManual atomic.Int32
	mixed          atomic.Bool

	scanStarted  atomic.Bool
	notTraversed atomic.Bool
	hasSubdirs   atomic.Bool
	expanded     atomic.Bool
}

func newNode(name string, parent *Node) *Node {
	n := &Node{
		name:   name,
		key:    foldName(name),
		parent: parent,
	}
	if parent != nil {
		n.depth = parent.depth + 1
	}
	n.modeAuto.Store(int32(ModeInherit))
	n.modeManual.Store(int32(ModeAuto))
	n.priorityAuto.Store(int32(PriorityNormal))
	n.priorityManual.Store(int32(PriorityAuto))
	return n
}

// NewRoot creates a parentless node whose name is the absolute root path
func NewRoot(path string) *Node {
	return newNode(filepath.Clean(path), nil)
}

// NewChild creates a detached child of parent. It becomes visible to readers
// only once passed to SetChildren or created through InsertChild.
func NewChild(parent *Node, name string) *Node {
	return newNode(name, parent)
}

func foldName(name string) string {
	return strings.ToLower(name)
}

// Name returns the directory base name (the full path for roots)
func (n *Node) Name() string { return n.name }

// Parent returns the parent node, nil for roots
func (n *Node) Parent() *Node { return n.parent }

// IsRoot reports whether n has no parent
func (n *Node) IsRoot() bool { return n.parent == nil }

// Depth is 0 for roots and grows by one per level
func (n *Node) Depth() int { return n.depth }

// Root walks to the top of n's tree
func (n *Node) Root() *Node {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Path rebuilds the absolute path of n by walking its ancestors
func (n *Node) Path() string {
	var parts []string
	for p := n; p != nil; p = p.parent {
		parts = append(parts, p.name)
	}
	slices.Reverse(parts)
	return filepath.Join(parts...)
}

// Children returns a snapshot of the child collection in case-insensitive name order
func (n *Node) Children() []*Node {
	n.childrenLock.Lock()
	c := n.children
	n.childrenLock.Unlock()
	return slices.Clone(c)
}

// childrenShared returns the current slice without copying. Callers must not modify it.
func (n *Node) childrenShared() []*Node {
	n.childrenLock.Lock()
	c := n.children
	n.childrenLock.Unlock()
	return c
}

// NumChildren returns the current number of children
func (n *Node) NumChildren() int {
	return len(n.childrenShared())
}

// SetChildren replaces the whole child collection. Children are re-parented to n,
// sorted case-insensitively, and deduplicated by folded name (first wins).
func (n *Node) SetChildren(children []*Node) {
	sorted := make([]*Node, 0, len(children))
	for _, c := range children {
		c.parent = n
		c.depth = n.depth + 1
		sorted = append(sorted, c)
	}
	slices.SortStableFunc(sorted, func(a, b *Node) int { return strings.Compare(a.key, b.key) })
	sorted = slices.CompactFunc(sorted, func(a, b *Node) bool { return a.key == b.key })

	n.childrenLock.Lock()
	n.children = sorted
	n.childrenLock.Unlock()
	if len(sorted) > 0 {
		n.hasSubdirs.Store(true)
	}
}

// Child finds a direct child by case-insensitive name
func (n *Node) Child(name string) *Node {
	children := n.childrenShared()
	key := foldName(name)
	i, found := slices.BinarySearchFunc(children, key, func(c *Node, k string) int {
		return strings.Compare(c.key, k)
	})
	if !found {
		return nil
	}
	return children[i]
}

// InsertChild returns the existing child with the given name or inserts a new one
func (n *Node) InsertChild(name string) *Node {
	key := foldName(name)

	n.childrenLock.Lock()
	defer n.childrenLock.Unlock()

	i, found := slices.BinarySearchFunc(n.children, key, func(c *Node, k string) int {
		return strings.Compare(c.key, k)
	})
	if found {
		return n.children[i]
	}

	child := newNode(name, n)
	next := make([]*Node, 0, len(n.children)+1)
	next = append(next, n.children[:i]...)
	next = append(next, child)
	next = append(next, n.children[i:]...)
	n.children = next
	n.hasSubdirs.Store(true)
	return child
}

// Direct returns the files directly inside the directory
func (n *Node) Direct() Stats {
	return Stats{Files: n.files.Load(), Size: n.size.Load()}
}

// Total returns direct plus all descendant files
func (n *Node) Total() Stats {
	return Stats{Files: n.totalFiles.Load(), Size: n.totalSize.Load()}
}

// Excluded returns the part of Total that sits under effectively excluded directories
func (n *Node) Excluded() Stats {
	return Stats{Files: n.excludedFiles.Load(), Size: n.excludedSize.Load()}
}

// MaxWriteTime returns the newest file modification time seen in the subtree,
// or the zero time when none was recorded
func (n *Node) MaxWriteTime() time.Time {
	ns := n.maxWrite.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// ApplyScan records the direct statistics of a freshly enumerated directory and
// adds them to the totals of n and every ancestor.
func (n *Node) ApplyScan(direct Stats, maxWrite time.Time) {
	n.files.Store(direct.Files)
	n.size.Store(direct.Size)
	n.WidenMaxWrite(maxWrite)
	n.PropagateTotal(direct)
}

// PropagateTotal adds d to the totals of n and all its ancestors
func (n *Node) PropagateTotal(d Stats) {
	for p := n; p != nil; p = p.parent {
		p.totalFiles.Add(d.Files)
		p.totalSize.Add(d.Size)
	}
}

// PropagateExcluded adds d to the excluded aggregates of n and all its ancestors
func (n *Node) PropagateExcluded(d Stats) {
	for p := n; p != nil; p = p.parent {
		p.excludedFiles.Add(d.Files)
		p.excludedSize.Add(d.Size)
	}
}

func (n *Node) setExcluded(s Stats) {
	n.excludedFiles.Store(s.Files)
	n.excludedSize.Store(s.Size)
}

// WidenMaxWrite raises the recorded maximum write time to t if t is newer
func (n *Node) WidenMaxWrite(t time.Time) {
	if t.IsZero() {
		return
	}
	ns := t.UnixNano()
	for {
		cur := n.maxWrite.Load()
		if ns <= cur || n.maxWrite.CompareAndSwap(cur, ns) {
			return
		}
	}
}

// ScanStarted reports whether enumeration of this directory was attempted
func (n *Node) ScanStarted() bool { return n.scanStarted.Load() }

// MarkScanStarted flags the node as enumerated (or attempted)
func (n *Node) MarkScanStarted() { n.scanStarted.Store(true) }

// NotTraversed reports whether the node is known to exist but has not been scanned
func (n *Node) NotTraversed() bool { return n.notTraversed.Load() }

// ClaimNotTraversed clears the not-traversed flag, reporting whether this
// call was the one that cleared it
func (n *Node) ClaimNotTraversed() bool { return n.notTraversed.CompareAndSwap(true, false) }

// SetNotTraversed toggles the not-traversed flag
func (n *Node) SetNotTraversed(v bool) { n.notTraversed.Store(v) }

// HasSubdirs reports whether a listing found subdirectories, even if they are
// not materialised as children yet
func (n *Node) HasSubdirs() bool { return n.hasSubdirs.Load() }

// SetHasSubdirs records the result of a shallow listing
func (n *Node) SetHasSubdirs(v bool) { n.hasSubdirs.Store(v) }

// Expanded is the UI-owned expand flag
func (n *Node) Expanded() bool { return n.expanded.Load() }

// SetExpanded sets the UI-owned expand flag
func (n *Node) SetExpanded(v bool) { n.expanded.Store(v) }

// Known reports whether the node's statistics are meaningful. Unscanned nodes
// should be displayed as unknown rather than zero.
func (n *Node) Known() bool {
	return n.scanStarted.Load() && !n.notTraversed.Load()
}
