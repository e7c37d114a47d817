package tree

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Forest is the top-level list of root nodes. The lock covers replacement of
// the list so a reader never sees a half-swapped root.
type Forest struct {
	mu    sync.RWMutex
	roots []*Node
}

// NewForest creates a forest holding the given roots
func NewForest(roots ...*Node) *Forest {
	return &Forest{roots: roots}
}

// Roots returns a snapshot of the root list
func (f *Forest) Roots() []*Node {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.roots)
}

// SetRoots replaces the whole root list
func (f *Forest) SetRoots(roots []*Node) {
	f.mu.Lock()
	f.roots = slices.Clone(roots)
	f.mu.Unlock()
}

// Replace swaps old for replacement, returning false if old is not a root
func (f *Forest) Replace(old, replacement *Node) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.Index(f.roots, old)
	if i < 0 {
		return false
	}
	f.roots[i] = replacement
	return true
}

// Lookup resolves an absolute path to its node, comparing names
// case-insensitively. It returns nil when no materialised node matches.
func (f *Forest) Lookup(path string) *Node {
	path = filepath.Clean(path)
	for _, root := range f.Roots() {
		rel, ok := relativeTo(root.Name(), path)
		if !ok {
			continue
		}
		n := root
		if rel == "" {
			return n
		}
		for _, part := range strings.Split(rel, string(os.PathSeparator)) {
			if n = n.Child(part); n == nil {
				return nil
			}
		}
		return n
	}
	return nil
}

// relativeTo strips base from path if path lies under base
func relativeTo(base, path string) (string, bool) {
	fb, fp := foldName(base), foldName(path)
	if fb == fp {
		return "", true
	}
	prefix := fb
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	if !strings.HasPrefix(fp, prefix) {
		return "", false
	}
	return fp[len(prefix):], true
}

// Walk visits every node of every root in pre-order. Returning false from fn
// skips the node's children.
func (f *Forest) Walk(fn func(*Node) bool) {
	for _, root := range f.Roots() {
		Walk(root, fn)
	}
}

// Walk visits n and its descendants in pre-order
func Walk(n *Node, fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.childrenShared() {
		Walk(c, fn)
	}
}
