package tree

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// SortBy selects the display order of children
type SortBy int

const (
	SortByName SortBy = iota
	SortBySize
	SortByCount
)

// String returns a human-readable sort key
func (s SortBy) String() string {
	switch s {
	case SortByName:
		return "name"
	case SortBySize:
		return "size"
	case SortByCount:
		return "count"
	default:
		return "unknown"
	}
}

// ParseSortBy converts a sort key name into a SortBy
func ParseSortBy(s string) (SortBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name", "":
		return SortByName, nil
	case "size":
		return SortBySize, nil
	case "count", "files":
		return SortByCount, nil
	default:
		return SortByName, fmt.Errorf("unknown sort key %q", s)
	}
}

// Sorted returns a copy of nodes ordered by the given key. Size and count sort
// largest first; ties fall back to name order.
func Sorted(nodes []*Node, by SortBy) []*Node {
	out := slices.Clone(nodes)
	slices.SortStableFunc(out, func(a, b *Node) int {
		var c int
		switch by {
		case SortBySize:
			c = cmp.Compare(b.Total().Size, a.Total().Size)
		case SortByCount:
			c = cmp.Compare(b.Total().Files, a.Total().Files)
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.key, b.key)
	})
	return out
}
