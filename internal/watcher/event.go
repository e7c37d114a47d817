// Package watcher turns filesystem change notifications into a coalesced,
// debounced stream of semantic change events.
//
// A Watcher per monitored directory reads fsnotify batches and converts them
// into RawRecords. A Translator pairs those records into Events (a remove
// followed by an add becomes a MOVE), the Queue merges repeated changes to
// the same file, and the Dispatcher drains events once they have been quiet
// for the debounce window.
package watcher

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Action is the kind of a low-level notification record
type Action int

const (
	ActionAdded Action = iota
	ActionRemoved
	ActionModified
	ActionRenamedOld
	ActionRenamedNew
)

// String returns a human-readable action name
func (a Action) String() string {
	switch a {
	case ActionAdded:
		return "added"
	case ActionRemoved:
		return "removed"
	case ActionModified:
		return "modified"
	case ActionRenamedOld:
		return "renamed-old"
	case ActionRenamedNew:
		return "renamed-new"
	default:
		return "unknown"
	}
}

// RawRecord is one notification as delivered by the OS, before pairing
type RawRecord struct {
	Action Action
	Path   string // absolute path of the subject
	IsDir  bool
}

// Kind is the semantic type of a change event
type Kind int

const (
	KindCreate Kind = iota
	KindModify
	KindRename
	KindMove
	KindDelete
)

// String returns the upper-case event kind name
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "CREATE"
	case KindModify:
		return "MODIFY"
	case KindRename:
		return "RENAME"
	case KindMove:
		return "MOVE"
	case KindDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ParseKind converts an event kind name into a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CREATE":
		return KindCreate, nil
	case "MODIFY":
		return KindModify, nil
	case "RENAME":
		return KindRename, nil
	case "MOVE":
		return KindMove, nil
	case "DELETE":
		return KindDelete, nil
	default:
		return KindCreate, fmt.Errorf("unknown event kind %q", s)
	}
}

// MarshalText encodes the kind by name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Event is a semantic change. RENAME keeps the directory and changes the
// name; MOVE may change both, so it carries NewDir as well.
type Event struct {
	Kind    Kind      `json:"kind"`
	Root    string    `json:"root"`
	Dir     string    `json:"dir"`
	Name    string    `json:"name"`
	NewDir  string    `json:"new_dir,omitempty"`
	NewName string    `json:"new_name,omitempty"`
	At      time.Time `json:"at"`
}

// Path returns the absolute path of the event subject
func (e Event) Path() string {
	return filepath.Join(e.Dir, e.Name)
}

// NewPath returns the target path of a RENAME or MOVE, or "" for other kinds
func (e Event) NewPath() string {
	switch e.Kind {
	case KindRename:
		return filepath.Join(e.Dir, e.NewName)
	case KindMove:
		return filepath.Join(e.NewDir, e.NewName)
	default:
		return ""
	}
}

// String formats the event for logs and the CLI
func (e Event) String() string {
	if target := e.NewPath(); target != "" {
		return fmt.Sprintf("%s %s -> %s", e.Kind, e.Path(), target)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Path())
}

// foldCase is set where file names are case-insensitive
var foldCase = runtime.GOOS == "windows"

// sameSubject reports whether a and b refer to the same file in the same root
func sameSubject(a, b Event) bool {
	return a.Root == b.Root && samePath(a.Dir, b.Dir) && samePath(a.Name, b.Name)
}

func samePath(a, b string) bool {
	if foldCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}
