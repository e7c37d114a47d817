package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Translator pairs raw records of one monitored directory into events. It
// keeps a single pending delete that a following add may turn into a MOVE;
// the slot survives across batches until an unrelated record or a stall
// flushes it. A Translator is owned by one goroutine.
type Translator struct {
	root      string
	pending   *RawRecord
	renameOld *RawRecord
}

// NewTranslator creates a translator for events under root
func NewTranslator(root string) *Translator {
	return &Translator{root: root}
}

// HasPending reports whether a delete is waiting for a matching add
func (t *Translator) HasPending() bool {
	return t.pending != nil || t.renameOld != nil
}

// Translate converts one delivered batch, in order
func (t *Translator) Translate(batch []RawRecord, at time.Time) []Event {
	var out []Event
	for _, rec := range batch {
		out = t.translate(out, rec, at)
	}
	// An unpaired rename-old at the end of a batch becomes the pending delete
	if old := t.renameOld; old != nil {
		t.renameOld = nil
		out = t.stash(out, *old, at)
	}
	return out
}

func (t *Translator) translate(out []Event, rec RawRecord, at time.Time) []Event {
	if t.renameOld != nil {
		old := *t.renameOld
		t.renameOld = nil
		if rec.Action == ActionRenamedNew {
			return append(out, t.event(KindRename, old.Path, rec.Path, at))
		}
		out = t.stash(out, old, at)
	}

	switch rec.Action {
	case ActionRemoved:
		return t.stash(out, rec, at)

	case ActionAdded, ActionRenamedNew:
		if t.pending != nil && paired(t.pending.Path, rec.Path) {
			old := *t.pending
			t.pending = nil
			return append(out, t.event(KindMove, old.Path, rec.Path, at))
		}
		out = t.flush(out, at)
		return append(out, t.event(KindCreate, rec.Path, "", at))

	case ActionModified:
		out = t.flush(out, at)
		if rec.IsDir {
			return out
		}
		return append(out, t.event(KindModify, rec.Path, "", at))

	case ActionRenamedOld:
		out = t.flush(out, at)
		t.renameOld = &rec
		return out
	}
	return out
}

// stash parks rec in the pending slot, flushing whatever was there
func (t *Translator) stash(out []Event, rec RawRecord, at time.Time) []Event {
	out = t.flush(out, at)
	t.pending = &rec
	return out
}

// Flush emits the pending delete, if any, as a plain DELETE. The watcher calls
// it when notifications stall or fail.
func (t *Translator) Flush(at time.Time) []Event {
	return t.flush(nil, at)
}

func (t *Translator) flush(out []Event, at time.Time) []Event {
	for _, rec := range []*RawRecord{t.pending, t.renameOld} {
		if rec != nil {
			out = append(out, t.event(KindDelete, rec.Path, "", at))
		}
	}
	t.pending, t.renameOld = nil, nil
	return out
}

func (t *Translator) event(kind Kind, path, target string, at time.Time) Event {
	e := Event{
		Kind: kind,
		Root: t.root,
		Dir:  filepath.Dir(path),
		Name: filepath.Base(path),
		At:   at,
	}
	switch kind {
	case KindRename:
		e.NewName = filepath.Base(target)
	case KindMove:
		e.NewDir = filepath.Dir(target)
		e.NewName = filepath.Base(target)
	}
	return e
}

// paired reports whether an add at newPath completes a delete at oldPath:
// the base names match (moved between directories) or the directory is the
// same (renamed in place)
func paired(oldPath, newPath string) bool {
	return strings.EqualFold(filepath.Base(oldPath), filepath.Base(newPath)) ||
		strings.EqualFold(filepath.Dir(oldPath), filepath.Dir(newPath))
}
