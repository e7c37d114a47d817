package scanner

import (
	"os"
	"time"
)

// Entry is one item of a directory listing
type Entry struct {
	Name    string
	Dir     bool
	Hidden  bool
	System  bool
	Reparse bool // symlinks, junctions and other reparse points
	Size    int64
	ModTime time.Time
}

// Lister enumerates a single directory level
type Lister interface {
	ReadDir(path string) ([]Entry, error)
}

// OSLister lists directories through the operating system
type OSLister struct{}

// ReadDir lists path, skipping entries that vanish between the listing and
// the stat
func (OSLister) ReadDir(path string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}

		e := Entry{
			Name:    de.Name(),
			Dir:     info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		e.Hidden, e.System, e.Reparse = attributes(de.Name(), info)
		if e.Dir {
			e.Size = 0
		}
		entries = append(entries, e)
	}
	return entries, nil
}
