//go:build !windows

package scanner

import (
	"io/fs"
	"strings"
)

// attributes maps Unix conventions onto the hidden/system/reparse flags: a
// leading dot hides, device/socket/pipe nodes count as system entries and
// symlinks as reparse points
func attributes(name string, info fs.FileInfo) (hidden, system, reparse bool) {
	mode := info.Mode()
	hidden = strings.HasPrefix(name, ".")
	system = mode&(fs.ModeDevice|fs.ModeCharDevice|fs.ModeNamedPipe|fs.ModeSocket) != 0
	reparse = mode&fs.ModeSymlink != 0
	return hidden, system, reparse
}
