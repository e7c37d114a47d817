//go:build windows

package scanner

import (
	"io/fs"
	"syscall"

	"golang.org/x/sys/windows"
)

// attributes reads the Win32 attribute bits of a listed entry
func attributes(_ string, info fs.FileInfo) (hidden, system, reparse bool) {
	data, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return false, false, info.Mode()&fs.ModeSymlink != 0
	}

	attrs := data.FileAttributes
	hidden = attrs&windows.FILE_ATTRIBUTE_HIDDEN != 0
	system = attrs&windows.FILE_ATTRIBUTE_SYSTEM != 0
	reparse = attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0
	return hidden, system, reparse
}
