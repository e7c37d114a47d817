package utils

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fenilsonani/dataguard/internal/ui/styles"
)

const (
	// MinTerminalWidth is the minimum recommended terminal width
	MinTerminalWidth = 80
	// MinTerminalHeight is the minimum recommended terminal height
	MinTerminalHeight = 24

	// lines taken by title, column header, help footer and status bar
	reservedLines = 10
	minPageSize   = 5
)

// TruncatePath shortens path to maxWidth bytes. The file name is kept whole when
// it fits; directories are dropped from the middle, keeping the first and last.
func TruncatePath(path string, maxWidth int) string {
	if len(path) <= maxWidth {
		return path
	}
	if maxWidth < 10 {
		return "..."
	}

	dir, file := filepath.Split(path)
	if len(file) > maxWidth-4 {
		return "..." + file[len(file)-(maxWidth-4):]
	}

	sep := string(filepath.Separator)
	budget := maxWidth - len(file) - 3
	if budget < 10 {
		return "..." + sep + file
	}

	parts := strings.Split(strings.Trim(filepath.Clean(dir), sep), sep)
	first, last := sep+parts[0], parts[len(parts)-1]
	if len(parts) > 2 && len(first)+len(last)+5 <= budget {
		return first + sep + "..." + sep + last + sep + file
	}
	return "..." + sep + last + sep + file
}

// CalculatePageSize returns how many list rows fit in a terminal of the given height
func CalculatePageSize(terminalHeight int) int {
	return max(terminalHeight-reservedLines, minPageSize)
}

// IsTerminalTooSmall checks if the terminal is below minimum recommended size
func IsTerminalTooSmall(width, height int) bool {
	return width < MinTerminalWidth || height < MinTerminalHeight
}

// GetSizeWarningBanner returns a warning banner if terminal is too small
func GetSizeWarningBanner(width, height int) string {
	if !IsTerminalTooSmall(width, height) {
		return ""
	}

	warning := fmt.Sprintf("⚠️  Terminal too small! Recommended: %dx%d or larger", MinTerminalWidth, MinTerminalHeight)
	if width > 0 && height > 0 {
		warning += styles.DimStyle.Render(" (current: ") +
			styles.WarningStyle.Render(fmt.Sprintf("%dx%d", width, height)) +
			styles.DimStyle.Render(")")
	}
	return styles.WarningStyle.Render(warning) + "\n\n"
}

// TruncateString truncates a string to maxLen, adding ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}

// TruncateMiddle keeps the start and end of s, replacing the middle with "..."
func TruncateMiddle(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 10 {
		return TruncateString(s, maxLen)
	}
	side := (maxLen - 3) / 2
	return s[:side] + "..." + s[len(s)-side:]
}
