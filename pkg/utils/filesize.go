package utils

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	B  = 1
	KB = 1024 * B
	MB = 1024 * KB
	GB = 1024 * MB
	TB = 1024 * GB
)

// FormatBytes converts bytes to human-readable binary units
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// ParseSize converts a human-readable size to bytes. Decimal and binary
// suffixes are both treated as powers of 1024, so "100MB" == "100MiB".
func ParseSize(size string) (int64, error) {
	s := strings.TrimSpace(size)
	if s == "" {
		return 0, fmt.Errorf("invalid size format: %q", size)
	}

	// Normalise KB/MB/... to KiB/MiB/... before handing off to humanize
	upper := strings.ToUpper(s)
	for _, unit := range []string{"KB", "MB", "GB", "TB", "PB"} {
		if strings.HasSuffix(upper, unit) && !strings.HasSuffix(upper, "I"+unit[1:]) {
			s = s[:len(s)-2] + unit[:1] + "iB"
			break
		}
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size format: %q: %w", size, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("size out of range: %q", size)
	}
	return int64(n), nil
}

// FormatSizeOrUnknown formats a size, or "unknown" when the value has not been measured
func FormatSizeOrUnknown(bytes int64, known bool) string {
	if !known {
		return "unknown"
	}
	return FormatBytes(bytes)
}
