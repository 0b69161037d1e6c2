package sizeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
)

var sizePattern = regexp.MustCompile(`^([\d.]+)\s*(B|KB|MB|GB|K|M|G)?$`)

var multipliers = map[string]int64{
	"B":  1,
	"K":  KB,
	"KB": KB,
	"M":  MB,
	"MB": MB,
	"G":  GB,
	"GB": GB,
}

// ParseSize converts a human-readable size string like "5MB", "800KB" or
// "1.5GB" to a byte count. Unit matching is case-insensitive; a missing unit
// means bytes.
func ParseSize(s string) (int64, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	m := sizePattern.FindStringSubmatch(norm)
	if m == nil {
		return 0, fmt.Errorf("invalid size format %q: use formats like 5MB, 800KB, 1.5GB", s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", m[1], err)
	}
	unit := m[2]
	if unit == "" {
		unit = "B"
	}
	return int64(value * float64(multipliers[unit])), nil
}

// FormatSize renders a byte count as a human-readable string.
func FormatSize(n int64) string {
	switch {
	case n < KB:
		return fmt.Sprintf("%d B", n)
	case n < MB:
		return fmt.Sprintf("%.1f KB", float64(n)/KB)
	case n < GB:
		return fmt.Sprintf("%.2f MB", float64(n)/MB)
	default:
		return fmt.Sprintf("%.2f GB", float64(n)/GB)
	}
}

// CompressionRatio returns the fraction of bytes removed, e.g. 0.65 means a
// 65% reduction. Zero when the original size is zero.
func CompressionRatio(originalSize, compressedSize int64) float64 {
	if originalSize == 0 {
		return 0
	}
	return 1 - float64(compressedSize)/float64(originalSize)
}
