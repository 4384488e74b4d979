package util

import (
	"fmt"
	"time"
)

// Timeify formats d as "HH:MM:SS.t", truncated to tenths of a second.
// Negative durations format as zero.
func Timeify(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	tenths := int64(d / (100 * time.Millisecond))
	seconds := tenths / 10
	return fmt.Sprintf("%02d:%02d:%02d.%d", seconds/3600, seconds%3600/60, seconds%60, tenths%10)
}

// Sizeify converts bytes to a human-readable string (B, KiB, MiB, GiB, TiB).
func Sizeify(size int64) string {
	switch {
	case size >= TiB:
		return fmt.Sprintf("%.2f TiB", float64(size)/float64(TiB))
	case size >= GiB:
		return fmt.Sprintf("%.2f GiB", float64(size)/float64(GiB))
	case size >= MiB:
		return fmt.Sprintf("%.2f MiB", float64(size)/float64(MiB))
	case size >= KiB:
		return fmt.Sprintf("%.2f KiB", float64(size)/float64(KiB))
	default:
		return fmt.Sprintf("%d B", size)
	}
}

// Bitsify formats an entropy estimate, e.g. "64.16 bits".
func Bitsify(bits float64) string {
	return fmt.Sprintf("%.2f bits", bits)
}
