package perf

import (
	"fmt"
	"time"
)

// SpeedKBps converts a byte count over a duration to KB/s. A zero or
// negative duration yields 0.
func SpeedKBps(bytes int64, elapsed time.Duration) float64 {
	ms := float64(elapsed) / float64(time.Millisecond)
	if ms <= 0 || bytes <= 0 {
		return 0
	}
	return BytesToKB(bytes) * 1000 / ms
}

func BytesToKB(bytes int64) float64 {
	return float64(bytes) / 1024
}

func FormatSpeed(kbps float64) string {
	return fmt.Sprintf("%.2f KB/s", kbps)
}

func FormatTime(d time.Duration) string {
	ms := d.Milliseconds()
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%dm %ds", ms/60000, (ms%60000)/1000)
}

func FormatBytes(bytes int64) string {
	const unit = 1024
	switch {
	case bytes < unit:
		return fmt.Sprintf("%d B", bytes)
	case bytes < unit*unit:
		return fmt.Sprintf("%.1f KB", float64(bytes)/unit)
	case bytes < unit*unit*unit:
		return fmt.Sprintf("%.2f MB", float64(bytes)/(unit*unit))
	}
	return fmt.Sprintf("%.2f GB", float64(bytes)/(unit*unit*unit))
}

// Rating grades a speed against the target.
func Rating(kbps, target float64) string {
	switch {
	case kbps >= target:
		return "EXCELLENT"
	case kbps >= target*0.75:
		return "GOOD"
	case kbps >= target*0.5:
		return "FAIR"
	}
	return "POOR"
}

func fmtPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}
