// Package timeutil provides time formatting utilities for spanview.
//
// All timestamps are stored as Unix nanoseconds (int64) and all span
// durations as nanoseconds. This package turns them into the short
// labels used by the waterfall rows and tick header.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FromNano converts a Unix nanosecond timestamp to time.Time.
func FromNano(ns int64) time.Time {
	return time.Unix(0, ns)
}

// FormatTimestamp formats a Unix nanosecond timestamp as "HH:MM:SS.mmm".
func FormatTimestamp(ns int64) string {
	return FromNano(ns).Format("15:04:05.000")
}

// FormatTimestampFull formats a Unix nanosecond timestamp with date.
// Format: "2006-01-02 15:04:05.000"
func FormatTimestampFull(ns int64) string {
	return FromNano(ns).Format("2006-01-02 15:04:05.000")
}

// FormatDuration formats a nanosecond duration for display.
// Examples: "850ns", "450µs", "12.5ms", "1.2s", "2m 15.3s"
func FormatDuration(ns int64) string {
	switch {
	case ns < 0:
		return "-" + FormatDuration(-ns)
	case ns < int64(time.Microsecond):
		return fmt.Sprintf("%dns", ns)
	case ns < int64(time.Millisecond):
		return trimFloat(float64(ns)/1e3) + "µs"
	case ns < int64(time.Second):
		return trimFloat(float64(ns)/1e6) + "ms"
	case ns < int64(time.Minute):
		return trimFloat(float64(ns)/1e9) + "s"
	}
	seconds := float64(ns) / 1e9
	minutes := int(seconds / 60)
	remaining := seconds - float64(minutes*60)
	return fmt.Sprintf("%dm %.1fs", minutes, remaining)
}

// TickLabels returns numTicks+1 evenly spaced offset labels covering
// [start, end) of a span of total nanoseconds, where start and end are
// fractions of total.
func TickLabels(total int64, start, end float64, numTicks int) []string {
	if numTicks <= 0 {
		return nil
	}
	labels := make([]string, numTicks+1)
	span := end - start
	for i := 0; i <= numTicks; i++ {
		frac := start + span*float64(i)/float64(numTicks)
		labels[i] = FormatDuration(int64(frac * float64(total)))
	}
	return labels
}

// trimFloat prints f with at most one decimal, dropping a trailing ".0".
func trimFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}
