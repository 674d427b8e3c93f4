package format

import (
	"fmt"
	"strings"
	"time"
)

// Duration renders a duration compactly for the dashboard: "5s", "2m 3s",
// "1h 4m 12s". Sub-second durations round down to "0s".
func Duration(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	if secs < 3600 {
		m, s := secs/60, secs%60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	switch {
	case m == 0 && s == 0:
		return fmt.Sprintf("%dh", h)
	case s == 0:
		return fmt.Sprintf("%dh %dm", h, m)
	default:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
}

// Pluralize returns the singular form when count is 1, otherwise the plural
// (singular + "s").
func Pluralize(count int, singular string) string {
	if count == 1 {
		return singular
	}
	return singular + "s"
}

// CountWithPlural formats a count with its correctly pluralized noun,
// e.g. "1 file" or "3 files".
func CountWithPlural(count int, singular string) string {
	return fmt.Sprintf("%d %s", count, Pluralize(count, singular))
}

// Extension extracts the file extension from an output format identifier in
// "extension[-type]" form: "txt" -> "txt", "cwk-spreadsheet" -> "cwk".
func Extension(format string) string {
	ext, _, _ := strings.Cut(format, "-")
	return ext
}
