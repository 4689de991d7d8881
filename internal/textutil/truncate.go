package textutil

import "strings"

const ellipsis = "..."

// Truncate keeps at most limit runes of s and appends an ellipsis when anything was cut.
// The input is not trimmed, so the kept prefix is exactly min(len(runes), limit) runes long.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	return Truncate(strings.TrimSpace(s), limit)
}
