// Package textutil holds small string helpers shared by log output.
package textutil

import "unicode/utf8"

// ShortID truncates an ID to its first 8 bytes for log output.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Truncate shortens s to at most n bytes plus an ellipsis. The cut is moved
// back to a rune boundary so multi-byte characters are never split.
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
