package common

import "strings"

// ContainsFold reports whether sub is a case-insensitive substring of s.
// An empty sub is contained in every string.
func ContainsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// CompositeKey builds a case-sensitive composite key from parts.
func CompositeKey(parts ...string) string {
	return strings.Join(parts, "\x00")
}
