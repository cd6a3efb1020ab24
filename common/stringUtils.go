package common

import "strings"

// IsNilOrEmpty returns whether a *string is nil or, after trimming, empty.
func IsNilOrEmpty(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// IsEmpty returns whether a string is empty after trimming.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}
