// Package util provides helpers for the host's quoted text format.
package util

import "strings"

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// Unquote turns a host string value into plain text: surrounding space and
// one pair of enclosing quotes are removed and doubled quotes collapsed.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return FixEscapeQuotes(s)
}

// SplitArray splits a host array value such as `[12,0]` or `12,0` into its
// unquoted elements. Nested arrays are not supported.
func SplitArray(s string) []string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		s = s[1 : len(s)-1]
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = Unquote(p)
	}
	return parts
}
