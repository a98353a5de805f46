// Package util holds string helpers for arguments received from the host.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArgs strips the host's string quoting from every argument in place
// and returns the slice.
func CleanArgs(data []string) []string {
	for i, v := range data {
		data[i] = FixEscapeQuotes(TrimQuotes(v))
	}
	return data
}
