// Package validation provides strict input validators for values that cross
// trust boundaries on their way into the kernel packet filter.
package validation

import (
	"fmt"
	"regexp"
)

// Valid nftables set/table identifier: alphanumeric, dash, underscore.
var setNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsIPv4 reports whether s is a strict dotted-quad IPv4 address: exactly four
// numeric segments separated by dots, each parsing to an integer in [0,255].
// No whitespace, signs, hex, or empty segments are tolerated. The user store
// is a trust boundary; a corrupted row must never reach the filter unvalidated.
func IsIPv4(s string) bool {
	seg := 0
	segLen := 0
	segVal := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			segLen++
			if segLen > 3 {
				return false
			}
			segVal = segVal*10 + int(c-'0')
			if segVal > 255 {
				return false
			}
		case c == '.':
			if segLen == 0 {
				return false
			}
			seg++
			if seg > 3 {
				return false
			}
			segLen = 0
			segVal = 0
		default:
			return false
		}
	}

	return seg == 3 && segLen > 0
}

// ValidateSetName validates an nftables set or table identifier.
func ValidateSetName(name string) error {
	if name == "" {
		return fmt.Errorf("set name cannot be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("set name too long (max 255 characters)")
	}
	if !setNameRegex.MatchString(name) {
		return fmt.Errorf("invalid set name: %s (must be alphanumeric with -_)", name)
	}
	return nil
}
