// Package scan turns a continuous decode stream into discrete accepted scans.
package scan

import "strings"

// DefaultLabel is the textual prefix printed in front of product identifiers.
const DefaultLabel = "identifier:"

// ParsePayload strips label and surrounding whitespace from a decoded string and
// returns the product identifier. The label match is case-insensitive and optional.
func ParsePayload(raw, label string) (string, bool) {
	s := strings.TrimSpace(raw)
	if label != "" && len(s) >= len(label) && strings.EqualFold(s[:len(label)], label) {
		s = strings.TrimSpace(s[len(label):])
	}
	return s, s != ""
}
