package contacts

import "strings"

// Normalize reduces a phone number to its digits so that formatting
// variants of one number ("+1 (555) 123-4567", "15551234567") share a
// directory key. Short codes pass through unchanged apart from the
// stripping.
func Normalize(number string) string {
	var b strings.Builder
	b.Grow(len(number))
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
