// Package sms segments outbound message bodies into carrier-compliant
// parts, mirroring the concatenated-SMS reference limits.
package sms

import (
	"errors"
	"unicode/utf16"
)

// ErrEmptyMessage rejects a send attempted with a blank body before any
// transport call is made.
var ErrEmptyMessage = errors.New("empty message")

// Segment limits. A body fitting the single-segment limit ships as one
// part; longer bodies pay the concatenation header on every part.
const (
	gsm7SingleLimit = 160
	gsm7MultiLimit  = 153
	ucs2SingleLimit = 70
	ucs2MultiLimit  = 67
)

// Split segments a body into one or more transport-sized parts.
// Concatenating the parts in order reproduces the body exactly, and no
// part ever splits a code point: parts always break on rune boundaries,
// and a two-septet extension character never straddles two parts.
func Split(body string) ([]string, error) {
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if fitsGSM7(body) {
		return splitByCost(body, gsm7Cost, gsm7SingleLimit, gsm7MultiLimit), nil
	}
	return splitByCost(body, ucs2Cost, ucs2SingleLimit, ucs2MultiLimit), nil
}

func gsm7Cost(r rune) int {
	cost, _ := septetCost(r)
	return cost
}

// ucs2Cost counts UTF-16 code units; astral-plane runes cost a surrogate
// pair and must land whole in one part.
func ucs2Cost(r rune) int {
	return len(utf16.Encode([]rune{r}))
}

func splitByCost(body string, cost func(rune) int, singleLimit, multiLimit int) []string {
	total := 0
	for _, r := range body {
		total += cost(r)
	}
	if total <= singleLimit {
		return []string{body}
	}

	var parts []string
	start := 0 // byte offset of the current part
	used := 0  // cost consumed in the current part
	for i, r := range body {
		c := cost(r)
		if used+c > multiLimit {
			parts = append(parts, body[start:i])
			start = i
			used = 0
		}
		used += c
	}
	if start < len(body) {
		parts = append(parts, body[start:])
	}
	return parts
}
