// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize canonicalizes free-text titles and artists into the
// comparable form the matcher keys on.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFKD and drops combining marks, so "Beyoncé"
// and "Beyonce" normalize to the same key.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// featMarkers cut featuring/versus annotations and everything after
// them. Matched as standalone words after punctuation is stripped, so
// words that merely contain one ("withers") survive.
var featMarkers = map[string]bool{
	"feat":      true,
	"featuring": true,
	"ft":        true,
	"with":      true,
	"vs":        true,
	"&":         true,
}

// Normalize lowercases text, strips diacritics, removes parenthetical
// and featuring annotations, drops punctuation, and collapses
// whitespace. It is pure, deterministic, and idempotent. Empty or
// whitespace-only input returns "", which callers must treat as
// "cannot match on this field".
func Normalize(text string) string {
	s, _, err := transform.String(stripMarks, text)
	if err != nil {
		s = text
	}
	s = strings.ToLower(s)
	s = stripBrackets(s)
	s = stripSymbols(s)
	s = cutFeaturing(s)
	s = strings.ReplaceAll(s, "&", " ")
	return strings.Join(strings.Fields(s), " ")
}

// stripBrackets removes matched (...) and [...] groups, which carry
// remix/version annotations rather than identity.
func stripBrackets(s string) string {
	for _, pair := range [2][2]string{{"(", ")"}, {"[", "]"}} {
		for {
			start := strings.Index(s, pair[0])
			if start == -1 {
				break
			}
			off := strings.Index(s[start:], pair[1])
			if off == -1 {
				break
			}
			s = s[:start] + " " + s[start+off+1:]
		}
	}
	return s
}

// stripSymbols keeps letters, digits, spaces, and '&'. The ampersand
// survives this pass so cutFeaturing can treat it as a marker.
func stripSymbols(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '&' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// cutFeaturing truncates at the earliest featuring marker. The marker
// must stand alone with content on both sides.
func cutFeaturing(s string) string {
	fields := strings.Fields(s)
	for i := 1; i < len(fields)-1; i++ {
		if featMarkers[fields[i]] {
			return strings.Join(fields[:i], " ")
		}
	}
	return s
}
