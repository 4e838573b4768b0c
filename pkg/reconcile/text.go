package reconcile

import (
	"strings"
	"unicode"
)

// ResolveQuantity joins the corner fragments of a cell and keeps only the
// digits. A cell without digits holds a single item.
func ResolveQuantity(frags []Fragment) string {
	var b strings.Builder
	for _, f := range frags {
		for _, r := range f.Text {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
	}
	if b.Len() == 0 {
		return "1"
	}
	return b.String()
}

// Currency and trademark glyphs the recognizer tends to produce for the
// game's stylised capitals.
var glyphs = map[rune]string{
	'£': "E",
	'$': "S",
	'€': "E",
	'¥': "Y",
	'§': "S",
	'©': "C",
	'®': "R",
	'™': "TM",
	'¡': "i",
}

// NormalizeText maps look-alike glyphs to letters and drops everything that
// is not a letter, digit or space.
func NormalizeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if g, ok := glyphs[r]; ok {
			b.WriteString(g)
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CombineText normalizes a cell's name fragments and joins them with single
// spaces.
func CombineText(frags []Fragment) string {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		if n := NormalizeText(f.Text); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
