package core

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents decomposes s and drops combining marks: "Pôle" -> "Pole".
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// foldValue lowercases, strips accents and trims.
func foldValue(s string) string {
	return strings.TrimSpace(strings.ToLower(stripAccents(s)))
}

// NormalizeHeader reduces a header to its lookup form: lowercase, no
// accents, runs of anything but letters and digits collapsed to one space.
func NormalizeHeader(h string) string {
	h = foldValue(h)

	var b strings.Builder
	b.Grow(len(h))
	space := false
	for _, r := range h {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// MapHeaders maps every header to a canonical field or to a pass-through
// label. The mapping is total: it never fails and never drops a column.
// When two headers resolve to the same field the first one keeps it and
// the later ones pass through.
func (v *Vocabulary) MapHeaders(headers []string) HeaderMapping {
	m := HeaderMapping{Columns: make([]Column, len(headers))}
	usedFields := make(map[CanonicalField]bool)
	usedLabels := make(map[string]bool)

	for i, h := range headers {
		h = strings.TrimSpace(h)
		col := Column{Index: i, Header: h}

		if f, ok := v.Lookup(h); ok && !usedFields[f] {
			usedFields[f] = true
			col.Field = f
			col.Label = string(f)
			usedLabels[col.Label] = true
			m.Columns[i] = col
			continue
		}

		col.Label = uniqueLabel(passThroughLabel(h, i), usedLabels)
		usedLabels[col.Label] = true
		m.Columns[i] = col
	}
	return m
}

func passThroughLabel(header string, index int) string {
	label := NormalizeHeader(header)
	if label == "" {
		return fmt.Sprintf("column_%d", index+1)
	}
	return strings.ReplaceAll(label, " ", "_")
}

// uniqueLabel suffixes label until it clashes with neither a used label
// nor a canonical field name.
func uniqueLabel(label string, used map[string]bool) string {
	taken := func(l string) bool { return used[l] || IsCanonical(CanonicalField(l)) }
	if !taken(label) {
		return label
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", label, n)
		if !taken(candidate) {
			return candidate
		}
	}
}
