package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		delim rune
		want  []string
	}{
		{"simple", "a;b;c", ';', []string{"a", "b", "c"}},
		{"trims fields", " a ; b ;c ", ';', []string{"a", "b", "c"}},
		{"empty fields kept", "a;;c;", ';', []string{"a", "", "c", ""}},
		{"quoted delimiter", `"1, rue Haute",Lyon,69001`, ',', []string{"1, rue Haute", "Lyon", "69001"}},
		{"escaped quote", `"Le ""Central""";x;y`, ';', []string{`Le "Central"`, "x", "y"}},
		{"space before quote", `a, "b, c", d`, ',', []string{"a", "b, c", "d"}},
		{"tab keeps empty cells", "a\t\tc", '\t', []string{"a", "", "c"}},
		{"stray quote is literal", `L"Orée;b;c`, ';', []string{`L"Orée`, "b", "c"}},
		{"whitespace only", "   \t ", ';', nil},
		{"empty", "", ',', nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLine(tt.line, tt.delim))
		})
	}
}

// A line built from n fields, quoting those that hold the delimiter or a
// quote, splits back into n fields.
func TestSplitLine_FieldCount(t *testing.T) {
	fields := []string{"Clinique Pasteur", "1; rue X", `dit "le grand"`, "", "Toulouse"}
	for _, delim := range []rune{',', ';', '\t'} {
		for n := 1; n <= len(fields); n++ {
			parts := make([]string, n)
			for i, f := range fields[:n] {
				if strings.ContainsRune(f, delim) || strings.Contains(f, `"`) {
					f = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
				}
				parts[i] = f
			}
			line := strings.Join(parts, string(delim))
			if strings.TrimSpace(line) == "" {
				continue
			}
			assert.Len(t, SplitLine(line, delim), n, "delim %q, line %q", delim, line)
		}
	}
}
