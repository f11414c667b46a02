package core

import "strings"

type delimiterCounts struct {
	tab, semicolon, comma int
}

// delimiterRules is evaluated top to bottom; the first rule that holds
// picks the delimiter. The last rule always holds.
var delimiterRules = []struct {
	name  string
	delim rune
	when  func(c delimiterCounts, favorTab bool) bool
}{
	{"tab dominant", '\t', func(c delimiterCounts, _ bool) bool {
		return c.tab > 0 && c.tab >= c.semicolon && c.tab >= c.comma
	}},
	{"semicolon dominant", ';', func(c delimiterCounts, _ bool) bool {
		return c.semicolon > 0 && c.semicolon >= c.comma
	}},
	{"tab favored by file type", '\t', func(c delimiterCounts, favorTab bool) bool {
		return favorTab && c.comma == 0
	}},
	{"comma", ',', func(delimiterCounts, bool) bool { return true }},
}

// InferDelimiter picks the field delimiter from a file's header line.
// favorTab is set for file types that are tab-separated by convention.
func InferDelimiter(headerLine string, favorTab bool) rune {
	c := delimiterCounts{
		tab:       strings.Count(headerLine, "\t"),
		semicolon: strings.Count(headerLine, ";"),
		comma:     strings.Count(headerLine, ","),
	}
	for _, rule := range delimiterRules {
		if rule.when(c, favorTab) {
			return rule.delim
		}
	}
	return ','
}

// firstLine returns the first line of text that is not blank.
func firstLine(text string) string {
	for len(text) > 0 {
		line := text
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			line, text = text[:i], text[i+1:]
		} else {
			text = ""
		}
		if strings.TrimSpace(line) != "" {
			return strings.TrimRight(line, "\r")
		}
	}
	return ""
}
