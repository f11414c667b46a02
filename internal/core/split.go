package core

import (
	"encoding/csv"
	"strings"
)

// newRecordReader returns a csv.Reader tuned for hand-made exports:
// quotes are lenient and rows may vary in length.
func newRecordReader(text string, delim rune) *csv.Reader {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	// Leading blanks before an opening quote are common; trimming them is
	// only safe when the delimiter is not itself whitespace.
	r.TrimLeadingSpace = delim != '\t'
	return r
}

// SplitLine splits one line on delim. Quoted fields may hold the
// delimiter, and a doubled quote inside quotes stands for one quote. Each
// field is trimmed. A blank line yields nil.
func SplitLine(line string, delim rune) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	fields, err := newRecordReader(line, delim).Read()
	if err != nil {
		return nil
	}
	return trimFields(fields)
}

func trimFields(fields []string) []string {
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

func blankRow(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}
