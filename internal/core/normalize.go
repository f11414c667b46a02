package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TwoDigitYearPivot: two-digit years landing more than this many years in
// the future are moved back a century.
var TwoDigitYearPivot = 20

// Day-first layouts; the data comes from French exports.
var (
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "20060102",
		"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006", "02.01.2006", "2.1.2006",
		"2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05",
		"2 Jan 2006", "Jan 2, 2006",
	}
	twoDigitYearLayouts = []string{
		"02/01/06", "2/1/06", "02-01-06", "02.01.06",
	}
)

var (
	spaceRun      = regexp.MustCompile(`\s+`)
	commaSpacing  = regexp.MustCompile(`\s*,\s*`)
	hyphenSpacing = regexp.MustCompile(`\s*-\s*`)
	polePrefix    = regexp.MustCompile(`(?i)^p[oô]le\b[\s\-:_]*`)
	timeOfDay     = regexp.MustCompile(`^(\d{1,2})\s*[hH:.]\s*(\d{2})?(?::\d{2})?$`)
)

// NormalizeValue applies field's rule to raw. It never panics. The only
// error is an unparseable date or time, returned with the trimmed input.
func (v *Vocabulary) NormalizeValue(field CanonicalField, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}

	switch field.Rule() {
	case RulePole:
		return strings.TrimSpace(polePrefix.ReplaceAllString(s, "")), nil
	case RuleType:
		return v.normalizeType(s), nil
	case RuleProperNoun:
		return titleCase(s), nil
	case RulePostalCode:
		return digitsOnly(s), nil
	case RulePhone:
		return normalizePhone(s), nil
	case RuleEmail:
		return strings.Trim(strings.ToLower(s), "\"'<>"), nil
	case RuleAddress:
		return normalizeAddress(s), nil
	case RuleUpper:
		return strings.ToUpper(spaceRun.ReplaceAllString(s, " ")), nil
	case RuleDate:
		return normalizeDate(s)
	case RuleTime:
		return normalizeTime(s)
	default:
		return spaceRun.ReplaceAllString(s, " "), nil
	}
}

func (v *Vocabulary) normalizeType(s string) string {
	folded := foldValue(s)
	for _, k := range v.keywords {
		if strings.Contains(folded, k.Keyword) {
			return k.Value
		}
	}
	return titleCase(s)
}

// titleCase capitalizes the first letter of each space-separated word and
// lowercases the rest. Hyphens and apostrophes do not start a word.
func titleCase(s string) string {
	upper, lower := cases.Upper(language.French), cases.Lower(language.French)
	words := strings.Fields(s)
	for i, w := range words {
		_, size := utf8.DecodeRuneInString(w)
		words[i] = upper.String(w[:size]) + lower.String(w[size:])
	}
	return strings.Join(words, " ")
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// normalizePhone keeps digits and formats ten-digit national numbers as
// 01.23.45.67.89. A +33 prefix is folded to the national form first.
func normalizePhone(s string) string {
	d := digitsOnly(s)
	if len(d) == 11 && strings.HasPrefix(d, "33") {
		d = "0" + d[2:]
	}
	if len(d) != 10 {
		return d
	}
	return d[0:2] + "." + d[2:4] + "." + d[4:6] + "." + d[6:8] + "." + d[8:10]
}

func normalizeAddress(s string) string {
	s = spaceRun.ReplaceAllString(s, " ")
	s = commaSpacing.ReplaceAllString(s, ", ")
	s = hyphenSpacing.ReplaceAllString(s, "-")
	return strings.Trim(s, " ,")
}

func normalizeDate(s string) (string, error) {
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t.Format("2006-01-02"), nil
		}
	}

	return s, fmt.Errorf("invalid date %q", s)
}

func normalizeTime(s string) (string, error) {
	m := timeOfDay.FindStringSubmatch(s)
	if m == nil {
		return s, fmt.Errorf("invalid time %q", s)
	}
	h, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if h > 23 || minute > 59 {
		return s, fmt.Errorf("invalid time %q", s)
	}
	return fmt.Sprintf("%02d:%02d", h, minute), nil
}

// Records turns parsed rows into canonical records. A row with a value
// that cannot be normalized is reported and left out.
func (v *Vocabulary) Records(t ParsedTable) ([]CanonicalRecord, []RowError) {
	records := make([]CanonicalRecord, 0, len(t.Rows))
	var rowErrs []RowError

rows:
	for _, row := range t.Rows {
		rec := CanonicalRecord{
			Line:   row.Line,
			Fields: make(map[CanonicalField]string),
			Extra:  make(map[string]string),
		}
		for _, col := range t.Mapping.Columns {
			if col.Index >= len(row.Values) {
				continue
			}
			raw := row.Values[col.Index]
			if raw == "" {
				continue
			}
			if col.Field == "" {
				rec.Extra[col.Label] = raw
				continue
			}
			val, err := v.NormalizeValue(col.Field, raw)
			if err != nil {
				rowErrs = append(rowErrs, RowError{Line: row.Line, Reason: fmt.Sprintf("%s: %v", col.Header, err)})
				continue rows
			}
			if val != "" {
				rec.Fields[col.Field] = val
			}
		}
		records = append(records, rec)
	}
	return records, rowErrs
}
