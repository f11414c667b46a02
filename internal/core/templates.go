package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TableMatchThreshold is the share of a table's fields a header row must
// cover before MatchTables suggests the table.
const TableMatchThreshold = 0.5

// TableMatch is a table whose fields a file's headers cover.
type TableMatch struct {
	Table      TableInfo `json:"table"`
	MatchScore float64   `json:"matchScore"`
}

// HeaderTemplate returns the header row of an empty import file for def:
// one column per table field, spelled as the vocabulary spells it first.
func (v *Vocabulary) HeaderTemplate(def TableDefinition) []string {
	title := cases.Title(language.French)
	headers := make([]string, 0, len(def.Fields))
	for _, f := range def.Fields {
		headers = append(headers, title.String(v.Spelling(f)))
	}
	return headers
}

// WriteTemplate writes the header template of def as one delimited line.
func (v *Vocabulary) WriteTemplate(w io.Writer, def TableDefinition, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write(v.HeaderTemplate(def)); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// MatchTables ranks the registered tables by how many of their fields the
// headers map to. Tables under TableMatchThreshold are left out.
func (v *Vocabulary) MatchTables(headers []string) []TableMatch {
	mapped := make(map[CanonicalField]bool)
	for _, c := range v.MapHeaders(headers).Columns {
		if c.Field != "" {
			mapped[c.Field] = true
		}
	}

	var matches []TableMatch
	for _, def := range All() {
		if score := fieldCoverage(mapped, def.Fields); score >= TableMatchThreshold {
			matches = append(matches, TableMatch{Table: def.Info, MatchScore: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches
}

func fieldCoverage(mapped map[CanonicalField]bool, fields []CanonicalField) float64 {
	if len(fields) == 0 {
		return 0
	}
	matched := 0
	for _, f := range fields {
		if mapped[f] {
			matched++
		}
	}
	return float64(matched) / float64(len(fields))
}
