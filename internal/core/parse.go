package core

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Parse reads a file into a table according to its format.
func (v *Vocabulary) Parse(file RawFile) (ParsedTable, error) {
	switch file.Format() {
	case FormatDelimited:
		return v.ParseDelimited(file.Name, NormalizeEncoding(file.Data), false)
	case FormatDelimitedTab:
		return v.ParseDelimited(file.Name, NormalizeEncoding(file.Data), true)
	case FormatRecords:
		return v.ParseRecords(file.Name, file.Data)
	default:
		return ParsedTable{}, &StructuralError{File: file.Name, Err: ErrUnsupportedFormat}
	}
}

// ParseDelimited splits already-decoded text. The first non-blank line is
// the header and fixes the delimiter for the whole file.
func (v *Vocabulary) ParseDelimited(name, text string, favorTab bool) (ParsedTable, error) {
	header := firstLine(text)
	if header == "" {
		return ParsedTable{}, &StructuralError{File: name, Err: ErrEmptyFile}
	}

	delim := InferDelimiter(header, favorTab)
	r := newRecordReader(text, delim)

	var headers []string
	for headers == nil {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return ParsedTable{}, &StructuralError{File: name, Err: ErrEmptyFile}
		}
		if err != nil {
			return ParsedTable{}, &StructuralError{File: name, Err: ErrMalformedRecords, Detail: err.Error()}
		}
		if rec = trimFields(rec); !blankRow(rec) {
			headers = rec
		}
	}

	if n := distinctHeaders(headers); n < minColumns {
		return ParsedTable{}, &StructuralError{
			File:   name,
			Err:    ErrTooFewColumns,
			Detail: fmt.Sprintf("found %d with delimiter %q, need at least %d", n, delim, minColumns),
		}
	}

	table := ParsedTable{Mapping: v.MapHeaders(headers), Delimiter: delim}
	width := len(headers)

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				table.RowErrors = append(table.RowErrors, RowError{Line: pe.Line, Reason: pe.Err.Error()})
				continue
			}
			return ParsedTable{}, &StructuralError{File: name, Err: ErrMalformedRecords, Detail: err.Error()}
		}

		line, _ := r.FieldPos(0)
		rec = trimFields(rec)
		if blankRow(rec) {
			continue
		}
		rec = dropTrailingEmpty(rec, width)
		if len(rec) != width {
			table.RowErrors = append(table.RowErrors, RowError{
				Line:   line,
				Reason: fmt.Sprintf("row has %d fields, expected %d", len(rec), width),
			})
			continue
		}
		table.Rows = append(table.Rows, ParsedRow{Line: line, Values: rec})
	}

	return table, nil
}

// dropTrailingEmpty removes empty cells past width, as left by spreadsheet
// exports that pad rows.
func dropTrailingEmpty(rec []string, width int) []string {
	for len(rec) > width && rec[len(rec)-1] == "" {
		rec = rec[:len(rec)-1]
	}
	return rec
}

func distinctHeaders(headers []string) int {
	seen := make(map[string]bool)
	for _, h := range headers {
		if key := NormalizeHeader(h); key != "" {
			seen[key] = true
		}
	}
	return len(seen)
}

// ParseRecords reads a JSON array of flat objects. Keys go through header
// canonicalization; values are kept as text. No encoding repair is done
// beyond dropping a leading BOM.
func (v *Vocabulary) ParseRecords(name string, data []byte) (ParsedTable, error) {
	data = bytes.TrimPrefix(data, []byte(byteOrderMark))
	if len(bytes.TrimSpace(data)) == 0 {
		return ParsedTable{}, &StructuralError{File: name, Err: ErrEmptyFile}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var objects []map[string]any
	if err := dec.Decode(&objects); err != nil {
		return ParsedTable{}, &StructuralError{File: name, Err: ErrMalformedRecords, Detail: err.Error()}
	}

	keySet := make(map[string]bool)
	for _, obj := range objects {
		for k := range obj {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := ParsedTable{Mapping: v.MapHeaders(keys)}
	for i, obj := range objects {
		values := make([]string, len(keys))
		for j, k := range keys {
			values[j] = strings.TrimSpace(stringify(obj[k]))
		}
		if blankRow(values) {
			continue
		}
		table.Rows = append(table.Rows, ParsedRow{Line: i + 1, Values: values})
	}
	return table, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
