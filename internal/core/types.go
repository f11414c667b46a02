package core

import (
	"path/filepath"
	"strings"
	"time"
)

// CanonicalField is one entry of the closed field vocabulary.
type CanonicalField string

const (
	FieldID                CanonicalField = "id"
	FieldName              CanonicalField = "name"
	FieldType              CanonicalField = "type"
	FieldAddress           CanonicalField = "address"
	FieldAddressComplement CanonicalField = "addressComplement"
	FieldCity              CanonicalField = "city"
	FieldPostalCode        CanonicalField = "postalCode"
	FieldCountry           CanonicalField = "country"
	FieldPhone             CanonicalField = "phone"
	FieldEmail             CanonicalField = "email"
	FieldStatus            CanonicalField = "status"
	FieldTour              CanonicalField = "tour"
	FieldPole              CanonicalField = "pole"
	FieldHours             CanonicalField = "hours"
	FieldOpeningTime       CanonicalField = "openingTime"
	FieldClosingTime       CanonicalField = "closingTime"
	FieldFirstName         CanonicalField = "firstName"
	FieldLastName          CanonicalField = "lastName"
	FieldRole              CanonicalField = "role"
	FieldLicensePlate      CanonicalField = "licensePlate"
	FieldBrand             CanonicalField = "brand"
	FieldModel             CanonicalField = "model"
	FieldInspectionDate    CanonicalField = "inspectionDate"
	FieldComment           CanonicalField = "comment"
)

// FieldRule selects the value normalization applied to a field.
type FieldRule int

const (
	RuleText FieldRule = iota
	RulePole
	RuleType
	RuleProperNoun
	RulePostalCode
	RulePhone
	RuleEmail
	RuleAddress
	RuleUpper
	RuleDate
	RuleTime
)

// fieldRules is the closed vocabulary with each field's rule.
var fieldRules = map[CanonicalField]FieldRule{
	FieldID:                RuleText,
	FieldName:              RuleProperNoun,
	FieldType:              RuleType,
	FieldAddress:           RuleAddress,
	FieldAddressComplement: RuleAddress,
	FieldCity:              RuleProperNoun,
	FieldPostalCode:        RulePostalCode,
	FieldCountry:           RuleProperNoun,
	FieldPhone:             RulePhone,
	FieldEmail:             RuleEmail,
	FieldStatus:            RuleText,
	FieldTour:              RuleText,
	FieldPole:              RulePole,
	FieldHours:             RuleText,
	FieldOpeningTime:       RuleTime,
	FieldClosingTime:       RuleTime,
	FieldFirstName:         RuleProperNoun,
	FieldLastName:          RuleProperNoun,
	FieldRole:              RuleText,
	FieldLicensePlate:      RuleUpper,
	FieldBrand:             RuleText,
	FieldModel:             RuleText,
	FieldInspectionDate:    RuleDate,
	FieldComment:           RuleText,
}

// IsCanonical reports whether f belongs to the vocabulary.
func IsCanonical(f CanonicalField) bool {
	_, ok := fieldRules[f]
	return ok
}

// Rule returns the normalization rule of f. Unknown fields are plain text.
func (f CanonicalField) Rule() FieldRule {
	return fieldRules[f]
}

// Format is how a file's content is structured.
type Format int

const (
	FormatUnknown Format = iota
	FormatDelimited
	FormatDelimitedTab
	FormatRecords
)

func (f Format) String() string {
	switch f {
	case FormatDelimited:
		return "delimited"
	case FormatDelimitedTab:
		return "delimited-tab"
	case FormatRecords:
		return "records"
	default:
		return "unknown"
	}
}

// FormatForName picks the format from a file name's extension.
func FormatForName(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatDelimited
	case ".txt", ".tsv":
		return FormatDelimitedTab
	case ".json":
		return FormatRecords
	default:
		return FormatUnknown
	}
}

// RawFile is an uploaded file: its name and undecoded bytes.
type RawFile struct {
	Name string
	Data []byte
}

// Format returns the format implied by the file name.
func (f RawFile) Format() Format { return FormatForName(f.Name) }

// Column is one input column and what it maps to.
type Column struct {
	Index  int            `json:"index"`
	Header string         `json:"header"`
	Field  CanonicalField `json:"field,omitempty"` // empty for pass-through
	Label  string         `json:"label"`
}

// HeaderMapping maps every input column to a canonical field or a
// pass-through label.
type HeaderMapping struct {
	Columns []Column `json:"columns"`
}

// Width is the number of input columns.
func (m HeaderMapping) Width() int { return len(m.Columns) }

// Column returns the column mapped to f.
func (m HeaderMapping) Column(f CanonicalField) (Column, bool) {
	for _, c := range m.Columns {
		if c.Field == f {
			return c, true
		}
	}
	return Column{}, false
}

// ParsedRow is one data row: its source line and raw field values.
type ParsedRow struct {
	Line   int
	Values []string
}

// ParsedTable is a file after splitting and header mapping.
type ParsedTable struct {
	Mapping   HeaderMapping
	Rows      []ParsedRow
	Delimiter rune
	RowErrors []RowError
}

// CanonicalRecord is a row keyed by canonical field, plus pass-through
// columns under their labels.
type CanonicalRecord struct {
	Line   int
	Fields map[CanonicalField]string
	Extra  map[string]string
}

// Get returns the value of f, or "" when absent.
func (r CanonicalRecord) Get(f CanonicalField) string { return r.Fields[f] }

// Entity is a document already in the store.
type Entity struct {
	ID     string
	Fields map[CanonicalField]string
	Extra  map[string]string
}

// DecisionKind is the reconciliation outcome for one record.
type DecisionKind int

const (
	DecisionInsert DecisionKind = iota
	DecisionUpdate
	DecisionSkipUnchanged
	DecisionSkipDuplicateCollision
	DecisionReject
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionInsert:
		return "insert"
	case DecisionUpdate:
		return "update"
	case DecisionSkipUnchanged:
		return "skip-unchanged"
	case DecisionSkipDuplicateCollision:
		return "skip-duplicate"
	case DecisionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Decision is what to do with one record. Entity is set for updates and
// skips; EntityID is empty for inserts without a source id.
type Decision struct {
	Kind      DecisionKind
	Record    CanonicalRecord
	EntityID  string
	Entity    *Entity
	Changed   []CanonicalField
	MatchedBy string
}

// Options are the per-run import options.
type Options struct {
	ClearTarget     bool           `json:"clearTarget"`
	AllowUpdates    bool           `json:"allowUpdates"`
	IdentifierField CanonicalField `json:"identifierField"`
}

// RowError is a row the run skipped and why.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// TableResult summarizes one file imported into one table.
type TableResult struct {
	Table      string        `json:"table"`
	File       string        `json:"file,omitempty"`
	Inserted   int           `json:"inserted"`
	Updated    int           `json:"updated"`
	Unchanged  int           `json:"unchanged"`
	Collisions int           `json:"collisions"`
	Rejected   int           `json:"rejected"`
	Cleared    int           `json:"cleared"`
	Commits    int           `json:"commits"`
	RowErrors  []RowError    `json:"rowErrors,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`

	err error
}

// Skipped is the number of records matched to an entity and not written.
func (r TableResult) Skipped() int { return r.Unchanged + r.Collisions }

// Failed reports whether the file hit a structural or commit error.
func (r TableResult) Failed() bool { return r.Error != "" }

// Err returns the error that failed the file, or nil.
func (r TableResult) Err() error { return r.err }

// merge adds o's counts into r.
func (r *TableResult) merge(o TableResult) {
	r.Inserted += o.Inserted
	r.Updated += o.Updated
	r.Unchanged += o.Unchanged
	r.Collisions += o.Collisions
	r.Rejected += o.Rejected
	r.Cleared += o.Cleared
	r.Commits += o.Commits
	r.RowErrors = append(r.RowErrors, o.RowErrors...)
	r.Duration += o.Duration
	if r.err == nil {
		r.err = o.err
	}
	if o.Error != "" {
		if r.Error != "" {
			r.Error += "; "
		}
		r.Error += o.Error
	}
}

// SkippedEntry is a bundle entry the dispatcher did not import.
type SkippedEntry struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// RunResult summarizes a bundle: one result per file and the per-table
// aggregate.
type RunResult struct {
	RunID   string                 `json:"runId"`
	Files   []TableResult          `json:"files"`
	Tables  map[string]TableResult `json:"tables"`
	Skipped []SkippedEntry         `json:"skipped,omitempty"`
}

// Totals sums every file result.
func (r RunResult) Totals() TableResult {
	var t TableResult
	for _, f := range r.Files {
		t.merge(f)
	}
	return t
}
