package core

import (
	"context"
	"fmt"
	"time"
)

// PreviewSummary counts what an import would do.
type PreviewSummary struct {
	TotalRows       int `json:"totalRows"`
	Inserts         int `json:"inserts"`
	Updates         int `json:"updates"`
	Unchanged       int `json:"unchanged"`
	Collisions      int `json:"collisions"`
	Rejected        int `json:"rejected"`
	ErrorRows       int `json:"errorRows"`
	WouldClear      int `json:"wouldClear"`
	DuplicateInFile int `json:"duplicateInFile"`
}

// RowPreview is one record that would be inserted.
type RowPreview struct {
	LineNumber int               `json:"lineNumber"`
	Values     map[string]string `json:"values"`
}

// UpdateDiff is a before/after view of a record matched to an entity.
type UpdateDiff struct {
	LineNumber int               `json:"lineNumber"`
	EntityID   string            `json:"entityId"`
	MatchedBy  string            `json:"matchedBy"`
	Current    map[string]string `json:"current"`
	Incoming   map[string]string `json:"incoming"`
	Changed    []string          `json:"changed"`
	Applied    bool              `json:"applied"` // false for collisions
}

// DuplicatePreview is a natural key found on several lines of the file.
// Each of those lines reconciles against the same snapshot.
type DuplicatePreview struct {
	Key         string `json:"key"`
	LineNumbers []int  `json:"lineNumbers"`
}

// PreviewResponse is the read-only analysis of a file.
type PreviewResponse struct {
	Table            string             `json:"table"`
	File             string             `json:"file"`
	Delimiter        string             `json:"delimiter,omitempty"`
	Mapping          HeaderMapping      `json:"mapping"`
	Summary          PreviewSummary     `json:"summary"`
	NewRowSamples    []RowPreview       `json:"newRowSamples"`
	UpdateDiffs      []UpdateDiff       `json:"updateDiffs"`
	ErrorSamples     []RowError         `json:"errorSamples"`
	DuplicateSamples []DuplicatePreview `json:"duplicateSamples"`
	ProcessingTimeMs int64              `json:"processingTimeMs"`
}

// Sample limits
const (
	maxNewRowSamples    = 10
	maxUpdateDiffs      = 10
	maxErrorSamples     = 20
	maxDuplicateSamples = 10
)

// Preview runs the pipeline up to reconciliation and writes nothing.
// With ClearTarget the snapshot is taken as empty, as it would be after
// the clear.
func (im *Importer) Preview(ctx context.Context, def TableDefinition, file RawFile) (*PreviewResponse, error) {
	start := time.Now()

	parsed, records, err := im.read(def, file)
	if err != nil {
		return nil, err
	}

	docs, err := im.store.Scan(ctx, def.Info.Key)
	if err != nil {
		return nil, fmt.Errorf("load %s snapshot: %w", def.Info.Key, err)
	}

	p := &PreviewResponse{
		Table:            def.Info.Key,
		File:             file.Name,
		Mapping:          parsed.Mapping,
		NewRowSamples:    []RowPreview{},
		UpdateDiffs:      []UpdateDiff{},
		ErrorSamples:     []RowError{},
		DuplicateSamples: []DuplicatePreview{},
	}
	if parsed.Delimiter != 0 {
		p.Delimiter = string(parsed.Delimiter)
	}

	var entities []Entity
	if im.opts.ClearTarget {
		p.Summary.WouldClear = len(docs)
	} else {
		entities = EntitiesFromDocuments(docs)
	}
	idx := BuildIndex(entities, im.identifier(def))

	p.Summary.TotalRows = len(records) + len(parsed.RowErrors)
	p.Summary.ErrorRows = len(parsed.RowErrors)
	for i, re := range parsed.RowErrors {
		if i >= maxErrorSamples {
			break
		}
		p.ErrorSamples = append(p.ErrorSamples, re)
	}

	for _, d := range ReconcileAll(records, idx, im.opts) {
		switch d.Kind {
		case DecisionInsert:
			p.Summary.Inserts++
			if len(p.NewRowSamples) < maxNewRowSamples {
				p.NewRowSamples = append(p.NewRowSamples, RowPreview{LineNumber: d.Record.Line, Values: recordValues(d.Record)})
			}
		case DecisionUpdate, DecisionSkipDuplicateCollision:
			if d.Kind == DecisionUpdate {
				p.Summary.Updates++
			} else {
				p.Summary.Collisions++
			}
			if len(p.UpdateDiffs) < maxUpdateDiffs {
				p.UpdateDiffs = append(p.UpdateDiffs, updateDiff(d))
			}
		case DecisionSkipUnchanged:
			p.Summary.Unchanged++
		case DecisionReject:
			p.Summary.Rejected++
		}
	}

	dups := duplicatesInFile(records, im.identifier(def))
	p.Summary.DuplicateInFile = len(dups)
	if len(dups) > maxDuplicateSamples {
		dups = dups[:maxDuplicateSamples]
	}
	p.DuplicateSamples = append(p.DuplicateSamples, dups...)

	p.ProcessingTimeMs = time.Since(start).Milliseconds()
	return p, nil
}

func recordValues(r CanonicalRecord) map[string]string {
	out := make(map[string]string, len(r.Fields)+len(r.Extra))
	for k, v := range r.Extra {
		out[k] = v
	}
	for f, v := range r.Fields {
		out[string(f)] = v
	}
	return out
}

func updateDiff(d Decision) UpdateDiff {
	diff := UpdateDiff{
		LineNumber: d.Record.Line,
		EntityID:   d.EntityID,
		MatchedBy:  d.MatchedBy,
		Current:    make(map[string]string, len(d.Changed)),
		Incoming:   make(map[string]string, len(d.Changed)),
		Applied:    d.Kind == DecisionUpdate,
	}
	for _, f := range d.Changed {
		diff.Changed = append(diff.Changed, string(f))
		diff.Incoming[string(f)] = d.Record.Fields[f]
		if d.Entity != nil {
			diff.Current[string(f)] = d.Entity.Fields[f]
		}
	}
	return diff
}

// duplicatesInFile groups lines sharing an identifier or, failing that, a
// name. Groups are in order of first appearance.
func duplicatesInFile(records []CanonicalRecord, identifier CanonicalField) []DuplicatePreview {
	lines := make(map[string][]int)
	var order []string
	for _, r := range records {
		key := ""
		if id := r.Fields[identifier]; id != "" {
			key = string(identifier) + ":" + id
		} else if n := nameKey(r.Fields[FieldName]); n != "" {
			key = "name:" + n
		}
		if key == "" {
			continue
		}
		if _, seen := lines[key]; !seen {
			order = append(order, key)
		}
		lines[key] = append(lines[key], r.Line)
	}

	var out []DuplicatePreview
	for _, k := range order {
		if len(lines[k]) > 1 {
			out = append(out, DuplicatePreview{Key: k, LineNumbers: lines[k]})
		}
	}
	return out
}
