package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/courierimport/internal/logging"
	"github.com/JonMunkholm/courierimport/internal/store"
)

// TableGuard serializes runs on one table. Lock returns ErrTableBusy when
// another run holds the table.
type TableGuard interface {
	Lock(table string) (release func(), err error)
}

// Importer runs the pipeline for one import run: parse, optionally clear,
// snapshot, reconcile, write. Build a new Importer per run; it keeps
// per-run state such as which tables were already cleared.
type Importer struct {
	store  store.Store
	vocab  *Vocabulary
	writer *Writer
	opts   Options
	guard  TableGuard

	cleared map[string]bool
}

// NewImporter prepares a run. batchSize is clamped to store.MaxBatchOps.
func NewImporter(s store.Store, vocab *Vocabulary, opts Options, batchSize int) *Importer {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Importer{
		store:   s,
		vocab:   vocab,
		writer:  NewWriter(s, batchSize),
		opts:    opts,
		cleared: make(map[string]bool),
	}
}

// WithGuard makes the importer lock each table while it is imported.
func (im *Importer) WithGuard(g TableGuard) *Importer {
	im.guard = g
	return im
}

// ImportFile imports one file into def's table. Failures are reported in
// the result rather than returned, so bundle runs can continue.
func (im *Importer) ImportFile(ctx context.Context, def TableDefinition, file RawFile) TableResult {
	start := time.Now()
	table := def.Info.Key
	log := logging.WithFields(ctx, "table", table, "file", file.Name)
	res := TableResult{Table: table, File: file.Name}

	fail := func(err error) TableResult {
		res.Error = err.Error()
		res.err = err
		res.Duration = time.Since(start)
		if IsStructural(err) {
			log.Warn("file rejected", "error", err)
		} else {
			log.Error("import failed", "error", err, "commits", res.Commits)
		}
		return res
	}

	if im.guard != nil {
		release, err := im.guard.Lock(table)
		if err != nil {
			return fail(fmt.Errorf("%s: %w", table, err))
		}
		defer release()
	}

	log.Info("import started", "bytes", len(file.Data), "format", file.Format().String())

	parsed, records, err := im.read(def, file)
	if err != nil {
		return fail(err)
	}
	res.RowErrors = parsed.RowErrors
	for _, re := range res.RowErrors {
		log.Debug("row skipped", "line", re.Line, "reason", re.Reason)
	}

	var entities []Entity
	if im.opts.ClearTarget && !im.cleared[table] {
		cleared, err := im.clear(ctx, log, table)
		res.Cleared = cleared.Deleted
		res.Commits += cleared.Commits
		if err != nil {
			return fail(err)
		}
		im.cleared[table] = true
	} else {
		docs, err := im.store.Scan(ctx, table)
		if err != nil {
			return fail(fmt.Errorf("load %s snapshot: %w", table, err))
		}
		entities = EntitiesFromDocuments(docs)
	}

	idx := BuildIndex(entities, im.identifier(def))

	decisions := ReconcileAll(records, idx, im.opts)
	for _, d := range decisions {
		switch d.Kind {
		case DecisionSkipUnchanged:
			res.Unchanged++
		case DecisionSkipDuplicateCollision:
			res.Collisions++
		case DecisionReject:
			res.Rejected++
			log.Debug("row rejected", "line", d.Record.Line, "reason", "no name or address to identify the row")
		}
	}

	written, err := im.writer.Write(ctx, table, decisions)
	res.Inserted = written.Inserted
	res.Updated = written.Updated
	res.Commits += written.Commits
	if err != nil {
		return fail(err)
	}

	res.Duration = time.Since(start)
	log.Info("import finished",
		"inserted", res.Inserted,
		"updated", res.Updated,
		"skipped", res.Skipped(),
		"rejected", res.Rejected,
		"row_errors", len(res.RowErrors),
		"commits", res.Commits,
		"duration", res.Duration,
	)
	return res
}

// read parses file and normalizes its rows. Row errors from both steps
// are collected in the returned table.
func (im *Importer) read(def TableDefinition, file RawFile) (ParsedTable, []CanonicalRecord, error) {
	parsed, err := im.vocab.Parse(file)
	if err != nil {
		return ParsedTable{}, nil, err
	}
	records, rowErrs := im.vocab.Records(parsed)
	parsed.RowErrors = append(parsed.RowErrors, rowErrs...)
	composeNames(records, def.NameParts)
	return parsed, records, nil
}

// identifier is the run's identifier field, else the table's.
func (im *Importer) identifier(def TableDefinition) CanonicalField {
	if im.opts.IdentifierField != "" {
		return im.opts.IdentifierField
	}
	return def.IdentifierField
}

func (im *Importer) clear(ctx context.Context, log *slog.Logger, table string) (WriteResult, error) {
	docs, err := im.store.Scan(ctx, table)
	if err != nil {
		return WriteResult{}, fmt.Errorf("load %s before clear: %w", table, err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	res, err := im.writer.Clear(ctx, table, ids)
	if err == nil {
		log.Info("table cleared", "deleted", res.Deleted)
	}
	return res, err
}

// composeNames fills a missing name from parts, joined by spaces.
func composeNames(records []CanonicalRecord, parts []CanonicalField) {
	if len(parts) == 0 {
		return
	}
	for i := range records {
		if records[i].Fields[FieldName] != "" {
			continue
		}
		var words []string
		for _, p := range parts {
			if v := records[i].Fields[p]; v != "" {
				words = append(words, v)
			}
		}
		if len(words) > 0 {
			records[i].Fields[FieldName] = strings.Join(words, " ")
		}
	}
}
