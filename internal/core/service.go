package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/courierimport/internal/config"
	"github.com/JonMunkholm/courierimport/internal/logging"
	"github.com/JonMunkholm/courierimport/internal/store"
	"github.com/google/uuid"
)

// Service is the entry point used by the HTTP server and the CLI.
type Service struct {
	store   store.Store
	vocab   *Vocabulary
	limiter *RunLimiter

	batchSize   int
	maxFileSize int64
	defaults    Options
	history     bool
}

// NewService wires a store with the import settings of cfg.
func NewService(s store.Store, cfg *config.Config) (*Service, error) {
	vocab, err := LoadVocabulary(cfg.Import.VocabularyFile)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		store:       s,
		vocab:       vocab,
		limiter:     NewRunLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		batchSize:   cfg.Import.BatchSize,
		maxFileSize: cfg.Import.MaxFileSize,
		history:     cfg.History.Enabled,
		defaults: Options{
			AllowUpdates:    cfg.Import.AllowUpdates,
			IdentifierField: CanonicalField(cfg.Import.IdentifierField),
		},
	}
	if err := svc.validateOptions(svc.defaults); err != nil {
		return nil, err
	}
	// The configured default "id" defers to each table's own identity.
	if svc.defaults.IdentifierField == FieldID {
		svc.defaults.IdentifierField = ""
	}
	return svc, nil
}

// DefaultOptions returns the configured run options.
func (s *Service) DefaultOptions() Options { return s.defaults }

// Tables lists the importable tables.
func (s *Service) Tables() []TableDefinition { return All() }

// Vocabulary returns the header vocabulary in use.
func (s *Service) Vocabulary() *Vocabulary { return s.vocab }

func (s *Service) validateOptions(opts Options) error {
	if opts.IdentifierField != "" && !IsCanonical(opts.IdentifierField) {
		return fmt.Errorf("%w: identifier field %q is not a known field", ErrInvalidOption, opts.IdentifierField)
	}
	return nil
}

// ParseIdentifierField accepts a canonical field name in any case.
func ParseIdentifierField(s string) (CanonicalField, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for f := range fieldRules {
		if strings.EqualFold(string(f), s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: identifier field %q is not a known field", ErrInvalidOption, s)
}

// ImportFile runs one file into tableKey. The run is detached from ctx
// cancellation: once started it completes, so a dropped client cannot
// leave a table half cleared.
func (s *Service) ImportFile(ctx context.Context, tableKey string, file RawFile, opts Options) (TableResult, error) {
	def, err := s.checkFile(tableKey, file, opts)
	if err != nil {
		return TableResult{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return TableResult{}, err
	}
	defer s.limiter.Release()

	started := time.Now()
	runCtx := logging.WithRunID(context.WithoutCancel(ctx), uuid.NewString())
	res := s.newImporter(opts).ImportFile(runCtx, def, file)
	s.recordHistory(runCtx, ActionImportFile, opts, started, res)
	return res, res.Err()
}

// Preview reports what importing file into tableKey would do, without
// writing. It takes no run slot and no table lock.
func (s *Service) Preview(ctx context.Context, tableKey string, file RawFile, opts Options) (*PreviewResponse, error) {
	def, err := s.checkFile(tableKey, file, opts)
	if err != nil {
		return nil, err
	}
	return s.newImporter(opts).Preview(ctx, def, file)
}

// checkFile rejects a run before any work: unknown table, bad options,
// empty, oversized or unsupported file.
func (s *Service) checkFile(tableKey string, file RawFile, opts Options) (TableDefinition, error) {
	def, ok := Get(tableKey)
	if !ok {
		return TableDefinition{}, fmt.Errorf("%w: %s", ErrUnknownTable, tableKey)
	}
	if err := s.validateOptions(opts); err != nil {
		return TableDefinition{}, err
	}
	if len(file.Data) == 0 {
		return TableDefinition{}, &StructuralError{File: file.Name, Err: ErrEmptyFile}
	}
	if int64(len(file.Data)) > s.maxFileSize {
		return TableDefinition{}, fmt.Errorf("%s: %w", file.Name, ErrFileTooLarge)
	}
	if file.Format() == FormatUnknown {
		return TableDefinition{}, &StructuralError{File: file.Name, Err: ErrUnsupportedFormat}
	}
	return def, nil
}

// ImportBundle runs every recognized file of a zip archive.
func (s *Service) ImportBundle(ctx context.Context, archive []byte, opts Options) (RunResult, error) {
	if err := s.validateOptions(opts); err != nil {
		return RunResult{}, err
	}
	if len(archive) == 0 {
		return RunResult{}, &StructuralError{Err: ErrEmptyFile}
	}
	if int64(len(archive)) > s.maxFileSize {
		return RunResult{}, fmt.Errorf("bundle: %w", ErrFileTooLarge)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return RunResult{}, err
	}
	defer s.limiter.Release()

	started := time.Now()
	runID := uuid.NewString()
	runCtx := logging.WithRunID(context.WithoutCancel(ctx), runID)
	logging.FromContext(runCtx).Info("bundle import started", "bytes", len(archive))

	res, err := s.newImporter(opts).ImportBundle(runCtx, archive)
	res.RunID = runID
	s.recordHistory(runCtx, ActionImportBundle, opts, started, res.Files...)
	return res, err
}

// Template writes the header template of tableKey.
func (s *Service) Template(w io.Writer, tableKey string, delim rune) error {
	def, ok := Get(tableKey)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, tableKey)
	}
	return s.vocab.WriteTemplate(w, def, delim)
}

// SuggestTables ranks the tables a file's header line could be imported
// into.
func (s *Service) SuggestTables(file RawFile) []TableMatch {
	var headers []string
	switch file.Format() {
	case FormatDelimited, FormatDelimitedTab:
		text := NormalizeEncoding(file.Data)
		line := firstLine(text)
		headers = SplitLine(line, InferDelimiter(line, file.Format() == FormatDelimitedTab))
	case FormatRecords:
		if t, err := s.vocab.ParseRecords(file.Name, file.Data); err == nil {
			for _, c := range t.Mapping.Columns {
				headers = append(headers, c.Header)
			}
		}
	}
	if len(headers) == 0 {
		return nil
	}
	return s.vocab.MatchTables(headers)
}

func (s *Service) newImporter(opts Options) *Importer {
	return NewImporter(s.store, s.vocab, opts, s.batchSize).WithGuard(s.limiter)
}

// LimiterStatus reports active runs and busy tables.
func (s *Service) LimiterStatus() RunLimiterStatus { return s.limiter.Status() }

// WaitForRuns blocks until running imports finish or ctx ends.
func (s *Service) WaitForRuns(ctx context.Context) error { return s.limiter.WaitForDrain(ctx) }

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }
