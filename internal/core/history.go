package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/JonMunkholm/courierimport/internal/logging"
	"github.com/JonMunkholm/courierimport/internal/store"
	"github.com/google/uuid"
)

// HistoryCollection holds one document per imported file. Its name cannot
// clash with a table key: keys never start with an underscore.
const HistoryCollection = "_import_history"

// RunAction is how a file reached the importer.
type RunAction string

const (
	ActionImportFile   RunAction = "import_file"
	ActionImportBundle RunAction = "import_bundle"
)

// RunSeverity ranks history entries for review.
type RunSeverity string

const (
	SeverityLow      RunSeverity = "low"
	SeverityMedium   RunSeverity = "medium"
	SeverityHigh     RunSeverity = "high"
	SeverityCritical RunSeverity = "critical"
)

// HistoryEntry records the outcome of one file of one run.
type HistoryEntry struct {
	ID           string        `json:"id"`
	RunID        string        `json:"runId"`
	Action       RunAction     `json:"action"`
	Severity     RunSeverity   `json:"severity"`
	Table        string        `json:"table"`
	File         string        `json:"file,omitempty"`
	Actor        Actor         `json:"actor"`
	ClearTarget  bool          `json:"clearTarget"`
	AllowUpdates bool          `json:"allowUpdates"`
	Inserted     int           `json:"inserted"`
	Updated      int           `json:"updated"`
	Unchanged    int           `json:"unchanged"`
	Collisions   int           `json:"collisions"`
	Rejected     int           `json:"rejected"`
	Cleared      int           `json:"cleared"`
	RowErrors    int           `json:"rowErrors"`
	Commits      int           `json:"commits"`
	Error        string        `json:"error,omitempty"`
	Code         string        `json:"code,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	Duration     time.Duration `json:"duration"`
}

// HistoryFilter narrows History. Zero values match everything.
type HistoryFilter struct {
	Table string
	Since time.Time
	Limit int
}

// runSeverity: clearing a table is critical, failures and writes are high,
// a run that changed nothing is low.
func runSeverity(res TableResult, opts Options) RunSeverity {
	switch {
	case opts.ClearTarget:
		return SeverityCritical
	case res.Failed(), res.Inserted+res.Updated > 0:
		return SeverityHigh
	case res.Collisions+res.Rejected+len(res.RowErrors) > 0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func newHistoryEntry(ctx context.Context, action RunAction, res TableResult, opts Options, started time.Time) HistoryEntry {
	e := HistoryEntry{
		ID:           uuid.NewString(),
		RunID:        logging.RunID(ctx),
		Action:       action,
		Severity:     runSeverity(res, opts),
		Table:        res.Table,
		File:         res.File,
		Actor:        ActorFromContext(ctx),
		ClearTarget:  opts.ClearTarget,
		AllowUpdates: opts.AllowUpdates,
		Inserted:     res.Inserted,
		Updated:      res.Updated,
		Unchanged:    res.Unchanged,
		Collisions:   res.Collisions,
		Rejected:     res.Rejected,
		Cleared:      res.Cleared,
		RowErrors:    len(res.RowErrors),
		Commits:      res.Commits,
		Error:        res.Error,
		StartedAt:    started.UTC(),
		Duration:     res.Duration,
	}
	if err := res.Err(); err != nil {
		e.Code = MapError(err).Code
	}
	return e
}

func (e HistoryEntry) document() store.Document {
	itoa := strconv.Itoa
	return store.Document{ID: e.ID, Fields: map[string]string{
		"runId":        e.RunID,
		"action":       string(e.Action),
		"severity":     string(e.Severity),
		"table":        e.Table,
		"file":         e.File,
		"source":       e.Actor.Source,
		"ipAddress":    e.Actor.IPAddress,
		"userAgent":    e.Actor.UserAgent,
		"clearTarget":  strconv.FormatBool(e.ClearTarget),
		"allowUpdates": strconv.FormatBool(e.AllowUpdates),
		"inserted":     itoa(e.Inserted),
		"updated":      itoa(e.Updated),
		"unchanged":    itoa(e.Unchanged),
		"collisions":   itoa(e.Collisions),
		"rejected":     itoa(e.Rejected),
		"cleared":      itoa(e.Cleared),
		"rowErrors":    itoa(e.RowErrors),
		"commits":      itoa(e.Commits),
		"error":        e.Error,
		"code":         e.Code,
		"startedAt":    e.StartedAt.Format(time.RFC3339Nano),
		"durationMs":   strconv.FormatInt(e.Duration.Milliseconds(), 10),
	}}
}

// historyEntryFromDocument is lenient: a field that does not parse is
// left at its zero value.
func historyEntryFromDocument(d store.Document) HistoryEntry {
	f := d.Fields
	atoi := func(k string) int {
		n, _ := strconv.Atoi(f[k])
		return n
	}
	started, _ := time.Parse(time.RFC3339Nano, f["startedAt"])
	ms, _ := strconv.ParseInt(f["durationMs"], 10, 64)
	clearTarget, _ := strconv.ParseBool(f["clearTarget"])
	updates, _ := strconv.ParseBool(f["allowUpdates"])

	return HistoryEntry{
		ID:           d.ID,
		RunID:        f["runId"],
		Action:       RunAction(f["action"]),
		Severity:     RunSeverity(f["severity"]),
		Table:        f["table"],
		File:         f["file"],
		Actor:        Actor{Source: f["source"], IPAddress: f["ipAddress"], UserAgent: f["userAgent"]},
		ClearTarget:  clearTarget,
		AllowUpdates: updates,
		Inserted:     atoi("inserted"),
		Updated:      atoi("updated"),
		Unchanged:    atoi("unchanged"),
		Collisions:   atoi("collisions"),
		Rejected:     atoi("rejected"),
		Cleared:      atoi("cleared"),
		RowErrors:    atoi("rowErrors"),
		Commits:      atoi("commits"),
		Error:        f["error"],
		Code:         f["code"],
		StartedAt:    started,
		Duration:     time.Duration(ms) * time.Millisecond,
	}
}

// recordHistory stores one entry per file. A failure to record is logged
// and never changes the outcome of the run.
func (s *Service) recordHistory(ctx context.Context, action RunAction, opts Options, started time.Time, results ...TableResult) {
	if !s.history {
		return
	}
	if len(results) == 0 {
		return
	}
	docs := make([]store.Document, 0, len(results))
	for _, res := range results {
		docs = append(docs, newHistoryEntry(ctx, action, res, opts, started).document())
	}
	if _, err := NewWriter(s.store, s.batchSize).Save(ctx, HistoryCollection, docs); err != nil {
		logging.FromContext(ctx).Error("record import history", "error", err, "entries", len(docs))
	}
}

// History returns recorded runs, newest first.
func (s *Service) History(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, error) {
	docs, err := s.store.Scan(ctx, HistoryCollection)
	if err != nil {
		return nil, fmt.Errorf("load import history: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(docs))
	for _, d := range docs {
		e := historyEntryFromDocument(d)
		if filter.Table != "" && e.Table != filter.Table {
			continue
		}
		if !filter.Since.IsZero() && e.StartedAt.Before(filter.Since) {
			continue
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].StartedAt.After(entries[j].StartedAt) })
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

// PruneHistory deletes entries started before cutoff, in store batches.
func (s *Service) PruneHistory(ctx context.Context, cutoff time.Time) (int, error) {
	docs, err := s.store.Scan(ctx, HistoryCollection)
	if err != nil {
		return 0, fmt.Errorf("load import history: %w", err)
	}

	var ids []string
	for _, d := range docs {
		if historyEntryFromDocument(d).StartedAt.Before(cutoff) {
			ids = append(ids, d.ID)
		}
	}

	res, err := NewWriter(s.store, s.batchSize).Clear(ctx, HistoryCollection, ids)
	return res.Deleted, err
}
