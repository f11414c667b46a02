package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/courierimport/internal/store"
	"github.com/google/uuid"
)

// WriteResult counts what a writer committed.
type WriteResult struct {
	Inserted int
	Updated  int
	Deleted  int
	Commits  int
}

// Writer turns decisions into store batches of at most batchSize
// operations and commits them one after another.
type Writer struct {
	store     store.Store
	batchSize int
	newID     func() string
}

// NewWriter returns a writer. batchSize is clamped to 1..store.MaxBatchOps.
func NewWriter(s store.Store, batchSize int) *Writer {
	if batchSize <= 0 || batchSize > store.MaxBatchOps {
		batchSize = store.MaxBatchOps
	}
	return &Writer{store: s, batchSize: batchSize, newID: uuid.NewString}
}

type pendingWrite struct {
	kind DecisionKind
	doc  store.Document
}

// Write commits the inserts and updates among decisions. Skips and
// rejects are not written. On a failed commit the remaining batches are
// abandoned; the returned result covers the batches that landed and the
// error is a *CommitError.
func (w *Writer) Write(ctx context.Context, table string, decisions []Decision) (WriteResult, error) {
	var pending []pendingWrite
	for _, d := range decisions {
		switch d.Kind {
		case DecisionInsert:
			id := d.EntityID
			if id == "" {
				id = w.newID()
			}
			e := Entity{ID: id, Fields: d.Record.Fields, Extra: d.Record.Extra}
			pending = append(pending, pendingWrite{kind: DecisionInsert, doc: e.document()})
		case DecisionUpdate:
			pending = append(pending, pendingWrite{kind: DecisionUpdate, doc: mergeUpdate(d).document()})
		}
	}

	var res WriteResult
	for start := 0; start < len(pending); start += w.batchSize {
		end := min(start+w.batchSize, len(pending))
		chunk := pending[start:end]

		b := w.store.NewBatch(table)
		for _, p := range chunk {
			if err := b.Put(p.doc); err != nil {
				return res, &CommitError{Table: table, Batch: res.Commits + 1, Committed: res.Commits, Err: err}
			}
		}
		if err := b.Commit(ctx); err != nil {
			return res, &CommitError{Table: table, Batch: res.Commits + 1, Committed: res.Commits, Err: err}
		}

		res.Commits++
		for _, p := range chunk {
			if p.kind == DecisionInsert {
				res.Inserted++
			} else {
				res.Updated++
			}
		}
	}
	return res, nil
}

// Clear deletes every listed id, batched like Write.
func (w *Writer) Clear(ctx context.Context, table string, ids []string) (WriteResult, error) {
	var res WriteResult
	for start := 0; start < len(ids); start += w.batchSize {
		end := min(start+w.batchSize, len(ids))

		b := w.store.NewBatch(table)
		for _, id := range ids[start:end] {
			if err := b.Delete(id); err != nil {
				return res, &CommitError{Table: table, Batch: res.Commits + 1, Committed: res.Commits, Err: err}
			}
		}
		if err := b.Commit(ctx); err != nil {
			return res, &CommitError{Table: table, Batch: res.Commits + 1, Committed: res.Commits, Err: fmt.Errorf("clear: %w", err)}
		}
		res.Commits++
		res.Deleted += end - start
	}
	return res, nil
}

// Save puts documents as they are, batched like Write.
func (w *Writer) Save(ctx context.Context, table string, docs []store.Document) (WriteResult, error) {
	var res WriteResult
	for start := 0; start < len(docs); start += w.batchSize {
		end := min(start+w.batchSize, len(docs))

		b := w.store.NewBatch(table)
		for _, d := range docs[start:end] {
			if err := b.Put(d); err != nil {
				return res, &CommitError{Table: table, Batch: res.Commits + 1, Committed: res.Commits, Err: err}
			}
		}
		if err := b.Commit(ctx); err != nil {
			return res, &CommitError{Table: table, Batch: res.Commits + 1, Committed: res.Commits, Err: err}
		}
		res.Commits++
		res.Inserted += end - start
	}
	return res, nil
}

// mergeUpdate overlays the record onto the matched entity. Fields the
// record does not carry keep their stored value.
func mergeUpdate(d Decision) Entity {
	e := Entity{
		ID:     d.EntityID,
		Fields: make(map[CanonicalField]string),
		Extra:  make(map[string]string),
	}
	if d.Entity != nil {
		for f, v := range d.Entity.Fields {
			e.Fields[f] = v
		}
		for k, v := range d.Entity.Extra {
			e.Extra[k] = v
		}
	}
	for f, v := range d.Record.Fields {
		e.Fields[f] = v
	}
	for k, v := range d.Record.Extra {
		e.Extra[k] = v
	}
	return e
}
