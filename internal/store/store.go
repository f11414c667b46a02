// Package store is the persistent document store the importer reconciles
// against. A store holds named collections of flat documents keyed by id and
// accepts atomic write batches of at most MaxBatchOps operations.
package store

import (
	"context"
	"errors"
	"fmt"
)

// MaxBatchOps is the largest number of operations a single batch may carry.
const MaxBatchOps = 500

// ErrBatchTooLarge is returned when an operation is added to a full batch.
var ErrBatchTooLarge = fmt.Errorf("batch exceeds %d operations", MaxBatchOps)

// ErrNotFound is returned by Get when no document has the given id.
var ErrNotFound = errors.New("document not found")

// Document is one persisted entity: an id plus flat string fields.
type Document struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Store is the contract every backend satisfies.
type Store interface {
	// Scan returns every document of the collection, ordered by id.
	Scan(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	// Put creates or overwrites the document with doc.ID.
	Put(ctx context.Context, collection string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
	NewBatch(collection string) Batch
	Ping(ctx context.Context) error
	Close() error
}

// Batch accumulates writes against one collection and applies them
// atomically on Commit. A batch must not be reused after Commit.
type Batch interface {
	Put(doc Document) error
	Delete(id string) error
	Len() int
	Commit(ctx context.Context) error
}

type opKind int

const (
	opPut opKind = iota
	opDelete
)

type op struct {
	kind opKind
	doc  Document
}

// ops is the shared bookkeeping of every backend's batch.
type ops struct {
	list []op
}

func (o *ops) Put(doc Document) error {
	if doc.ID == "" {
		return errors.New("put: document id is empty")
	}
	return o.add(op{kind: opPut, doc: cloneDocument(doc)})
}

func (o *ops) Delete(id string) error {
	if id == "" {
		return errors.New("delete: document id is empty")
	}
	return o.add(op{kind: opDelete, doc: Document{ID: id}})
}

func (o *ops) Len() int { return len(o.list) }

func (o *ops) add(x op) error {
	if len(o.list) >= MaxBatchOps {
		return ErrBatchTooLarge
	}
	o.list = append(o.list, x)
	return nil
}

func cloneDocument(doc Document) Document {
	fields := make(map[string]string, len(doc.Fields))
	for k, v := range doc.Fields {
		fields[k] = v
	}
	return Document{ID: doc.ID, Fields: fields}
}
