package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps collections in process memory. It backs the default
// configuration and the tests, and it records how commits were sized.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document

	commitSizes []int
	failAt      int
	failErr     error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Document)}
}

// Seed inserts documents directly, bypassing batch accounting.
func (m *MemoryStore) Seed(collection string, docs ...Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(collection)
	for _, d := range docs {
		c[d.ID] = cloneDocument(d)
	}
}

// FailCommit makes the n-th commit from now (1-based) fail with err.
func (m *MemoryStore) FailCommit(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAt = len(m.commitSizes) + n
	m.failErr = err
}

// CommitSizes returns the operation count of every successful commit.
func (m *MemoryStore) CommitSizes() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, len(m.commitSizes))
	copy(out, m.commitSizes)
	return out
}

// Count returns the number of documents in a collection.
func (m *MemoryStore) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func (m *MemoryStore) Scan(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.collections[collection]
	docs := make([]Document, 0, len(c))
	for _, d := range c {
		docs = append(docs, cloneDocument(d))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.collections[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return cloneDocument(d), nil
}

func (m *MemoryStore) Put(ctx context.Context, collection string, doc Document) error {
	b := m.NewBatch(collection)
	if err := b.Put(doc); err != nil {
		return err
	}
	return b.Commit(ctx)
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	b := m.NewBatch(collection)
	if err := b.Delete(id); err != nil {
		return err
	}
	return b.Commit(ctx)
}

func (m *MemoryStore) NewBatch(collection string) Batch {
	return &memoryBatch{store: m, collection: collection}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) Close() error { return nil }

// collection returns the named collection, creating it. Caller holds mu.
func (m *MemoryStore) collection(name string) map[string]Document {
	c, ok := m.collections[name]
	if !ok {
		c = make(map[string]Document)
		m.collections[name] = c
	}
	return c
}

type memoryBatch struct {
	ops
	store      *MemoryStore
	collection string
}

func (b *memoryBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := b.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAt > 0 && len(m.commitSizes)+1 == m.failAt {
		m.failAt = 0
		return m.failErr
	}

	c := m.collection(b.collection)
	for _, o := range b.list {
		switch o.kind {
		case opPut:
			c[o.doc.ID] = o.doc
		case opDelete:
			delete(c, o.doc.ID)
		}
	}
	m.commitSizes = append(m.commitSizes, len(b.list))
	return nil
}
