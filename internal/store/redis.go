package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each collection in one hash: field = document id,
// value = JSON-encoded fields.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps a client. Keys are prefix + collection.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(collection string) string {
	return s.prefix + collection
}

func (s *RedisStore) Scan(ctx context.Context, collection string) ([]Document, error) {
	all, err := s.client.HGetAll(ctx, s.key(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(all))
	for id, raw := range all {
		doc, err := decodeDocument(id, []byte(raw))
		if err != nil {
			return nil, fmt.Errorf("scan %s/%s: %w", collection, id, err)
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) (Document, error) {
	raw, err := s.client.HGet(ctx, s.key(collection), id).Result()
	if errors.Is(err, redis.Nil) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeDocument(id, []byte(raw))
}

func (s *RedisStore) Put(ctx context.Context, collection string, doc Document) error {
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, doc.ID, err)
	}
	if err := s.client.HSet(ctx, s.key(collection), doc.ID, raw).Err(); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.client.HDel(ctx, s.key(collection), id).Err(); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *RedisStore) NewBatch(collection string) Batch {
	return &redisBatch{store: s, collection: collection}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }

type redisBatch struct {
	ops
	store      *RedisStore
	collection string
}

// Commit wraps the queued writes in MULTI/EXEC.
func (b *redisBatch) Commit(ctx context.Context) error {
	key := b.store.key(b.collection)
	encoded := make([][]byte, len(b.list))
	for i, o := range b.list {
		if o.kind != opPut {
			continue
		}
		raw, err := json.Marshal(o.doc.Fields)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", b.collection, o.doc.ID, err)
		}
		encoded[i] = raw
	}

	_, err := b.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, o := range b.list {
			switch o.kind {
			case opPut:
				pipe.HSet(ctx, key, o.doc.ID, encoded[i])
			case opDelete:
				pipe.HDel(ctx, key, o.doc.ID)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit %s batch: %w", b.collection, err)
	}
	return nil
}
