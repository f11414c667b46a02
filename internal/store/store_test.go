package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return NewRedisStore(client, "test:"), func() {
		client.Close()
		mr.Close()
	}
}

func setupTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := NewPostgresStore(pool)
	require.NoError(t, s.Migrate(ctx))
	_, err = pool.Exec(ctx, `DELETE FROM documents WHERE collection LIKE 'test_%'`)
	require.NoError(t, err)
	return s
}

// backends runs fn against every store implementation that is available.
func backends(t *testing.T, fn func(t *testing.T, s Store, collection string)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore(), "test_sites")
	})
	t.Run("redis", func(t *testing.T) {
		s, cleanup := setupTestRedis(t)
		defer cleanup()
		fn(t, s, "test_sites")
	})
	t.Run("postgres", func(t *testing.T) {
		fn(t, setupTestPostgres(t), "test_sites")
	})
}

func TestStore_PutGetDelete(t *testing.T) {
	backends(t, func(t *testing.T, s Store, collection string) {
		ctx := context.Background()
		doc := Document{ID: "abc", Fields: map[string]string{"name": "Clinique Pasteur", "city": "Toulouse"}}

		require.NoError(t, s.Put(ctx, collection, doc))

		got, err := s.Get(ctx, collection, "abc")
		require.NoError(t, err)
		assert.Equal(t, doc, got)

		require.NoError(t, s.Delete(ctx, collection, "abc"))
		_, err = s.Get(ctx, collection, "abc")
		assert.True(t, errors.Is(err, ErrNotFound), "got %v, want ErrNotFound", err)
	})
}

func TestStore_ScanOrderedByID(t *testing.T) {
	backends(t, func(t *testing.T, s Store, collection string) {
		ctx := context.Background()
		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, s.Put(ctx, collection, Document{ID: id, Fields: map[string]string{"name": id}}))
		}

		docs, err := s.Scan(ctx, collection)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "a", docs[0].ID)
		assert.Equal(t, "b", docs[1].ID)
		assert.Equal(t, "c", docs[2].ID)
	})
}

func TestStore_BatchCommit(t *testing.T) {
	backends(t, func(t *testing.T, s Store, collection string) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, collection, Document{ID: "old", Fields: map[string]string{"name": "Old"}}))

		b := s.NewBatch(collection)
		for i := 0; i < 10; i++ {
			require.NoError(t, b.Put(Document{ID: fmt.Sprintf("doc-%02d", i), Fields: map[string]string{"name": "x"}}))
		}
		require.NoError(t, b.Delete("old"))
		assert.Equal(t, 11, b.Len())
		require.NoError(t, b.Commit(ctx))

		docs, err := s.Scan(ctx, collection)
		require.NoError(t, err)
		assert.Len(t, docs, 10)
		for _, d := range docs {
			assert.NotEqual(t, "old", d.ID)
		}
	})
}

func TestStore_ScanEmptyCollection(t *testing.T) {
	backends(t, func(t *testing.T, s Store, collection string) {
		docs, err := s.Scan(context.Background(), collection+"_empty")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestBatch_Limit(t *testing.T) {
	b := NewMemoryStore().NewBatch("sites")
	for i := 0; i < MaxBatchOps; i++ {
		require.NoError(t, b.Put(Document{ID: fmt.Sprintf("%d", i)}))
	}
	err := b.Put(Document{ID: "overflow"})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.ErrorIs(t, b.Delete("overflow"), ErrBatchTooLarge)
	assert.Equal(t, MaxBatchOps, b.Len())
}

func TestBatch_RejectsEmptyID(t *testing.T) {
	b := NewMemoryStore().NewBatch("sites")
	assert.Error(t, b.Put(Document{}))
	assert.Error(t, b.Delete(""))
	assert.Equal(t, 0, b.Len())
}

func TestBatch_CopiesDocument(t *testing.T) {
	s := NewMemoryStore()
	fields := map[string]string{"name": "before"}
	b := s.NewBatch("sites")
	require.NoError(t, b.Put(Document{ID: "a", Fields: fields}))
	fields["name"] = "after"
	require.NoError(t, b.Commit(context.Background()))

	got, err := s.Get(context.Background(), "sites", "a")
	require.NoError(t, err)
	assert.Equal(t, "before", got.Fields["name"])
}

func TestMemoryStore_FailCommit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	s.FailCommit(2, boom)

	require.NoError(t, s.Put(ctx, "sites", Document{ID: "a"}))
	err := s.Put(ctx, "sites", Document{ID: "b"})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, s.Put(ctx, "sites", Document{ID: "c"}))

	assert.Equal(t, 2, s.Count("sites"))
	assert.Equal(t, []int{1, 1}, s.CommitSizes())
}
