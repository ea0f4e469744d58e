package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	require.NoError(t, s.EnsureCollection(context.Background(), "campus", 3))
	return s
}

func TestSQLiteStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entries := []*Entry{
		{ID: "campus:a:0", Text: "first", URL: "https://e.edu/a", Title: "A", Embedding: []float32{1, 0, 0}},
		{ID: "campus:a:1", Text: "second", URL: "https://e.edu/a", Title: "A", Embedding: []float32{0, 1, 0}},
	}
	require.NoError(t, s.Upsert(ctx, "campus", entries))
	require.NoError(t, s.Upsert(ctx, "campus", entries))

	n, err := s.Count(ctx, "campus")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// last write wins
	require.NoError(t, s.Upsert(ctx, "campus", []*Entry{
		{ID: "campus:a:0", Text: "updated", URL: "https://e.edu/a", Title: "A", Embedding: []float32{1, 0, 0}},
	}))
	n, err = s.Count(ctx, "campus")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	hits, err := s.Search(ctx, "campus", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "updated", hits[0].Text)
}

func TestSQLiteStore_SearchOrderAndBound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, "campus", []*Entry{
		{ID: "x", Text: "x", URL: "u1", Embedding: []float32{1, 0, 0}},
		{ID: "y", Text: "y", URL: "u2", Embedding: []float32{0.7, 0.7, 0}},
		{ID: "z", Text: "z", URL: "u3", Embedding: []float32{0, 0, 1}},
	}))

	hits, err := s.Search(ctx, "campus", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "x", hits[0].ID)
	assert.Equal(t, "y", hits[1].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

	hits, err = s.Search(ctx, "campus", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestSQLiteStore_EmptyCollection(t *testing.T) {
	s := newTestStore(t)
	hits, err := s.Search(context.Background(), "campus", []float32{1, 0, 0}, 8)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Upsert(ctx, "campus", []*Entry{{ID: "bad", Embedding: []float32{1, 2}}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = s.EnsureCollection(ctx, "campus", 4)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = s.Search(ctx, "campus", []float32{1, 0, 0, 0}, 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSQLiteStore_DropCollection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, "campus", []*Entry{{ID: "a", Text: "a", Embedding: []float32{1, 0, 0}}}))
	require.NoError(t, s.EnsureCollection(ctx, "other", 2))
	require.NoError(t, s.Upsert(ctx, "other", []*Entry{{ID: "b", Text: "b", Embedding: []float32{1, 0}}}))

	require.NoError(t, s.DropCollection(ctx, "campus"))
	// idempotent
	require.NoError(t, s.DropCollection(ctx, "campus"))

	n, err := s.Count(ctx, "campus")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.Count(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	err = s.Upsert(ctx, "campus", []*Entry{{ID: "a", Embedding: []float32{1, 0, 0}}})
	assert.Error(t, err)

	// recreate with a new dimension
	require.NoError(t, s.EnsureCollection(ctx, "campus", 4))
	require.NoError(t, s.Upsert(ctx, "campus", []*Entry{{ID: "a", Embedding: []float32{1, 0, 0, 0}}}))
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.EnsureCollection(ctx, "campus", 2))
	require.NoError(t, s.Upsert(ctx, "campus", []*Entry{{ID: "p", Text: "t", Embedding: []float32{1, 1}}}))
	require.NoError(t, s.Close(ctx))

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close(ctx)
	require.NoError(t, s.EnsureCollection(ctx, "campus", 2))
	n, err := s.Count(ctx, "campus")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestVectorCodec(t *testing.T) {
	v := []float32{0, -1.5, 3.25, 1e-7}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}
