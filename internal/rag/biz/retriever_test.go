package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/campus-qa/internal/rag/store"
)

func seedStore(t *testing.T, vs store.VectorStore, embedder *mockEmbedder, texts ...string) {
	t.Helper()
	entries := make([]*store.Entry, len(texts))
	for i, text := range texts {
		entries[i] = &store.Entry{
			ID:        fmt.Sprintf("campus:seed:%d", i),
			Text:      text,
			URL:       fmt.Sprintf("https://www.example.edu/page-%d", i),
			Title:     fmt.Sprintf("Page %d", i),
			Embedding: embedder.vector(text),
		}
	}
	require.NoError(t, vs.Upsert(context.Background(), testCollection, entries))
}

func TestRetriever_KBoundAndOrdering(t *testing.T) {
	vs := newSQLiteStore(t)
	embedder := &mockEmbedder{}
	seedStore(t, vs, embedder,
		"parking permits",
		"tuition tuition tuition and fees",
		"tuition deadline",
		"library hours",
		"housing and tuition",
		"scholarship deadline",
	)
	r := NewRetriever(vs, embedder, &RetrieverConfig{Collection: testCollection})

	for _, k := range []int{1, 3, 5} {
		hits, err := r.Retrieve(context.Background(), "tuition", k)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(hits), k)
		assert.Len(t, hits, k)
		for i := 1; i < len(hits); i++ {
			assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
		}
		assert.Contains(t, hits[0].Text, "tuition")
	}

	hits, err := r.Retrieve(context.Background(), "tuition", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 6, "default k of 8 bounded by index size")
}

func TestRetriever_ScoreIsCosineSimilarity(t *testing.T) {
	vs := newSQLiteStore(t)
	embedder := &mockEmbedder{}
	seedStore(t, vs, embedder, "library hours")
	r := NewRetriever(vs, embedder, &RetrieverConfig{Collection: testCollection, TopK: 8})

	hits, err := r.Retrieve(context.Background(), "library hours", 8)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.Equal(t, "https://www.example.edu/page-0", hits[0].URL)
	assert.Equal(t, "Page 0", hits[0].Title)
}

func TestRetriever_EmptyIndex(t *testing.T) {
	r := NewRetriever(newSQLiteStore(t), &mockEmbedder{}, &RetrieverConfig{Collection: testCollection})
	hits, err := r.Retrieve(context.Background(), "anything", 8)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestRetriever_Errors(t *testing.T) {
	r := NewRetriever(newSQLiteStore(t), &mockEmbedder{err: errors.New("embed down")}, &RetrieverConfig{Collection: testCollection})
	_, err := r.Retrieve(context.Background(), "q", 8)
	var re *RetrievalError
	require.True(t, errors.As(err, &re))
	var ee *EmbeddingError
	assert.True(t, errors.As(err, &ee))

	r = NewRetriever(failingStore{}, &mockEmbedder{}, &RetrieverConfig{Collection: testCollection})
	_, err = r.Retrieve(context.Background(), "q", 8)
	require.True(t, errors.As(err, &re))
	var ie *IndexError
	assert.True(t, errors.As(err, &ie))
	assert.Equal(t, "search", ie.Op)
}

func TestRetriever_QueryDimensionMismatch(t *testing.T) {
	vs := newSQLiteStore(t)
	require.NoError(t, vs.EnsureCollection(context.Background(), "narrow", 4))
	r := NewRetriever(vs, &mockEmbedder{}, &RetrieverConfig{Collection: "narrow"})

	_, err := r.Retrieve(context.Background(), "tuition", 8)
	var re *RetrievalError
	require.True(t, errors.As(err, &re))
	var ie *IndexError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "narrow", ie.Collection)
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)
}
