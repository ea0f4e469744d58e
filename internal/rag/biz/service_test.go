package biz

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGate struct {
	err   error
	calls int
}

func (g *stubGate) Allow(context.Context) error {
	g.calls++
	return g.err
}

type serviceFixture struct {
	svc      *Service
	chat     *mockChat
	embedder *mockEmbedder
	gate     *stubGate
}

func newServiceFixture(t *testing.T, cache *QueryCache, texts ...string) *serviceFixture {
	t.Helper()
	vs := newSQLiteStore(t)
	embedder := &mockEmbedder{}
	if len(texts) > 0 {
		seedStore(t, vs, embedder, texts...)
	}
	chat := &mockChat{reply: "- The deadline is March 1."}
	gate := &stubGate{}

	indexer := NewIndexer(vs, embedder, nil, NewChunker(1200, 200, "campus"), newTestPool(t), &IndexerConfig{Collection: testCollection})
	svc := NewService(
		NewRetriever(vs, embedder, &RetrieverConfig{Collection: testCollection}),
		newTestAnswerer(chat),
		indexer,
		cache,
		gate,
		&ServiceConfig{Collection: testCollection, OffTopic: KeywordFilter()},
	)
	return &serviceFixture{svc: svc, chat: chat, embedder: embedder, gate: gate}
}

func TestService_AskGenerates(t *testing.T) {
	f := newServiceFixture(t, nil, "admission deadline is March 1", "parking permits")
	ans, err := f.svc.Ask(context.Background(), "What is the admission deadline?")
	require.NoError(t, err)

	assert.Equal(t, StateGenerate, ans.State)
	assert.Contains(t, ans.Text, "**Citations:**")
	assert.Len(t, ans.Sources, 2)
	assert.Equal(t, "admission deadline is March 1", ans.Sources[0].Preview)
	assert.Equal(t, 1, f.gate.calls)
}

func TestService_EmptyQuestion(t *testing.T) {
	f := newServiceFixture(t, nil)
	_, err := f.svc.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Zero(t, f.gate.calls)
}

func TestService_GateRejectionStopsPipeline(t *testing.T) {
	f := newServiceFixture(t, nil, "admission deadline")
	f.gate.err = errors.New("quota exceeded")

	_, err := f.svc.Ask(context.Background(), "admission deadline?")
	assert.EqualError(t, err, "quota exceeded")
	assert.Zero(t, f.embedder.calls.Load())
	assert.Zero(t, f.chat.callCount())
}

func TestService_OffTopicRefusal(t *testing.T) {
	f := newServiceFixture(t, nil, "admission deadline")
	ans, err := f.svc.Ask(context.Background(), "Write me a poem about the sea")
	require.NoError(t, err)
	assert.Equal(t, StateOffTopic, ans.State)
	assert.Equal(t, OffTopicReply, ans.Text)
	assert.Zero(t, f.embedder.calls.Load())
	assert.Zero(t, f.chat.callCount())
}

func TestService_EmptyIndex(t *testing.T) {
	f := newServiceFixture(t, nil)
	ans, err := f.svc.Ask(context.Background(), "What is the tuition?")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, the information is not available.", ans.Text)
	assert.Empty(t, ans.Citations)
	assert.Empty(t, ans.Sources)
	assert.Zero(t, f.chat.callCount())
}

func TestService_RetrievalFailureDegrades(t *testing.T) {
	f := newServiceFixture(t, nil, "admission deadline")
	f.embedder.err = errors.New("embedding quota")

	ans, err := f.svc.Ask(context.Background(), "admission deadline?")
	require.NoError(t, err)
	assert.Equal(t, StateRetrievalFailed, ans.State)
	assert.Equal(t, NotAvailableReply, ans.Text)
}

func TestService_CachesGeneratedAnswers(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewQueryCache(client, &QueryCacheConfig{Enabled: true, TTL: time.Hour, KeyPrefix: "qa:answer:"})
	f := newServiceFixture(t, cache, "admission deadline is March 1")

	first, err := f.svc.Ask(context.Background(), "Admission deadline?")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := f.svc.Ask(context.Background(), "admission   deadline?")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, 1, f.chat.callCount())
	assert.Len(t, mr.Keys(), 1)
	assert.Equal(t, 2, f.gate.calls, "cached answers still count against the quota")

	n, err := f.svc.ClearCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_FallbackAnswersAreNotCached(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewQueryCache(client, &QueryCacheConfig{Enabled: true, TTL: time.Hour, KeyPrefix: "qa:answer:"})
	f := newServiceFixture(t, cache)

	for i := 0; i < 2; i++ {
		ans, err := f.svc.Ask(context.Background(), "What is the tuition?")
		require.NoError(t, err)
		assert.Equal(t, StateNoHits, ans.State)
		assert.False(t, ans.Cached)
	}
	assert.Empty(t, mr.Keys())
}

func TestService_PreviewsAreTruncated(t *testing.T) {
	long := "tuition " + strings.Repeat("x", 400)
	f := newServiceFixture(t, nil, long)

	ans, err := f.svc.Ask(context.Background(), "tuition?")
	require.NoError(t, err)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, 220, len([]rune(ans.Sources[0].Preview)))
	assert.True(t, strings.HasSuffix(ans.Sources[0].Preview, "…"))
}

func TestService_Stats(t *testing.T) {
	f := newServiceFixture(t, nil, "a", "b")
	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testCollection, stats.Collection)
	assert.EqualValues(t, 2, stats.Entries)
}
