package biz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newTestCache(t *testing.T) (*miniredis.Miniredis, *QueryCache) {
	mr, client := newTestRedis(t)
	return mr, NewQueryCache(client, &QueryCacheConfig{Enabled: true, TTL: time.Hour, KeyPrefix: "qa:answer:"})
}

func TestQueryCache_RoundTripNormalizesQuestion(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	ans := &Answer{
		Text:      "- March 1\n\n**Citations:**\n- [Admissions](https://e.edu/admissions)",
		Citations: []Citation{{Title: "Admissions", URL: "https://e.edu/admissions"}},
		State:     StateGenerate,
		Cached:    true,
	}
	require.NoError(t, cache.Set(ctx, "When is the  deadline?", ans))

	got, err := cache.Get(ctx, "  when is the deadline? ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ans.Text, got.Text)
	assert.Equal(t, ans.Citations, got.Citations)
	assert.False(t, got.Cached)
}

func TestQueryCache_OnlyGeneratedAnswersAreStored(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	for _, state := range []AnswerState{StateNoHits, StateLowConfidence, StateRetrievalFailed, StateStructuredGap, StateGenerationFailed} {
		require.NoError(t, cache.Set(ctx, "q", &Answer{Text: "x", State: state}))
	}
	assert.Empty(t, mr.Keys())

	got, err := cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQueryCache_TTL(t *testing.T) {
	mr, cache := newTestCache(t)
	require.NoError(t, cache.Set(context.Background(), "q", &Answer{Text: "x", State: StateGenerate}))
	require.Len(t, mr.Keys(), 1)
	assert.Equal(t, time.Hour, mr.TTL(mr.Keys()[0]))

	mr.FastForward(2 * time.Hour)
	assert.Empty(t, mr.Keys())
}

func TestQueryCache_CorruptEntryIsDropped(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, mr.Set(cache.key("q"), "{not json"))

	got, err := cache.Get(ctx, "q")
	assert.Error(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists(cache.key("q")))
}

func TestQueryCache_Clear(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()
	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Set(ctx, q, &Answer{Text: q, State: StateGenerate}))
	}
	require.NoError(t, mr.Set("other:key", "keep"))

	n, err := cache.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"other:key"}, mr.Keys())
}

func TestQueryCache_DisabledIsNoop(t *testing.T) {
	var nilCache *QueryCache
	got, err := nilCache.Get(context.Background(), "q")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, nilCache.Set(context.Background(), "q", &Answer{State: StateGenerate}))

	off := NewQueryCache(nil, &QueryCacheConfig{Enabled: true})
	n, err := off.Clear(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, n)
}
