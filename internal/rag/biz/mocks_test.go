package biz

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/campus-qa/internal/rag/store"
	"github.com/kart-io/campus-qa/pkg/llm"
)

// testVocab 关键词词表，mockEmbedder 按词频生成向量。
var testVocab = []string{"admission", "tuition", "library", "hours", "parking", "deadline", "housing", "scholarship"}

const testDim = 9

type mockEmbedder struct {
	calls atomic.Int32
	texts atomic.Int32
	err   error
	// failOn 任一文本包含该标记时返回错误。
	failOn string
}

func (m *mockEmbedder) vector(text string) []float32 {
	l := strings.ToLower(text)
	v := make([]float32, testDim)
	for i, w := range testVocab {
		v[i] = float32(strings.Count(l, w))
	}
	v[testDim-1] = 0.05
	return v
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	m.texts.Add(int32(len(texts)))
	if m.err != nil {
		return nil, m.err
	}
	for _, t := range texts {
		if m.failOn != "" && strings.Contains(t, m.failOn) {
			return nil, errors.New("embedding rejected")
		}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vs, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (m *mockEmbedder) Name() string { return "mock" }

type mockChat struct {
	mu       sync.Mutex
	calls    int
	requests []*llm.GenerateRequest
	reply    string
	err      error
}

func (m *mockChat) Generate(_ context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &llm.GenerateResponse{
		Content:    m.reply,
		TokenUsage: &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (m *mockChat) Name() string { return "mock-chat" }

func (m *mockChat) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// failingStore 所有操作返回错误。
type failingStore struct{}

var errStoreDown = errors.New("store unavailable")

func (failingStore) EnsureCollection(context.Context, string, int) error { return errStoreDown }
func (failingStore) Upsert(context.Context, string, []*store.Entry) error { return errStoreDown }
func (failingStore) Search(context.Context, string, []float32, int) ([]*store.Hit, error) {
	return nil, errStoreDown
}
func (failingStore) DropCollection(context.Context, string) error { return errStoreDown }
func (failingStore) Count(context.Context, string) (int64, error) { return 0, errStoreDown }
func (failingStore) Close(context.Context) error                  { return nil }

const testCollection = "campus_test"

func newSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	require.NoError(t, s.EnsureCollection(context.Background(), testCollection, testDim))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}
