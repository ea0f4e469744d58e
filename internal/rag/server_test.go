package ragsvc

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/campus-qa/internal/rag/biz"
	"github.com/kart-io/campus-qa/internal/rag/store"
	"github.com/kart-io/campus-qa/pkg/auth/jwt"
	"github.com/kart-io/campus-qa/pkg/errors"
	"github.com/kart-io/campus-qa/pkg/llm"
	cacheopts "github.com/kart-io/campus-qa/pkg/options/cache"
	feedbackopts "github.com/kart-io/campus-qa/pkg/options/feedback"
	fetcheropts "github.com/kart-io/campus-qa/pkg/options/fetcher"
	httpopts "github.com/kart-io/campus-qa/pkg/options/http"
	jwtopts "github.com/kart-io/campus-qa/pkg/options/jwt"
	llmopts "github.com/kart-io/campus-qa/pkg/options/llm"
	logopts "github.com/kart-io/campus-qa/pkg/options/logger"
	milvusopts "github.com/kart-io/campus-qa/pkg/options/milvus"
	qaopts "github.com/kart-io/campus-qa/pkg/options/qa"
	redisopts "github.com/kart-io/campus-qa/pkg/options/redis"
	storeopts "github.com/kart-io/campus-qa/pkg/options/store"
	usageopts "github.com/kart-io/campus-qa/pkg/options/usage"
)

const testProvider = "wiring-test"

// keywordProvider embeds text by which of four topic words it mentions.
type keywordProvider struct{}

var topics = []string{"tuition", "library", "parking", "housing"}

func (keywordProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(topics))
		for j, w := range topics {
			if strings.Contains(strings.ToLower(t), w) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func (p keywordProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (keywordProvider) Generate(_ context.Context, _ *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return &llm.GenerateResponse{Content: "- Tuition is listed on the tuition page."}, nil
}

func (keywordProvider) Name() string { return testProvider }

func init() {
	gin.SetMode(gin.TestMode)
	llm.RegisterProvider(testProvider, func(map[string]any) (llm.Provider, error) {
		return keywordProvider{}, nil
	})
}

func testStoreOptions(t *testing.T) *storeopts.Options {
	opts := storeopts.NewOptions()
	opts.Backend = storeopts.BackendSQLite
	opts.SQLitePath = filepath.Join(t.TempDir(), "index.db")
	opts.Dimension = len(topics)
	return opts
}

func testProviderOptions() *llmopts.ProviderOptions {
	opts := llmopts.NewEmbeddingOptions()
	opts.Provider = testProvider
	opts.Model = "test"
	return opts
}

func testFetcherOptions() *fetcheropts.Options {
	opts := fetcheropts.NewOptions()
	opts.AllowedDomains = nil
	opts.Delay = 0
	opts.MaxRetries = 0
	return opts
}

func disabledRedis() *redisopts.Options {
	opts := redisopts.NewOptions()
	opts.Enabled = false
	return opts
}

var testJWTKey = strings.Repeat("k", jwtopts.MinKeyLength)

func testJWTOptions() *jwtopts.Options {
	opts := jwtopts.NewOptions()
	opts.Key = testJWTKey
	return opts
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	qa := qaopts.NewOptions()
	qa.OffTopicFilter = false
	fb := feedbackopts.NewOptions()
	fb.Path = filepath.Join(t.TempDir(), "feedback.db")
	usage := usageopts.NewOptions()
	usage.DeviceLimit = 1

	cfg := &Config{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		RedisOptions:     disabledRedis(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: testProviderOptions(),
		ChatOptions:      testProviderOptions(),
		QAOptions:        qa,
		FetcherOptions:   testFetcherOptions(),
		StoreOptions:     testStoreOptions(t),
		CacheOptions:     cacheopts.NewOptions(),
		UsageOptions:     usage,
		FeedbackOptions:  fb,
		JWTOptions:       testJWTOptions(),
		EnableIngest:     true,
	}
	s, err := cfg.NewServer(context.Background())
	require.NoError(t, err)
	t.Cleanup(s.closers.closeAll)
	return s
}

type envelope struct {
	Code int                `json:"code"`
	Data stdjson.RawMessage `json:"data"`
}

func call(t *testing.T, s *Server, method, path string, body any) (int, envelope) {
	t.Helper()
	return callWithToken(t, s, method, path, body, "")
}

func callWithToken(t *testing.T, s *Server, method, path string, body any, token string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, stdjson.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "wiring-test")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.srv.Engine().ServeHTTP(w, req)

	var env envelope
	require.NoError(t, stdjson.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestNewServer_Routes(t *testing.T) {
	s := newTestServer(t)

	code, _ := call(t, s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env := call(t, s, http.MethodPost, "/v1/qa/ask", map[string]string{"question": "How much is tuition?"})
	require.Equal(t, http.StatusOK, code)
	var ans biz.Answer
	require.NoError(t, stdjson.Unmarshal(env.Data, &ans))
	assert.Equal(t, biz.StateNoHits, ans.State)
	assert.Equal(t, biz.NotAvailableReply, ans.Text)

	code, env = call(t, s, http.MethodPost, "/v1/qa/ask", map[string]string{"question": "How much is tuition?"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, errors.ErrDeviceQuotaExceeded.Code, env.Code)

	code, _ = call(t, s, http.MethodPost, "/v1/qa/feedback", map[string]string{"question": "q", "rating": "positive"})
	assert.Equal(t, http.StatusOK, code)

	code, env = call(t, s, http.MethodGet, "/v1/qa/stats", nil)
	require.Equal(t, http.StatusOK, code)
	var stats biz.IndexStats
	require.NoError(t, stdjson.Unmarshal(env.Data, &stats))
	require.NotNil(t, stats.Workers)
	assert.Equal(t, "ingest", stats.Workers.Name)
	assert.Equal(t, testFetcherOptions().Workers, stats.Workers.Capacity)
}

func TestNewServer_AdminRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	code, env := call(t, s, http.MethodDelete, "/v1/qa/cache", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, errors.ErrUnauthorized.Code, env.Code)

	code, env = call(t, s, http.MethodPost, "/v1/qa/ingest", map[string][]string{"urls": {"https://www.example.edu/"}})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, errors.ErrUnauthorized.Code, env.Code)

	code, env = callWithToken(t, s, http.MethodDelete, "/v1/qa/cache", nil, "forged.token.value")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, errors.ErrInvalidToken.Code, env.Code)

	signer, err := jwt.New(jwt.WithOptions(testJWTOptions()))
	require.NoError(t, err)
	token, err := signer.Sign(context.Background(), "ops")
	require.NoError(t, err)

	code, _ = callWithToken(t, s, http.MethodDelete, "/v1/qa/cache", nil, token.AccessToken)
	assert.Equal(t, http.StatusOK, code)
}

func TestNewServer_IngestNeedsSigningKey(t *testing.T) {
	cfg := &Config{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		RedisOptions:     disabledRedis(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: testProviderOptions(),
		ChatOptions:      testProviderOptions(),
		QAOptions:        qaopts.NewOptions(),
		FetcherOptions:   testFetcherOptions(),
		StoreOptions:     testStoreOptions(t),
		CacheOptions:     cacheopts.NewOptions(),
		UsageOptions:     usageopts.NewOptions(),
		FeedbackOptions:  feedbackopts.NewOptions(),
		EnableIngest:     true,
	}
	cfg.FeedbackOptions.Enabled = false
	_, err := cfg.NewServer(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin authentication")
}

func TestRunIngest(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Tuition</title></head><body><main>
<h1>Tuition and fees</h1><p>Tuition is $300 per credit hour for all students.</p>
</main></body></html>`))
	}))
	defer site.Close()

	seeds := filepath.Join(t.TempDir(), "seeds.txt")
	require.NoError(t, os.WriteFile(seeds, []byte("# campus pages\n"+site.URL+"/tuition\n"), 0o600))

	cfg := &IngestConfig{
		LogOptions:       logopts.NewOptions(),
		RedisOptions:     disabledRedis(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: testProviderOptions(),
		QAOptions:        qaopts.NewOptions(),
		FetcherOptions:   testFetcherOptions(),
		StoreOptions:     testStoreOptions(t),
		CacheOptions:     cacheopts.NewOptions(),
		SeedFiles:        []string{seeds},
		URLs:             []string{site.URL + "/tuition"},
	}
	report, err := cfg.RunIngest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.URLs)
	assert.Empty(t, report.Failures)
	require.Len(t, report.Documents, 1)
	assert.Positive(t, report.Passages)
}

func TestRunIngest_NoSeeds(t *testing.T) {
	cfg := &IngestConfig{LogOptions: logopts.NewOptions()}
	_, err := cfg.RunIngest(context.Background())
	assert.ErrorIs(t, err, errors.ErrNoSeedURLs)
}

func TestRunIngest_RawDirAndRebuild(t *testing.T) {
	raw := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(raw, "parking.txt"), []byte("Parking permits are sold at the campus police office."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(raw, "library.txt"), []byte("The library is open until midnight during finals."), 0o600))

	storeOpts := testStoreOptions(t)
	newConfig := func(rebuild bool) *IngestConfig {
		return &IngestConfig{
			LogOptions:       logopts.NewOptions(),
			RedisOptions:     disabledRedis(),
			MilvusOptions:    milvusopts.NewOptions(),
			EmbeddingOptions: testProviderOptions(),
			QAOptions:        qaopts.NewOptions(),
			FetcherOptions:   testFetcherOptions(),
			StoreOptions:     storeOpts,
			CacheOptions:     cacheopts.NewOptions(),
			RawDir:           raw,
			Rebuild:          rebuild,
		}
	}

	report, err := newConfig(false).RunIngest(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.URLs)
	require.Len(t, report.Documents, 2)
	for _, d := range report.Documents {
		assert.True(t, strings.HasPrefix(d.URL, biz.LocalSourceScheme), d.URL)
		assert.Equal(t, biz.KindText, d.Kind)
	}

	require.NoError(t, os.Remove(filepath.Join(raw, "library.txt")))
	report, err = newConfig(true).RunIngest(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Documents, 1)

	s, err := store.New(context.Background(), storeOpts, milvusopts.NewOptions())
	require.NoError(t, err)
	defer s.Close(context.Background())
	n, err := s.Count(context.Background(), storeOpts.Collection)
	require.NoError(t, err)
	assert.Equal(t, int64(report.Passages), n, "rebuild drops passages of removed files")
}
