package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/campus-qa/pkg/llm"
	"github.com/kart-io/campus-qa/pkg/utils/json"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "k"
	cfg.Timeout = time.Second
	cfg.MaxRetries = 0
	return NewProviderWithConfig(cfg)
}

func TestProvider_Embed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/text-embedding-004:batchEmbedContents", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))

		var req batchEmbedRequest
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &req))
		assert.Len(t, req.Requests, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[1,0]},{"values":[0,1]}]}`))
	})

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestProvider_Generate(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)

		b, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(b), `"temperature":0`)
		assert.Contains(t, string(b), `"systemInstruction"`)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Open "},{"text":"9am"}]}}],
			"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":2,"totalTokenCount":12}}`))
	})

	resp, err := p.Generate(context.Background(), &llm.GenerateRequest{System: "s", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "Open 9am", resp.Content)
	assert.Equal(t, 12, resp.TokenUsage.TotalTokens)
}

func TestProvider_HTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := p.Generate(context.Background(), &llm.GenerateRequest{Prompt: "p"})
	assert.ErrorContains(t, err, "403")
}

func TestNewProvider_RequiresKey(t *testing.T) {
	_, err := NewProvider(map[string]any{})
	assert.Error(t, err)

	p, err := NewProvider(map[string]any{"api_key": "x", "chat_model": "gemini-2.0-flash"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
}
