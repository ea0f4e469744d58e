package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ name string }

func (s *stubProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (s *stubProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (s *stubProvider) Generate(_ context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	return &GenerateResponse{Content: "echo: " + req.Prompt}, nil
}

func (s *stubProvider) Name() string { return s.name }

func TestRegistry(t *testing.T) {
	RegisterProvider("stub-full", func(map[string]any) (Provider, error) {
		return &stubProvider{name: "stub-full"}, nil
	})
	RegisterEmbeddingProvider("stub-embed", func(map[string]any) (EmbeddingProvider, error) {
		return &stubProvider{name: "stub-embed"}, nil
	})

	e, err := NewEmbeddingProvider("stub-embed", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub-embed", e.Name())

	e, err = NewEmbeddingProvider("stub-full", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub-full", e.Name())

	c, err := NewChatProvider("stub-full", nil)
	require.NoError(t, err)
	resp, err := c.Generate(context.Background(), &GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", resp.Content)

	_, err = NewChatProvider("stub-embed", nil)
	assert.Error(t, err)
	_, err = NewEmbeddingProvider("missing", nil)
	assert.Error(t, err)

	names := ListProviders()
	assert.Contains(t, names, "stub-full")
	assert.Contains(t, names, "stub-embed")
	assert.IsNonDecreasing(t, names)
}

func TestGenerateRequest_Messages(t *testing.T) {
	msgs := (&GenerateRequest{System: "sys", Prompt: "q"}).Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, RoleUser, msgs[1].Role)

	msgs = (&GenerateRequest{Prompt: "q"}).Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "q", msgs[0].Content)
}

func TestConfigHelpers(t *testing.T) {
	cfg := map[string]any{"s": "v", "empty": "", "n": 3, "neg": -1, "d": time.Second}
	assert.Equal(t, "v", ConfigString(cfg, "s", "def"))
	assert.Equal(t, "def", ConfigString(cfg, "empty", "def"))
	assert.Equal(t, 3, ConfigInt(cfg, "n", 9))
	assert.Equal(t, 9, ConfigInt(cfg, "neg", 9))
	assert.Equal(t, time.Second, ConfigDuration(cfg, "d", time.Minute))
	assert.Equal(t, time.Minute, ConfigDuration(cfg, "missing", time.Minute))
}
