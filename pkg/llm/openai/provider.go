// Package openai 提供 OpenAI 兼容接口的供应商实现。
package openai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kart-io/campus-qa/pkg/llm"
	"github.com/kart-io/campus-qa/pkg/utils/httpclient"
)

const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	ChatModel  string
	Timeout    time.Duration
	MaxRetries int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  "gpt-4o-mini",
		Timeout:    60 * time.Second,
		MaxRetries: 2,
	}
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config *Config
	client *resty.Client
}

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(cfg map[string]any) (llm.Provider, error) {
	d := DefaultConfig()
	c := &Config{
		BaseURL:    llm.ConfigString(cfg, "base_url", d.BaseURL),
		APIKey:     llm.ConfigString(cfg, "api_key", ""),
		EmbedModel: llm.ConfigString(cfg, "embed_model", d.EmbedModel),
		ChatModel:  llm.ConfigString(cfg, "chat_model", d.ChatModel),
		Timeout:    llm.ConfigDuration(cfg, "timeout", d.Timeout),
		MaxRetries: llm.ConfigInt(cfg, "max_retries", d.MaxRetries),
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key is required")
	}
	return NewProviderWithConfig(c), nil
}

// NewProviderWithConfig 使用结构化配置创建供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	client := httpclient.New(httpclient.Config{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	})
	client.SetAuthToken(cfg.APIKey)
	return &Provider{config: cfg, client: client}
}

// Name 返回供应商名称。
func (p *Provider) Name() string { return ProviderName }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed 调用 /embeddings，按 index 排序返回。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out embeddingResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(embeddingRequest{Model: p.config.EmbedModel, Input: texts}).
		SetResult(&out).
		Post("/embeddings")
	if err := httpclient.CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d texts", len(out.Data), len(texts))
	}

	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// EmbedSingle 为单个文本生成向量。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message llm.Message `json:"message"`
	} `json:"choices"`
	Usage llm.TokenUsage `json:"usage"`
}

// Generate 调用 /chat/completions。
func (p *Provider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	var out chatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       p.config.ChatModel,
			Messages:    req.Messages(),
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err := httpclient.CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("openai chat: empty choices")
	}

	usage := out.Usage
	return &llm.GenerateResponse{Content: out.Choices[0].Message.Content, TokenUsage: &usage}, nil
}

var _ llm.Provider = (*Provider)(nil)
