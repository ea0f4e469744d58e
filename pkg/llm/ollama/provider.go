// Package ollama 提供本地 Ollama 供应商实现。
package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kart-io/campus-qa/pkg/llm"
	"github.com/kart-io/campus-qa/pkg/utils/httpclient"
)

const ProviderName = "ollama"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Ollama 供应商配置。
type Config struct {
	BaseURL    string
	EmbedModel string
	ChatModel  string
	Timeout    time.Duration
	MaxRetries int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:11434",
		EmbedModel: "nomic-embed-text",
		ChatModel:  "llama3.1",
		Timeout:    120 * time.Second,
		MaxRetries: 1,
	}
}

// Provider Ollama 供应商实现。
type Provider struct {
	config *Config
	client *resty.Client
}

// NewProvider 从配置 map 创建 Ollama 供应商。
func NewProvider(cfg map[string]any) (llm.Provider, error) {
	d := DefaultConfig()
	return NewProviderWithConfig(&Config{
		BaseURL:    llm.ConfigString(cfg, "base_url", d.BaseURL),
		EmbedModel: llm.ConfigString(cfg, "embed_model", d.EmbedModel),
		ChatModel:  llm.ConfigString(cfg, "chat_model", d.ChatModel),
		Timeout:    llm.ConfigDuration(cfg, "timeout", d.Timeout),
		MaxRetries: llm.ConfigInt(cfg, "max_retries", d.MaxRetries),
	}), nil
}

// NewProviderWithConfig 使用结构化配置创建供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.New(httpclient.Config{
			BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string { return ProviderName }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 调用 /api/embed。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out embedResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(embedRequest{Model: p.config.EmbedModel, Input: texts}).
		SetResult(&out).
		Post("/api/embed")
	if err := httpclient.CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

// EmbedSingle 为单个文本生成向量。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message         llm.Message `json:"message"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Generate 调用 /api/chat（非流式）。
func (p *Provider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	var out chatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:    p.config.ChatModel,
			Messages: req.Messages(),
			Options:  chatOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
		}).
		SetResult(&out).
		Post("/api/chat")
	if err := httpclient.CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	return &llm.GenerateResponse{
		Content: out.Message.Content,
		TokenUsage: &llm.TokenUsage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}

var _ llm.Provider = (*Provider)(nil)
