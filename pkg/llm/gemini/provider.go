// Package gemini 提供 Google Gemini 供应商实现。
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kart-io/campus-qa/pkg/llm"
	"github.com/kart-io/campus-qa/pkg/utils/httpclient"
)

const ProviderName = "gemini"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Gemini 供应商配置。
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
		BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		EmbedModel: "text-embedding-004",
		ChatModel:  "gemini-1.5-flash",
		Timeout:    60 * time.Second,
		MaxRetries: 2,
	}
}

// Provider Gemini 供应商实现。
type Provider struct {
	config *Config
	client *resty.Client
}

// NewProvider 从配置 map 创建 Gemini 供应商。
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
		return nil, fmt.Errorf("gemini: api_key is required")
	}
	return NewProviderWithConfig(c), nil
}

// NewProviderWithConfig 使用结构化配置创建 Gemini 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.New(httpclient.Config{
			BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Headers:    map[string]string{"x-goog-api-key": cfg.APIKey},
		}),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string { return ProviderName }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type embedContentRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type batchEmbedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed 通过 batchEmbedContents 生成向量。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := "models/" + p.config.EmbedModel
	req := batchEmbedRequest{Requests: make([]embedContentRequest, len(texts))}
	for i, t := range texts {
		req.Requests[i] = embedContentRequest{Model: model, Content: content{Parts: []part{{Text: t}}}}
	}

	var out batchEmbedResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/" + model + ":batchEmbedContents")
	if err := httpclient.CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: got %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for i, e := range out.Embeddings {
		vecs[i] = e.Values
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

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Generate 通过 generateContent 生成文本。
func (p *Provider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}

	var out generateResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/models/" + p.config.ChatModel + ":generateContent")
	if err := httpclient.CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(out.Candidates) == 0 {
		return nil, fmt.Errorf("gemini generate: empty candidates")
	}

	var sb strings.Builder
	for _, pt := range out.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}

	return &llm.GenerateResponse{
		Content: sb.String(),
		TokenUsage: &llm.TokenUsage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

var _ llm.Provider = (*Provider)(nil)
