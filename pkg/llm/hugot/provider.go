// Package hugot 提供基于 hugot 的本地 Embedding 供应商，无需外部服务。
// 默认使用 sentence-transformers/all-MiniLM-L6-v2（384 维）。
package hugot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/kart-io/logger"

	"github.com/kart-io/campus-qa/pkg/llm"
)

const (
	ProviderName = "hugot"
	DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"
)

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Provider 本地 Embedding 供应商。
type Provider struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	// pipeline 非并发安全
	mu sync.Mutex
}

// NewProvider 从配置 map 创建供应商，模型不存在时下载到 model_dir。
func NewProvider(cfg map[string]any) (llm.EmbeddingProvider, error) {
	model := llm.ConfigString(cfg, "embed_model", DefaultModel)
	dir := llm.ConfigString(cfg, "model_dir", "_output/models")

	path, err := prepareModel(model, dir)
	if err != nil {
		return nil, err
	}
	return NewProviderFromPath(path)
}

// NewProviderFromPath 从本地模型目录创建供应商。
func NewProviderFromPath(modelPath string) (*Provider, error) {
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("hugot: create session: %w", err)
	}

	pipe, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "campus-qa-embedder",
	})
	if err != nil {
		_ = session.Destroy()
		return nil, fmt.Errorf("hugot: create pipeline: %w", err)
	}

	return &Provider{session: session, pipeline: pipe}, nil
}

func prepareModel(model, dir string) (string, error) {
	path := filepath.Join(dir, strings.ReplaceAll(model, "/", "_"))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("hugot: create model dir: %w", err)
	}
	logger.Infow("downloading embedding model", "model", model, "dir", dir)

	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	downloaded, err := hugot.DownloadModel(model, dir, opts)
	if err != nil {
		return "", fmt.Errorf("hugot: download %s: %w", model, err)
	}
	return downloaded, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string { return ProviderName }

// Embed 在本地计算向量。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	out, err := p.pipeline.RunPipeline(texts)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("hugot: run pipeline: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("hugot: got %d embeddings for %d texts", len(out.Embeddings), len(texts))
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

// Close 释放 hugot 会话。
func (p *Provider) Close() error {
	return p.session.Destroy()
}

var _ llm.EmbeddingProvider = (*Provider)(nil)
