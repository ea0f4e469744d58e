package ragsvc

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/campus-qa/internal/rag/biz"
	"github.com/kart-io/campus-qa/internal/rag/store"
	rediscomp "github.com/kart-io/campus-qa/pkg/component/redis"
	"github.com/kart-io/campus-qa/pkg/infra/app"
	"github.com/kart-io/campus-qa/pkg/infra/pool"
	"github.com/kart-io/campus-qa/pkg/infra/tracing"
	"github.com/kart-io/campus-qa/pkg/llm"
	"github.com/kart-io/campus-qa/pkg/llm/resilience"
	cacheopts "github.com/kart-io/campus-qa/pkg/options/cache"
	fetcheropts "github.com/kart-io/campus-qa/pkg/options/fetcher"
	llmopts "github.com/kart-io/campus-qa/pkg/options/llm"
	milvusopts "github.com/kart-io/campus-qa/pkg/options/milvus"
	qaopts "github.com/kart-io/campus-qa/pkg/options/qa"
	redisopts "github.com/kart-io/campus-qa/pkg/options/redis"
	storeopts "github.com/kart-io/campus-qa/pkg/options/store"
	tracingopts "github.com/kart-io/campus-qa/pkg/options/tracing"

	// 注册 LLM 供应商
	_ "github.com/kart-io/campus-qa/pkg/llm/gemini"
	_ "github.com/kart-io/campus-qa/pkg/llm/hugot"
	_ "github.com/kart-io/campus-qa/pkg/llm/ollama"
	_ "github.com/kart-io/campus-qa/pkg/llm/openai"
)

// closers 按注册的逆序释放资源。
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// startTracing 安装全局 tracer provider，退出时刷新未导出的 span。
func startTracing(ctx context.Context, opts *tracingopts.Options, name string, cs *closers) error {
	provider, err := tracing.NewProvider(ctx, opts, name, app.Version())
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	cs.add(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warnw("Failed to flush traces", "error", err.Error())
		}
	})
	if opts != nil && opts.Enabled {
		logger.Infow("Tracing enabled", "exporter", opts.ExporterType, "endpoint", opts.Endpoint)
	}
	return nil
}

// connectRedis 连接 redis。未启用或连接失败时返回 nil，依赖 redis 的功能退化为进程内实现或关闭。
func connectRedis(ctx context.Context, opts *redisopts.Options, cs *closers) *goredis.Client {
	if opts == nil || !opts.Enabled {
		logger.Info("Redis is disabled")
		return nil
	}
	client, err := rediscomp.New(ctx, opts)
	if err != nil {
		logger.Warnw("Failed to connect to redis, continuing without it", "error", err.Error())
		return nil
	}
	cs.add(func() { _ = client.Close() })
	logger.Infow("Redis connected", "addr", opts.Addr())
	return client.Client()
}

func retryConfig(opts *llmopts.ProviderOptions) *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = opts.MaxRetries + 1
	return cfg
}

// newEmbedder 创建 embedding 供应商，按配置叠加重试熔断与 redis 缓存。
func newEmbedder(opts *llmopts.ProviderOptions, cache *cacheopts.Options, redis *goredis.Client, cs *closers) (llm.EmbeddingProvider, error) {
	provider, err := llm.NewEmbeddingProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if c, ok := provider.(io.Closer); ok {
		cs.add(func() { _ = c.Close() })
	}

	var embedder llm.EmbeddingProvider = provider
	if opts.CircuitBreaker {
		embedder = resilience.WrapEmbedding(embedder, retryConfig(opts), resilience.DefaultBreakerConfig())
	}
	if redis != nil && cache != nil && cache.EmbeddingEnabled {
		embedder = llm.NewCachedEmbeddingProvider(embedder, redis, &llm.EmbeddingCacheConfig{
			TTL:       cache.EmbeddingTTL,
			KeyPrefix: "qa:emb:",
		})
	}

	logger.Infow("Embedding provider initialized",
		"provider", opts.Provider,
		"model", opts.Model,
		"resilient", opts.CircuitBreaker,
		"cached", redis != nil && cache != nil && cache.EmbeddingEnabled,
	)
	return embedder, nil
}

// newChat 创建对话供应商。
func newChat(opts *llmopts.ProviderOptions) (llm.ChatProvider, error) {
	provider, err := llm.NewChatProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	var chat llm.ChatProvider = provider
	if opts.CircuitBreaker {
		chat = resilience.WrapChat(chat, retryConfig(opts), resilience.DefaultBreakerConfig())
	}
	logger.Infow("Chat provider initialized", "provider", opts.Provider, "model", opts.Model)
	return chat, nil
}

// openStore 打开向量索引。
func openStore(ctx context.Context, opts *storeopts.Options, mopts *milvusopts.Options, cs *closers) (store.VectorStore, error) {
	vs, err := store.New(ctx, opts, mopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s index: %w", opts.Backend, err)
	}
	cs.add(func() { _ = vs.Close(context.Background()) })
	logger.Infow("Vector store ready", "backend", opts.Backend, "collection", opts.Collection, "dimension", opts.Dimension)
	return vs, nil
}

// newIndexer 组装抓取、切分与写入，协程池大小取自抓取配置。
func newIndexer(
	vs store.VectorStore,
	embedder llm.EmbeddingProvider,
	fopts *fetcheropts.Options,
	qopts *qaopts.Options,
	sopts *storeopts.Options,
	cs *closers,
) (*biz.Indexer, error) {
	poolCfg := pool.DefaultConfig()
	poolCfg.Capacity = fopts.Workers
	workers, err := pool.New("ingest", poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest pool: %w", err)
	}
	cs.add(func() { _ = workers.Release(10 * time.Second) })

	fetcher := biz.NewFetcher(&biz.FetcherConfig{
		AllowedDomains: fopts.AllowedDomains,
		UserAgent:      fopts.UserAgent,
		PageTimeout:    fopts.PageTimeout,
		PDFTimeout:     fopts.PDFTimeout,
		Delay:          fopts.Delay,
		MaxRetries:     fopts.MaxRetries,
		FollowPDFs:     fopts.FollowPDFs,
		MaxPDFBytes:    fopts.MaxPDFBytes,
	})
	chunker := biz.NewChunker(qopts.ChunkSize, qopts.ChunkOverlap, qopts.SourcePrefix)

	return biz.NewIndexer(vs, embedder, fetcher, chunker, workers, &biz.IndexerConfig{
		Collection: sopts.Collection,
		BatchSize:  sopts.BatchSize,
	}), nil
}
