// Package ragsvc assembles the campus QA service: index, retrieval, answering,
// usage limits, feedback and the HTTP surface.
package ragsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/campus-qa/internal/rag/biz"
	"github.com/kart-io/campus-qa/internal/rag/feedback"
	"github.com/kart-io/campus-qa/internal/rag/handler"
	"github.com/kart-io/campus-qa/internal/rag/metrics"
	"github.com/kart-io/campus-qa/internal/rag/router"
	"github.com/kart-io/campus-qa/internal/rag/usage"
	"github.com/kart-io/campus-qa/pkg/auth/jwt"
	"github.com/kart-io/campus-qa/pkg/infra/app"
	"github.com/kart-io/campus-qa/pkg/infra/middleware/auth"
	"github.com/kart-io/campus-qa/pkg/infra/server"
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
	tracingopts "github.com/kart-io/campus-qa/pkg/options/tracing"
	usageopts "github.com/kart-io/campus-qa/pkg/options/usage"
)

// Name is the name of the application.
const Name = "qa-server"

// AssistantName is the identity used in the generation prompt.
const AssistantName = "the university's website assistant"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	RedisOptions     *redisopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	QAOptions        *qaopts.Options
	FetcherOptions   *fetcheropts.Options
	StoreOptions     *storeopts.Options
	CacheOptions     *cacheopts.Options
	UsageOptions     *usageopts.Options
	FeedbackOptions  *feedbackopts.Options
	TracingOptions   *tracingopts.Options
	// JWTOptions 管理接口的令牌配置，仅在 EnableIngest 时使用。
	JWTOptions *jwtopts.Options
	// EnableIngest 是否开放 POST /v1/qa/ingest 与缓存清理接口。
	EnableIngest bool
}

// Server represents the QA server.
type Server struct {
	srv     *server.Server
	closers closers
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.Version())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting QA service...")

	var cs closers
	fail := func(err error) (*Server, error) {
		cs.closeAll()
		return nil, err
	}

	if err := startTracing(ctx, cfg.TracingOptions, Name, &cs); err != nil {
		return fail(err)
	}

	// 2. Redis（查询缓存、嵌入缓存、用量计数共用）
	redisClient := connectRedis(ctx, cfg.RedisOptions, &cs)

	// 3. LLM 供应商
	embedder, err := newEmbedder(cfg.EmbeddingOptions, cfg.CacheOptions, redisClient, &cs)
	if err != nil {
		return fail(err)
	}
	chat, err := newChat(cfg.ChatOptions)
	if err != nil {
		return fail(err)
	}

	// 4. 向量索引
	vectorStore, err := openStore(ctx, cfg.StoreOptions, cfg.MilvusOptions, &cs)
	if err != nil {
		return fail(err)
	}

	// 5. Biz 层
	indexer, err := newIndexer(vectorStore, embedder, cfg.FetcherOptions, cfg.QAOptions, cfg.StoreOptions, &cs)
	if err != nil {
		return fail(err)
	}
	retriever := biz.NewRetriever(vectorStore, embedder, &biz.RetrieverConfig{
		TopK:       cfg.QAOptions.TopK,
		Collection: cfg.StoreOptions.Collection,
	})
	answerer := biz.NewAnswerer(chat, &biz.AnswererConfig{
		ConfidenceFloor:  cfg.QAOptions.ConfidenceFloor,
		CitationCount:    cfg.QAOptions.CitationCount,
		Temperature:      cfg.ChatOptions.Temperature,
		MaxTokens:        cfg.ChatOptions.MaxTokens,
		Timeout:          cfg.ChatOptions.Timeout,
		AssistantName:    AssistantName,
		HoursGuidanceURL: cfg.QAOptions.HoursGuidanceURL,
		StructuredGap:    biz.HoursWithoutTimes,
	})

	var queryCache *biz.QueryCache
	if redisClient != nil && cfg.CacheOptions.QueryEnabled {
		queryCache = biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.QueryTTL,
			KeyPrefix: cfg.CacheOptions.QueryKeyPrefix,
		})
	}

	// 6. 用量限制
	var limiter *usage.Limiter
	var gate biz.Gate
	if cfg.UsageOptions.Enabled {
		var counter usage.Store = usage.NewMemoryStore()
		if redisClient != nil {
			counter = usage.NewRedisStore(redisClient)
		} else {
			logger.Warn("Usage counters are kept in memory and reset on restart")
		}
		limiter = usage.NewLimiter(counter,
			usage.Chain(usage.HeaderFingerprint(cfg.UsageOptions.TrustProxyHeaders), usage.RandomFingerprint()),
			&usage.Config{
				DeviceLimit:     cfg.UsageOptions.DeviceLimit,
				GlobalLimit:     cfg.UsageOptions.GlobalLimit,
				AlertThresholds: cfg.UsageOptions.AlertThresholds,
				KeyPrefix:       cfg.UsageOptions.KeyPrefix,
			})
		gate = limiter
	}

	var offTopic biz.Predicate
	if cfg.QAOptions.OffTopicFilter {
		offTopic = biz.KeywordFilter()
	}
	service := biz.NewService(retriever, answerer, indexer, queryCache, gate, &biz.ServiceConfig{
		TopK:          cfg.QAOptions.TopK,
		PreviewLength: cfg.QAOptions.PreviewLength,
		Collection:    cfg.StoreOptions.Collection,
		OffTopic:      offTopic,
	})

	// 7. 反馈
	var feedbackStore *feedback.Store
	if cfg.FeedbackOptions.Enabled {
		feedbackStore, err = feedback.Open(cfg.FeedbackOptions.Path)
		if err != nil {
			return fail(fmt.Errorf("failed to open feedback store: %w", err))
		}
		cs.add(func() { _ = feedbackStore.Close() })
	}

	// 8. Handler 与服务器
	qaHandler := handler.NewQAHandler(service, limiter, feedbackStore, &handler.Config{
		AnswerTimeout:     cfg.QAOptions.AnswerTimeout,
		FeedbackListLimit: cfg.FeedbackOptions.ListLimit,
	})

	serverOpts := []server.Option{
		server.WithGatherer(metrics.Registry),
		server.WithReadinessCheck("index", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
			defer cancel()
			_, err := vectorStore.Count(ctx, cfg.StoreOptions.Collection)
			return err
		}),
	}
	if redisClient != nil {
		serverOpts = append(serverOpts, server.WithReadinessCheck("redis", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		}))
	}
	srv := server.New(cfg.HTTPOptions, serverOpts...)

	var device gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if limiter != nil {
		device = limiter.Middleware()
	}
	admin, err := adminAuth(cfg)
	if err != nil {
		return fail(err)
	}
	router.Register(srv.Engine(), qaHandler, device, router.Features{
		Feedback: feedbackStore != nil,
		Ingest:   cfg.EnableIngest,
		Admin:    admin,
	})

	logger.Infow("QA service is ready",
		"addr", cfg.HTTPOptions.Addr,
		"index.backend", cfg.StoreOptions.Backend,
		"cache.query", queryCache != nil,
		"usage.enabled", limiter != nil,
		"feedback.enabled", feedbackStore != nil,
		"ingest.enabled", cfg.EnableIngest,
		"ingest.auth", admin != nil,
		"tracing.enabled", cfg.TracingOptions != nil && cfg.TracingOptions.Enabled,
	)
	return &Server{srv: srv, closers: cs}, nil
}

// adminAuth 返回管理接口的令牌校验中间件。未开放导入或显式关闭认证时返回 nil。
func adminAuth(cfg *Config) (gin.HandlerFunc, error) {
	if !cfg.EnableIngest {
		return nil, nil
	}
	opts := cfg.JWTOptions
	if opts == nil {
		opts = jwtopts.NewOptions()
	}
	if opts.DisableAuth {
		return nil, nil
	}
	verifier, err := jwt.New(jwt.WithOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize admin authentication: %w", err)
	}
	return auth.Auth(verifier), nil
}

// Run starts the server and blocks until ctx is cancelled or a termination
// signal arrives.
func (s *Server) Run(ctx context.Context) error {
	defer s.closers.closeAll()
	return s.srv.Run(ctx)
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Index: %s (%s)\n", cfg.StoreOptions.Backend, cfg.StoreOptions.Collection)
	fmt.Printf("  Listen: %s\n", cfg.HTTPOptions.Addr)
}

// readinessTimeout bounds one dependency probe.
const readinessTimeout = 2 * time.Second
