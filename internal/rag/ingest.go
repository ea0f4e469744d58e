package ragsvc

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/campus-qa/internal/pkg/rag/seedlist"
	"github.com/kart-io/campus-qa/internal/rag/biz"
	"github.com/kart-io/campus-qa/pkg/errors"
	"github.com/kart-io/campus-qa/pkg/infra/app"
	cacheopts "github.com/kart-io/campus-qa/pkg/options/cache"
	fetcheropts "github.com/kart-io/campus-qa/pkg/options/fetcher"
	llmopts "github.com/kart-io/campus-qa/pkg/options/llm"
	logopts "github.com/kart-io/campus-qa/pkg/options/logger"
	milvusopts "github.com/kart-io/campus-qa/pkg/options/milvus"
	qaopts "github.com/kart-io/campus-qa/pkg/options/qa"
	redisopts "github.com/kart-io/campus-qa/pkg/options/redis"
	storeopts "github.com/kart-io/campus-qa/pkg/options/store"
	tracingopts "github.com/kart-io/campus-qa/pkg/options/tracing"
)

// IngestName is the name of the ingestion command.
const IngestName = "qa-ingest"

// IngestConfig configures a one-shot ingestion run.
type IngestConfig struct {
	LogOptions       *logopts.Options
	RedisOptions     *redisopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	QAOptions        *qaopts.Options
	FetcherOptions   *fetcheropts.Options
	StoreOptions     *storeopts.Options
	CacheOptions     *cacheopts.Options
	TracingOptions   *tracingopts.Options
	// SeedFiles 种子文件，每行一个 URL，# 开头为注释。
	SeedFiles []string
	// URLs 额外的种子 URL，与种子文件合并去重。
	URLs []string
	// RawDir 本地文档目录，递归读取其中的 .pdf 与 .txt 文件。
	RawDir string
	// Rebuild 导入前删除并重建集合。
	Rebuild bool
	// ClearCache 导入后清空回答缓存。
	ClearCache bool
}

// RunIngest fetches, chunks and indexes every seed URL and every document
// under RawDir, then logs the report. Per-source failures are recorded in
// the report and do not fail the run.
func (cfg *IngestConfig) RunIngest(ctx context.Context) (*biz.IngestReport, error) {
	cfg.LogOptions.AddInitialField("service.name", IngestName)
	cfg.LogOptions.AddInitialField("service.version", app.Version())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	fromFiles, err := seedlist.Load(cfg.SeedFiles...)
	if err != nil {
		return nil, err
	}
	urls := seedlist.Merge(fromFiles, cfg.URLs)
	if len(urls) == 0 && cfg.RawDir == "" {
		return nil, errors.ErrNoSeedURLs
	}
	logger.Infow("Starting ingestion", "urls", len(urls), "seed_files", len(cfg.SeedFiles), "raw_dir", cfg.RawDir)

	var cs closers
	defer cs.closeAll()

	if err := startTracing(ctx, cfg.TracingOptions, IngestName, &cs); err != nil {
		return nil, err
	}
	redisClient := connectRedis(ctx, cfg.RedisOptions, &cs)
	embedder, err := newEmbedder(cfg.EmbeddingOptions, cfg.CacheOptions, redisClient, &cs)
	if err != nil {
		return nil, err
	}
	vectorStore, err := openStore(ctx, cfg.StoreOptions, cfg.MilvusOptions, &cs)
	if err != nil {
		return nil, err
	}
	indexer, err := newIndexer(vectorStore, embedder, cfg.FetcherOptions, cfg.QAOptions, cfg.StoreOptions, &cs)
	if err != nil {
		return nil, err
	}

	if cfg.Rebuild {
		if err := indexer.Rebuild(ctx, cfg.StoreOptions.Dimension); err != nil {
			return nil, err
		}
	}

	report := &biz.IngestReport{}
	if len(urls) > 0 {
		report, err = indexer.IngestURLs(ctx, urls)
		if err != nil {
			return report, err
		}
	}
	if cfg.RawDir != "" {
		docs, failures, err := biz.LoadLocalDocuments(ctx, cfg.RawDir, cfg.FetcherOptions.MaxPDFBytes)
		if err != nil {
			return report, err
		}
		local := indexer.IngestDocuments(ctx, docs)
		local.Failures = append(failures, local.Failures...)
		report.Merge(local)
	}
	for _, f := range report.Failures {
		logger.Warnw("Source skipped", "url", f.URL, "error", f.Error)
	}
	if total, err := indexer.Count(ctx); err == nil {
		logger.Infow("Index size", "passages", total)
	}

	if cfg.ClearCache && redisClient != nil {
		cache := biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.QueryTTL,
			KeyPrefix: cfg.CacheOptions.QueryKeyPrefix,
		})
		n, err := cache.Clear(ctx)
		if err != nil {
			logger.Warnw("Failed to clear answer cache", "error", err.Error())
		} else {
			logger.Infow("Answer cache cleared", "keys", n)
		}
	}
	return report, nil
}
