package biz

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kart-io/campus-qa/internal/rag/metrics"
	ctxlog "github.com/kart-io/campus-qa/pkg/infra/logger"
	"github.com/kart-io/campus-qa/pkg/infra/pool"
)

// ErrEmptyQuestion 问题为空。
var ErrEmptyQuestion = errors.New("question is empty")

// Gate 提问前的配额校验，拒绝时返回错误。
type Gate interface {
	Allow(ctx context.Context) error
}

// ServiceConfig 服务配置。
type ServiceConfig struct {
	// TopK 检索条数。
	TopK int
	// PreviewLength 来源预览的最大字符数。
	PreviewLength int
	// Collection 集合名称，用于统计。
	Collection string
	// OffTopic 离题判断，为 nil 时不过滤。
	OffTopic Predicate
}

// Service 问答服务门面：配额 → 缓存 → 检索 → 回答 → 指标。
type Service struct {
	retriever *Retriever
	answerer  *Answerer
	indexer   *Indexer
	cache     *QueryCache
	gate      Gate
	config    *ServiceConfig
}

// NewService 创建服务实例。cache 与 gate 可为 nil。
func NewService(
	retriever *Retriever,
	answerer *Answerer,
	indexer *Indexer,
	cache *QueryCache,
	gate Gate,
	config *ServiceConfig,
) *Service {
	if config.PreviewLength <= 0 {
		config.PreviewLength = 220
	}
	return &Service{
		retriever: retriever,
		answerer:  answerer,
		indexer:   indexer,
		cache:     cache,
		gate:      gate,
		config:    config,
	}
}

// Ask 回答一个问题。除配额拒绝与空问题外，检索与生成失败都会降级为固定回复而不是错误。
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	if s.gate != nil {
		if err := s.gate.Allow(ctx); err != nil {
			return nil, err
		}
	}

	m := metrics.GetQAMetrics()

	if s.config.OffTopic != nil && s.config.OffTopic(question) {
		m.RecordQuestion(string(StateOffTopic), false)
		return &Answer{Text: OffTopicReply, Citations: []Citation{}, State: StateOffTopic}, nil
	}

	if cached, err := s.cache.Get(ctx, question); err == nil && cached != nil {
		cached.Cached = true
		m.RecordQuestion(string(cached.State), true)
		return cached, nil
	}

	start := time.Now()
	hits, rerr := s.retriever.Retrieve(ctx, question, s.config.TopK)
	ans := s.answerer.Answer(ctx, question, hits, rerr)
	ans.Sources = buildPreviews(hits, s.config.PreviewLength)

	if err := s.cache.Set(ctx, question, ans); err != nil {
		ctxlog.GetLogger(ctx).Warnw("Failed to cache answer", "error", err.Error())
	}
	m.RecordQuestion(string(ans.State), false)

	ctxlog.GetLogger(ctx).Infow("Answered question",
		"state", ans.State,
		"hits", len(hits),
		"citations", len(ans.Citations),
		"duration", time.Since(start).String(),
	)
	return ans, nil
}

// Ingest 抓取并索引给定 URL。
func (s *Service) Ingest(ctx context.Context, urls []string) (*IngestReport, error) {
	return s.indexer.IngestURLs(ctx, urls)
}

// IndexStats 索引与服务统计。
type IndexStats struct {
	Collection string           `json:"collection"`
	Entries    int64            `json:"entries"`
	Metrics    metrics.Snapshot `json:"metrics"`
	// Workers 抓取协程池状态，未启用导入时为空。
	Workers *pool.Stats `json:"workers,omitempty"`
}

// Stats 返回索引条目数与运行指标。
func (s *Service) Stats(ctx context.Context) (*IndexStats, error) {
	n, err := s.indexer.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &IndexStats{
		Collection: s.config.Collection,
		Entries:    n,
		Metrics:    metrics.GetQAMetrics().Stats(),
		Workers:    s.indexer.WorkerStats(),
	}, nil
}

// ClearCache 清除回答缓存。
func (s *Service) ClearCache(ctx context.Context) (int, error) {
	return s.cache.Clear(ctx)
}
