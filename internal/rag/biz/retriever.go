package biz

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/campus-qa/internal/rag/metrics"
	"github.com/kart-io/campus-qa/internal/rag/store"
	"github.com/kart-io/campus-qa/pkg/infra/tracing"
	"github.com/kart-io/campus-qa/pkg/llm"
)

// DefaultTopK 默认检索条数。
const DefaultTopK = 8

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 默认返回的结果数量。
	TopK int
	// Collection 集合名称。
	Collection string
}

// Retriever 负责向量检索。
type Retriever struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	config   *RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	return &Retriever{store: vectorStore, embedder: embedder, config: config}
}

// Retrieve 返回与 query 最相近的至多 k 条段落，按分数降序。k <= 0 时使用默认值。
// 索引为空时返回空切片；向量化或索引错误包装为 RetrievalError。
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (hits []RetrievalHit, err error) {
	if k <= 0 {
		k = r.config.TopK
	}
	ctx, span := tracing.StartSpan(ctx, tracerName, "Retriever.Retrieve", tracing.Int("k", k))
	start := time.Now()
	defer func() {
		metrics.GetQAMetrics().RecordRetrieval(time.Since(start), err)
		span.SetAttributes(tracing.Int("hits", len(hits)))
		tracing.RecordError(ctx, err)
		span.End()
	}()

	query = strings.TrimSpace(query)
	vector, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, &RetrievalError{Query: query, Err: &EmbeddingError{Provider: r.embedder.Name(), Err: err}}
	}

	results, err := r.store.Search(ctx, r.config.Collection, vector, k)
	if err != nil {
		return nil, &RetrievalError{Query: query, Err: &IndexError{Op: "search", Collection: r.config.Collection, Err: err}}
	}

	hits = make([]RetrievalHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, RetrievalHit{
			ID:    res.ID,
			Text:  res.Text,
			URL:   res.URL,
			Title: res.Title,
			Score: res.Score,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}

	logger.Debugw("Retrieved passages", "hits", len(hits), "duration", time.Since(start).String())
	return hits, nil
}
