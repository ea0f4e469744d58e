package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/campus-qa/internal/rag/metrics"
	"github.com/kart-io/campus-qa/internal/rag/store"
	"github.com/kart-io/campus-qa/pkg/infra/pool"
	"github.com/kart-io/campus-qa/pkg/llm"
)

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// Collection 集合名称。
	Collection string
	// BatchSize 每批嵌入的段落数。
	BatchSize int
}

// Indexer 负责嵌入段落并按 id upsert 到向量索引。
type Indexer struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	fetcher  *Fetcher
	chunker  *Chunker
	pool     *pool.Pool
	config   *IndexerConfig
}

// NewIndexer 创建索引器实例。fetcher 与 pool 仅 IngestURLs 需要。
func NewIndexer(
	vectorStore store.VectorStore,
	embedder llm.EmbeddingProvider,
	fetcher *Fetcher,
	chunker *Chunker,
	workers *pool.Pool,
	config *IndexerConfig,
) *Indexer {
	if config.BatchSize <= 0 {
		config.BatchSize = 16
	}
	return &Indexer{
		store:    vectorStore,
		embedder: embedder,
		fetcher:  fetcher,
		chunker:  chunker,
		pool:     workers,
		config:   config,
	}
}

// Upsert 分批嵌入并写入段落，返回写入条数。同一 id 重复写入结果不变。
func (i *Indexer) Upsert(ctx context.Context, passages []Passage) (int, error) {
	passages = dedupePassages(passages)

	written := 0
	for start := 0; start < len(passages); start += i.config.BatchSize {
		batch := passages[start:min(start+i.config.BatchSize, len(passages))]

		texts := make([]string, len(batch))
		for j, p := range batch {
			texts[j] = p.Text
		}
		vectors, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return written, &EmbeddingError{Provider: i.embedder.Name(), Err: err}
		}
		if len(vectors) != len(batch) {
			return written, &EmbeddingError{
				Provider: i.embedder.Name(),
				Err:      fmt.Errorf("got %d vectors for %d texts", len(vectors), len(batch)),
			}
		}

		entries := make([]*store.Entry, len(batch))
		for j, p := range batch {
			entries[j] = &store.Entry{
				ID:        p.ID,
				Text:      p.Text,
				URL:       p.SourceURL,
				Title:     p.SourceTitle,
				Embedding: vectors[j],
			}
		}
		if err := i.store.Upsert(ctx, i.config.Collection, entries); err != nil {
			return written, &IndexError{Op: "upsert", Collection: i.config.Collection, Err: err}
		}
		written += len(batch)
	}
	return written, nil
}

// IndexDocument 切分并写入单个文档。空文本不产生段落，不视为错误。
func (i *Indexer) IndexDocument(ctx context.Context, doc *SourceDocument) (int, error) {
	passages := i.chunker.Chunk(doc)
	if len(passages) == 0 {
		logger.Debugw("Document has no text", "url", doc.URL)
		return 0, nil
	}
	return i.Upsert(ctx, passages)
}

// DocumentReport 单个文档的导入结果。
type DocumentReport struct {
	URL      string       `json:"url"`
	Title    string       `json:"title"`
	Kind     DocumentKind `json:"kind"`
	Passages int          `json:"passages"`
}

// IngestFailure 单个 URL 的失败原因。
type IngestFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
	err   error
}

// Err 返回原始错误。
func (f IngestFailure) Err() error { return f.err }

// IngestReport 批量导入报告。
type IngestReport struct {
	URLs      int              `json:"urls"`
	Documents []DocumentReport `json:"documents"`
	Failures  []IngestFailure  `json:"failures"`
	Passages  int              `json:"passages"`
	Duration  time.Duration    `json:"duration"`

	mu sync.Mutex
}

func (r *IngestReport) addDocument(d DocumentReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Documents = append(r.Documents, d)
	r.Passages += d.Passages
}

func (r *IngestReport) addFailure(url string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, IngestFailure{URL: url, Error: err.Error(), err: err})
}

// Merge 将 other 的文档与失败追加到 r，耗时累加。
func (r *IngestReport) Merge(other *IngestReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.URLs += other.URLs
	r.Documents = append(r.Documents, other.Documents...)
	r.Failures = append(r.Failures, other.Failures...)
	r.Passages += other.Passages
	r.Duration += other.Duration
}

// IngestURLs 对每个 URL 执行 抓取 → 切分 → 写入。抓取在有界协程池上并发进行，
// 单个 URL 失败只记录日志并计入报告，不会中断整批。
func (i *Indexer) IngestURLs(ctx context.Context, urls []string) (*IngestReport, error) {
	start := time.Now()
	report := &IngestReport{URLs: len(urls)}
	m := metrics.GetQAMetrics()

	group := i.pool.NewGroup(ctx)
	for _, u := range urls {
		group.Go(func(ctx context.Context) error {
			docs, err := i.fetcher.FetchAll(ctx, u)
			if err != nil {
				logger.Warnw("Failed to fetch URL", "url", u, "error", err.Error())
				report.addFailure(u, err)
				m.RecordIngest(0, err)
				return nil
			}

			for _, doc := range docs {
				n, err := i.IndexDocument(ctx, doc)
				m.RecordIngest(n, err)
				if err != nil {
					logger.Warnw("Failed to index document", "url", doc.URL, "error", err.Error())
					report.addFailure(doc.URL, err)
					continue
				}
				report.addDocument(DocumentReport{URL: doc.URL, Title: doc.Title, Kind: doc.Kind, Passages: n})
				logger.Infow("Indexed document", "url", doc.URL, "kind", doc.Kind, "passages", n)
			}
			return nil
		})
	}
	err := group.Wait()
	report.Duration = time.Since(start)

	logger.Infow("Ingestion finished",
		"urls", report.URLs,
		"documents", len(report.Documents),
		"failures", len(report.Failures),
		"passages", report.Passages,
		"duration", report.Duration.String(),
	)
	if err != nil {
		return report, fmt.Errorf("ingestion interrupted: %w", err)
	}
	return report, nil
}

// IngestDocuments 切分并写入已加载的文档，单个文档失败只计入报告。
func (i *Indexer) IngestDocuments(ctx context.Context, docs []*SourceDocument) *IngestReport {
	start := time.Now()
	report := &IngestReport{}
	m := metrics.GetQAMetrics()

	for _, doc := range docs {
		if ctx.Err() != nil {
			report.addFailure(doc.URL, ctx.Err())
			continue
		}
		n, err := i.IndexDocument(ctx, doc)
		m.RecordIngest(n, err)
		if err != nil {
			logger.Warnw("Failed to index document", "url", doc.URL, "error", err.Error())
			report.addFailure(doc.URL, err)
			continue
		}
		report.addDocument(DocumentReport{URL: doc.URL, Title: doc.Title, Kind: doc.Kind, Passages: n})
	}
	report.Duration = time.Since(start)
	logger.Infow("Local ingestion finished",
		"documents", len(report.Documents),
		"failures", len(report.Failures),
		"passages", report.Passages,
	)
	return report
}

// Rebuild 删除集合后按 dimension 重新创建，已有段落全部丢弃。
func (i *Indexer) Rebuild(ctx context.Context, dimension int) error {
	if err := i.store.DropCollection(ctx, i.config.Collection); err != nil {
		return &IndexError{Op: "drop", Collection: i.config.Collection, Err: err}
	}
	if err := i.store.EnsureCollection(ctx, i.config.Collection, dimension); err != nil {
		return &IndexError{Op: "create", Collection: i.config.Collection, Err: err}
	}
	logger.Infow("Collection rebuilt", "collection", i.config.Collection, "dimension", dimension)
	return nil
}

// WorkerStats 返回抓取协程池的统计快照，未配置协程池时返回 nil。
func (i *Indexer) WorkerStats() *pool.Stats {
	if i.pool == nil {
		return nil
	}
	stats := i.pool.Stats()
	return &stats
}

// Count 返回索引中的段落数。
func (i *Indexer) Count(ctx context.Context) (int64, error) {
	n, err := i.store.Count(ctx, i.config.Collection)
	if err != nil {
		return 0, &IndexError{Op: "count", Collection: i.config.Collection, Err: err}
	}
	return n, nil
}

// dedupePassages 去除重复 id，保留最后一次出现的内容和第一次出现的位置。
func dedupePassages(passages []Passage) []Passage {
	pos := make(map[string]int, len(passages))
	out := make([]Passage, 0, len(passages))
	for _, p := range passages {
		if idx, ok := pos[p.ID]; ok {
			out[idx] = p
			continue
		}
		pos[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}
