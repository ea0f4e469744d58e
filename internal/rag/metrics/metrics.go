// Package metrics 提供问答服务的业务指标收集。
//
// 指标同时写入 Prometheus 注册表（/metrics）和进程内原子计数器（/v1/qa/stats）。
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "campus_qa"

// Registry 服务专用的 Prometheus 注册表。
var Registry = prometheus.NewRegistry()

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions answered, by answer state.",
		},
		[]string{"state"},
	)
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_cache_lookups_total",
			Help:      "Answer cache lookups, by result.",
		},
		[]string{"result"},
	)
	retrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval latency including the query embedding.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"result"},
	)
	llmDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "LLM generation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"result"},
	)
	llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "LLM tokens consumed, by kind.",
		},
		[]string{"kind"},
	)
	usageRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_rejections_total",
			Help:      "Questions rejected by the usage limiter, by scope.",
		},
		[]string{"scope"},
	)
	ingestDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_documents_total",
			Help:      "Documents processed by ingestion, by result.",
		},
		[]string{"result"},
	)
	passagesIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passages_indexed_total",
			Help:      "Passages upserted into the index.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		questionsTotal, cacheLookups, retrievalDuration, llmDuration, llmTokens,
		usageRejections, ingestDocuments, passagesIndexed,
	)
}

// QAMetrics 问答服务业务指标。
type QAMetrics struct {
	questionsTotal uint64
	cacheHits      uint64
	cacheMisses    uint64

	retrievalTotal  uint64
	retrievalErrors uint64

	llmCallsTotal  uint64
	llmCallsErrors uint64

	usageRejected uint64

	documentsIndexed uint64
	documentsFailed  uint64
	passagesIndexed  uint64

	mu        sync.Mutex
	states    map[string]uint64
	startTime time.Time
}

var (
	globalQAMetrics *QAMetrics
	qaMetricsOnce   sync.Once
)

// GetQAMetrics 获取全局指标实例。
func GetQAMetrics() *QAMetrics {
	qaMetricsOnce.Do(func() {
		globalQAMetrics = &QAMetrics{
			states:    make(map[string]uint64),
			startTime: time.Now(),
		}
	})
	return globalQAMetrics
}

// RecordQuestion 记录一次回答及其最终状态。
func (m *QAMetrics) RecordQuestion(state string, cacheHit bool) {
	atomic.AddUint64(&m.questionsTotal, 1)
	questionsTotal.WithLabelValues(state).Inc()

	m.mu.Lock()
	m.states[state]++
	m.mu.Unlock()

	if cacheHit {
		atomic.AddUint64(&m.cacheHits, 1)
		cacheLookups.WithLabelValues("hit").Inc()
	} else {
		atomic.AddUint64(&m.cacheMisses, 1)
		cacheLookups.WithLabelValues("miss").Inc()
	}
}

// RecordRetrieval 记录检索操作。
func (m *QAMetrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		retrievalDuration.WithLabelValues("error").Observe(duration.Seconds())
		return
	}
	retrievalDuration.WithLabelValues("ok").Observe(duration.Seconds())
}

// RecordLLMCall 记录 LLM 调用。
func (m *QAMetrics) RecordLLMCall(duration time.Duration, promptTokens, completionTokens int, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		llmDuration.WithLabelValues("error").Observe(duration.Seconds())
		return
	}
	llmDuration.WithLabelValues("ok").Observe(duration.Seconds())
	if promptTokens > 0 {
		llmTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		llmTokens.WithLabelValues("completion").Add(float64(completionTokens))
	}
}

// RecordUsageRejected 记录被配额拒绝的提问，scope 为 device 或 global。
func (m *QAMetrics) RecordUsageRejected(scope string) {
	atomic.AddUint64(&m.usageRejected, 1)
	usageRejections.WithLabelValues(scope).Inc()
}

// RecordIngest 记录一个文档的导入结果。
func (m *QAMetrics) RecordIngest(passages int, err error) {
	if err != nil {
		atomic.AddUint64(&m.documentsFailed, 1)
		ingestDocuments.WithLabelValues("error").Inc()
		return
	}
	atomic.AddUint64(&m.documentsIndexed, 1)
	atomic.AddUint64(&m.passagesIndexed, uint64(passages))
	ingestDocuments.WithLabelValues("ok").Inc()
	passagesIndexed.Add(float64(passages))
}

// Snapshot 指标快照。
type Snapshot struct {
	Questions     uint64            `json:"questions"`
	States        map[string]uint64 `json:"states"`
	CacheHits     uint64            `json:"cache_hits"`
	CacheMisses   uint64            `json:"cache_misses"`
	CacheHitRate  float64           `json:"cache_hit_rate"`
	Retrievals    uint64            `json:"retrievals"`
	RetrievalErrs uint64            `json:"retrieval_errors"`
	LLMCalls      uint64            `json:"llm_calls"`
	LLMErrors     uint64            `json:"llm_errors"`
	UsageRejected uint64            `json:"usage_rejected"`
	DocsIndexed   uint64            `json:"documents_indexed"`
	DocsFailed    uint64            `json:"documents_failed"`
	Passages      uint64            `json:"passages_indexed"`
	UptimeSeconds float64           `json:"uptime_seconds"`
}

// Stats 返回当前统计信息（用于 API）。
func (m *QAMetrics) Stats() Snapshot {
	hits := atomic.LoadUint64(&m.cacheHits)
	misses := atomic.LoadUint64(&m.cacheMisses)
	rate := 0.0
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}

	m.mu.Lock()
	states := make(map[string]uint64, len(m.states))
	for k, v := range m.states {
		states[k] = v
	}
	uptime := time.Since(m.startTime).Seconds()
	m.mu.Unlock()

	return Snapshot{
		Questions:     atomic.LoadUint64(&m.questionsTotal),
		States:        states,
		CacheHits:     hits,
		CacheMisses:   misses,
		CacheHitRate:  rate,
		Retrievals:    atomic.LoadUint64(&m.retrievalTotal),
		RetrievalErrs: atomic.LoadUint64(&m.retrievalErrors),
		LLMCalls:      atomic.LoadUint64(&m.llmCallsTotal),
		LLMErrors:     atomic.LoadUint64(&m.llmCallsErrors),
		UsageRejected: atomic.LoadUint64(&m.usageRejected),
		DocsIndexed:   atomic.LoadUint64(&m.documentsIndexed),
		DocsFailed:    atomic.LoadUint64(&m.documentsFailed),
		Passages:      atomic.LoadUint64(&m.passagesIndexed),
		UptimeSeconds: uptime,
	}
}

// Reset 重置进程内计数器（仅用于测试），Prometheus 计数器不受影响。
func (m *QAMetrics) Reset() {
	for _, p := range []*uint64{
		&m.questionsTotal, &m.cacheHits, &m.cacheMisses, &m.retrievalTotal, &m.retrievalErrors,
		&m.llmCallsTotal, &m.llmCallsErrors, &m.usageRejected,
		&m.documentsIndexed, &m.documentsFailed, &m.passagesIndexed,
	} {
		atomic.StoreUint64(p, 0)
	}
	m.mu.Lock()
	m.states = make(map[string]uint64)
	m.startTime = time.Now()
	m.mu.Unlock()
}
