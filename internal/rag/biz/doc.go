// Package biz 提供问答服务的业务逻辑层。
//
// 离线链路：Fetcher 抓取页面与同站 PDF，Chunker 切分为段落，Indexer 嵌入并 upsert 到向量索引。
// 在线链路：Retriever 检索 top-k 段落，Answerer 在固定回复、结构化兜底与 LLM 生成之间决策，
// Service 负责串联配额校验、缓存、检索、回答与指标。
package biz

// tracerName 业务层 span 的 tracer 名称。
const tracerName = "github.com/kart-io/campus-qa/internal/rag/biz"
