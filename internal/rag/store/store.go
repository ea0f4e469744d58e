package store

import (
	"context"
	"errors"
)

// ErrDimensionMismatch 表示向量维度与集合定义不一致。
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Entry 表示一条索引记录，每个段落 id 对应一条，后写覆盖先写。
type Entry struct {
	// ID 段落 ID。
	ID string
	// Text 段落文本。
	Text string
	// URL 来源页面地址。
	URL string
	// Title 来源页面标题。
	Title string
	// Embedding 嵌入向量。
	Embedding []float32
}

// Hit 表示一条检索结果。
type Hit struct {
	ID    string
	Text  string
	URL   string
	Title string
	// Score 余弦相似度，即 1 - 余弦距离。
	Score float32
}

// VectorStore 定义向量索引接口。
type VectorStore interface {
	// EnsureCollection 确保集合存在，不存在时按给定维度创建。
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// Upsert 按 id 写入记录，已存在的 id 被覆盖。
	Upsert(ctx context.Context, collection string, entries []*Entry) error

	// Search 返回与向量最相似的 topK 条记录，按分数降序。
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*Hit, error)

	// DropCollection 删除集合及其全部记录，集合不存在时不报错。
	DropCollection(ctx context.Context, collection string) error

	// Count 返回集合中的记录数。
	Count(ctx context.Context, collection string) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}
