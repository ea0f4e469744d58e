package store

import (
	"context"
	"fmt"

	"github.com/kart-io/campus-qa/pkg/component/milvus"
)

const (
	fieldURL   = "url"
	fieldTitle = "title"
	fieldText  = "text"
)

var _ VectorStore = (*MilvusStore)(nil)

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client *milvus.Client
}

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// EnsureCollection 创建 Milvus 集合，COSINE 度量，VarChar 主键。
func (s *MilvusStore) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	return s.client.EnsureCollection(ctx, &milvus.CollectionSchema{
		Name:        collection,
		Description: "campus website passages",
		Dimension:   dimension,
		IDMaxLen:    256,
		MetaFields: []milvus.MetaField{
			{Name: fieldURL, MaxLen: 2048},
			{Name: fieldTitle, MaxLen: 1024},
			{Name: fieldText, MaxLen: 65535},
		},
	})
}

// Upsert 批量写入记录，Milvus 服务端按主键覆盖。
func (s *MilvusStore) Upsert(ctx context.Context, collection string, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := &milvus.Rows{
		IDs:        make([]string, len(entries)),
		Embeddings: make([][]float32, len(entries)),
		Metadata: map[string][]string{
			fieldURL:   make([]string, len(entries)),
			fieldTitle: make([]string, len(entries)),
			fieldText:  make([]string, len(entries)),
		},
	}
	for i, e := range entries {
		rows.IDs[i] = e.ID
		rows.Embeddings[i] = e.Embedding
		rows.Metadata[fieldURL][i] = e.URL
		rows.Metadata[fieldTitle][i] = e.Title
		rows.Metadata[fieldText][i] = e.Text
	}

	if err := s.client.Upsert(ctx, collection, rows); err != nil {
		return fmt.Errorf("failed to upsert into milvus: %w", err)
	}
	return nil
}

// Search 在 Milvus 中执行向量检索。
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*Hit, error) {
	results, err := s.client.Search(ctx, collection, embedding, topK, []string{fieldURL, fieldTitle, fieldText})
	if err != nil {
		return nil, err
	}

	hits := make([]*Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, &Hit{
			ID:    r.ID,
			Text:  r.Metadata[fieldText],
			URL:   r.Metadata[fieldURL],
			Title: r.Metadata[fieldTitle],
			Score: r.Score,
		})
	}
	return hits, nil
}

// DropCollection 删除 Milvus 集合。
func (s *MilvusStore) DropCollection(ctx context.Context, collection string) error {
	return s.client.DropCollection(ctx, collection)
}

// Count 返回集合行数。
func (s *MilvusStore) Count(ctx context.Context, collection string) (int64, error) {
	return s.client.Count(ctx, collection)
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
