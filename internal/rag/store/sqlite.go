package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/campus-qa/internal/pkg/rag/textutil"
)

const searchBatchSize = 500

var _ VectorStore = (*SQLiteStore)(nil)

// collectionRecord 记录集合的向量维度。
type collectionRecord struct {
	Name      string `gorm:"primaryKey;size:128"`
	Dimension int
	CreatedAt time.Time
}

func (collectionRecord) TableName() string { return "collections" }

// passageRecord 是 passages 表的一行，主键为 (collection, id)。
type passageRecord struct {
	Collection string `gorm:"primaryKey;size:128"`
	ID         string `gorm:"primaryKey;size:256"`
	URL        string `gorm:"index"`
	Title      string
	Text       string
	Embedding  []byte
	UpdatedAt  time.Time
}

func (passageRecord) TableName() string { return "passages" }

// SQLiteStore 实现基于 SQLite 的本地向量存储，检索为全表余弦扫描。
// 单连接串行写入，由 SQLite 的写锁保证并发安全。
type SQLiteStore struct {
	db *gorm.DB

	mu   sync.RWMutex
	dims map[string]int
}

// NewSQLiteStore 打开（必要时创建）path 处的索引库。
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite index: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&collectionRecord{}, &passageRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite index: %w", err)
	}
	return &SQLiteStore{db: db, dims: make(map[string]int)}, nil
}

// EnsureCollection 注册集合，已存在时校验维度。
func (s *SQLiteStore) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	var rec collectionRecord
	err := s.db.WithContext(ctx).Where("name = ?", collection).First(&rec).Error
	switch {
	case err == nil:
		if rec.Dimension != dimension {
			return fmt.Errorf("%w: collection %s has %d, want %d", ErrDimensionMismatch, collection, rec.Dimension, dimension)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = collectionRecord{Name: collection, Dimension: dimension}
		if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	default:
		return fmt.Errorf("failed to load collection: %w", err)
	}
	s.mu.Lock()
	s.dims[collection] = dimension
	s.mu.Unlock()
	return nil
}

// Upsert 在单个事务中写入记录，冲突时覆盖全部字段。
func (s *SQLiteStore) Upsert(ctx context.Context, collection string, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.RLock()
	dim, ok := s.dims[collection]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("collection %s not initialized", collection)
	}

	records := make([]passageRecord, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) != dim {
			return fmt.Errorf("%w: entry %s has %d, want %d", ErrDimensionMismatch, e.ID, len(e.Embedding), dim)
		}
		records = append(records, passageRecord{
			Collection: collection,
			ID:         e.ID,
			URL:        e.URL,
			Title:      e.Title,
			Text:       e.Text,
			Embedding:  encodeVector(e.Embedding),
		})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(records, 100).Error
	if err != nil {
		return fmt.Errorf("failed to upsert into sqlite: %w", err)
	}
	return nil
}

// Search 扫描集合内全部向量，按余弦相似度取前 topK。
func (s *SQLiteStore) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*Hit, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	dim, ok := s.dims[collection]
	s.mu.RUnlock()
	if ok && len(embedding) != dim {
		return nil, fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(embedding), dim)
	}

	var hits []*Hit
	var batch []passageRecord
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		FindInBatches(&batch, searchBatchSize, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				r := &batch[i]
				hits = append(hits, &Hit{
					ID:    r.ID,
					Text:  r.Text,
					URL:   r.URL,
					Title: r.Title,
					Score: float32(textutil.CosineSimilarity(embedding, decodeVector(r.Embedding))),
				})
			}
			return nil
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search sqlite index: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DropCollection 在单个事务中删除集合记录与其全部段落。
func (s *SQLiteStore) DropCollection(ctx context.Context, collection string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection = ?", collection).Delete(&passageRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("name = ?", collection).Delete(&collectionRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to drop sqlite collection: %w", err)
	}
	s.mu.Lock()
	delete(s.dims, collection)
	s.mu.Unlock()
	return nil
}

// Count 返回集合中的记录数。
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&passageRecord{}).Where("collection = ?", collection).Count(&n).Error
	return n, err
}

// Close 关闭数据库。
func (s *SQLiteStore) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
