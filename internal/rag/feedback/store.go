// Package feedback 保存用户对回答的评价并提供满意度统计。
package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/campus-qa/internal/pkg/rag/textutil"
	"github.com/kart-io/campus-qa/pkg/id"
)

// AnswerPreviewLength 保存的回答预览长度。
const AnswerPreviewLength = 200

// Rating 评价。
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
)

// ErrInvalidRating 评价不是 positive 或 negative。
var ErrInvalidRating = errors.New("rating must be positive or negative")

// ParseRating 解析评价，忽略大小写。
func ParseRating(s string) (Rating, error) {
	switch r := Rating(strings.ToLower(strings.TrimSpace(s))); r {
	case RatingPositive, RatingNegative:
		return r, nil
	default:
		return "", ErrInvalidRating
	}
}

// Entry 一条评价记录，只追加不修改。
type Entry struct {
	ID            string    `json:"id" gorm:"primaryKey;size:26"`
	CreatedAt     time.Time `json:"timestamp" gorm:"index"`
	Question      string    `json:"question"`
	AnswerPreview string    `json:"answer_preview"`
	Rating        Rating    `json:"rating" gorm:"size:16;index"`
	Comment       string    `json:"comment,omitempty"`
}

func (Entry) TableName() string { return "feedback" }

// Stats 满意度统计，SatisfactionRate 为百分比，保留一位小数。
type Stats struct {
	Total            int64   `json:"total"`
	Positive         int64   `json:"positive"`
	Negative         int64   `json:"negative"`
	SatisfactionRate float64 `json:"satisfaction_rate"`
}

// Store 基于 SQLite 的评价存储。
type Store struct {
	db *gorm.DB
}

// Open 打开（必要时创建）path 处的评价库。
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create feedback directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open feedback store: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate feedback store: %w", err)
	}
	return &Store{db: db}, nil
}

// Add 追加一条评价，回答只保存前 200 个字符。
func (s *Store) Add(ctx context.Context, question, answer string, rating Rating, comment string) (*Entry, error) {
	if _, err := ParseRating(string(rating)); err != nil {
		return nil, err
	}
	e := &Entry{
		ID:            id.NewULID(),
		Question:      strings.TrimSpace(question),
		AnswerPreview: textutil.Prefix(answer, AnswerPreviewLength),
		Rating:        rating,
		Comment:       strings.TrimSpace(comment),
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// List 按时间倒序返回最近 limit 条评价。
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	var entries []*Entry
	err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// Stats 统计评价数量与满意度。
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var rows []struct {
		Rating Rating
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Select("rating, COUNT(*) AS n").
		Group("rating").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	st := &Stats{}
	for _, r := range rows {
		st.Total += r.N
		switch r.Rating {
		case RatingPositive:
			st.Positive = r.N
		case RatingNegative:
			st.Negative = r.N
		}
	}
	if st.Total > 0 {
		st.SatisfactionRate = math.Round(float64(st.Positive)/float64(st.Total)*1000) / 10
	}
	return st, nil
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
