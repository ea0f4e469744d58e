package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/campus-qa/internal/pkg/rag/textutil"
	"github.com/kart-io/campus-qa/pkg/utils/json"
)

// QueryCacheConfig 回答缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// QueryCache 回答缓存，键为归一化问题的 SHA256。
type QueryCache struct {
	redis  *goredis.Client
	config *QueryCacheConfig
}

// NewQueryCache 创建回答缓存实例。redis 为 nil 时缓存不生效。
func NewQueryCache(redis *goredis.Client, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{TTL: time.Hour, KeyPrefix: "qa:answer:"}
	}
	return &QueryCache{redis: redis, config: config}
}

func (c *QueryCache) enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// normalizeQuestion 忽略大小写与空白差异。
func normalizeQuestion(question string) string {
	return strings.ToLower(textutil.CollapseWhitespace(question))
}

func (c *QueryCache) key(question string) string {
	sum := sha256.Sum256([]byte(normalizeQuestion(question)))
	return c.config.KeyPrefix + hex.EncodeToString(sum[:])
}

// Get 读取缓存的回答，未命中返回 nil, nil。
func (c *QueryCache) Get(ctx context.Context, question string) (*Answer, error) {
	if !c.enabled() {
		return nil, nil
	}

	key := c.key(question)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			logger.Debugw("Answer cache miss", "key", key)
			return nil, nil
		}
		logger.Warnw("Failed to read answer cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var ans Answer
	if err := json.Unmarshal(data, &ans); err != nil {
		logger.Warnw("Dropping corrupt cache entry", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}
	logger.Debugw("Answer cache hit", "key", key)
	return &ans, nil
}

// Set 缓存回答。只接受 LLM 生成的回答。
func (c *QueryCache) Set(ctx context.Context, question string, ans *Answer) error {
	if !c.enabled() || ans == nil || ans.State != StateGenerate {
		return nil
	}

	stored := *ans
	stored.Cached = false
	data, err := json.Marshal(&stored)
	if err != nil {
		return err
	}

	key := c.key(question)
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("Failed to write answer cache", "error", err.Error(), "key", key)
		return err
	}
	return nil
}

// Clear 清除全部缓存的回答，返回删除的键数。
func (c *QueryCache) Clear(ctx context.Context) (int, error) {
	if !c.enabled() {
		return 0, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("Failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	logger.Infow("Cleared answer cache", "deleted", deleted)
	return deleted, nil
}
