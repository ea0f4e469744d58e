// Package cache provides cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/campus-qa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 查询缓存与 Embedding 缓存配置，均依赖 redis。
type Options struct {
	// QueryEnabled 是否缓存生成的答案。
	QueryEnabled bool `json:"query-enabled" mapstructure:"query-enabled"`

	// QueryTTL 答案缓存过期时间。
	QueryTTL time.Duration `json:"query-ttl" mapstructure:"query-ttl"`

	// QueryKeyPrefix 答案缓存键前缀。
	QueryKeyPrefix string `json:"query-key-prefix" mapstructure:"query-key-prefix"`

	// EmbeddingEnabled 是否缓存向量嵌入。
	EmbeddingEnabled bool `json:"embedding-enabled" mapstructure:"embedding-enabled"`

	// EmbeddingTTL 向量缓存过期时间。
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		QueryEnabled:     true,
		QueryTTL:         1 * time.Hour,
		QueryKeyPrefix:   "qa:answer:",
		EmbeddingEnabled: true,
		EmbeddingTTL:     24 * time.Hour,
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."
	fs.BoolVar(&o.QueryEnabled, p+"query-enabled", o.QueryEnabled, "Cache generated answers in redis.")
	fs.DurationVar(&o.QueryTTL, p+"query-ttl", o.QueryTTL, "Answer cache TTL.")
	fs.StringVar(&o.QueryKeyPrefix, p+"query-key-prefix", o.QueryKeyPrefix, "Answer cache key prefix.")
	fs.BoolVar(&o.EmbeddingEnabled, p+"embedding-enabled", o.EmbeddingEnabled, "Cache embeddings in redis.")
	fs.DurationVar(&o.EmbeddingTTL, p+"embedding-ttl", o.EmbeddingTTL, "Embedding cache TTL.")
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.QueryEnabled && o.QueryTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.query-ttl must be positive"))
	}
	if o.EmbeddingEnabled && o.EmbeddingTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.embedding-ttl must be positive"))
	}
	return errs
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.QueryKeyPrefix == "" {
		o.QueryKeyPrefix = "qa:answer:"
	}
	return nil
}
