// Package options contains flags and options for initializing the QA server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	ragsvc "github.com/kart-io/campus-qa/internal/rag"
	cacheopts "github.com/kart-io/campus-qa/pkg/options/cache"
	feedbackopts "github.com/kart-io/campus-qa/pkg/options/feedback"
	fetcheropts "github.com/kart-io/campus-qa/pkg/options/fetcher"
	httpopts "github.com/kart-io/campus-qa/pkg/options/http"
	jwtopts "github.com/kart-io/campus-qa/pkg/options/jwt"
	llmopts "github.com/kart-io/campus-qa/pkg/options/llm"
	logopts "github.com/kart-io/campus-qa/pkg/options/logger"
	milvusopts "github.com/kart-io/campus-qa/pkg/options/milvus"
	qaopts "github.com/kart-io/campus-qa/pkg/options/qa"
	redisopts "github.com/kart-io/campus-qa/pkg/options/redis"
	storeopts "github.com/kart-io/campus-qa/pkg/options/store"
	tracingopts "github.com/kart-io/campus-qa/pkg/options/tracing"
	usageopts "github.com/kart-io/campus-qa/pkg/options/usage"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`
	LogOptions  *logopts.Options  `json:"log" mapstructure:"log"`

	// RedisOptions backs the answer cache, the embedding cache and usage counters.
	RedisOptions  *redisopts.Options  `json:"redis" mapstructure:"redis"`
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	ChatOptions      *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	QAOptions       *qaopts.Options       `json:"qa" mapstructure:"qa"`
	FetcherOptions  *fetcheropts.Options  `json:"fetcher" mapstructure:"fetcher"`
	StoreOptions    *storeopts.Options    `json:"store" mapstructure:"store"`
	CacheOptions    *cacheopts.Options    `json:"cache" mapstructure:"cache"`
	UsageOptions    *usageopts.Options    `json:"usage" mapstructure:"usage"`
	FeedbackOptions *feedbackopts.Options `json:"feedback" mapstructure:"feedback"`
	TracingOptions  *tracingopts.Options  `json:"tracing" mapstructure:"tracing"`

	// JWTOptions guards the admin endpoints. Validated only with EnableIngest.
	JWTOptions *jwtopts.Options `json:"jwt" mapstructure:"jwt"`

	// EnableIngest exposes POST /v1/qa/ingest and DELETE /v1/qa/cache.
	EnableIngest bool `json:"enable-ingest" mapstructure:"enable-ingest"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		QAOptions:        qaopts.NewOptions(),
		FetcherOptions:   fetcheropts.NewOptions(),
		StoreOptions:     storeopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		UsageOptions:     usageopts.NewOptions(),
		FeedbackOptions:  feedbackopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
		JWTOptions:       jwtopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.QAOptions.AddFlags(fss.FlagSet("qa"))
	o.FetcherOptions.AddFlags(fss.FlagSet("fetcher"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.UsageOptions.AddFlags(fss.FlagSet("usage"))
	o.FeedbackOptions.AddFlags(fss.FlagSet("feedback"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.JWTOptions.AddFlags(fss.FlagSet("jwt"))

	fs := fss.FlagSet("misc")
	fs.BoolVar(&o.EnableIngest, "enable-ingest", o.EnableIngest, "Expose the ingestion and cache clearing endpoints.")
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.LogOptions.Complete(); err != nil {
		return err
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.QAOptions.Complete(); err != nil {
		return fmt.Errorf("qa: %w", err)
	}
	if err := o.FetcherOptions.Complete(); err != nil {
		return fmt.Errorf("fetcher: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := o.JWTOptions.Complete(); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	var errs []error
	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.MilvusOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.QAOptions.Validate()...)
	errs = append(errs, o.FetcherOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.UsageOptions.Validate()...)
	errs = append(errs, o.FeedbackOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	if o.EnableIngest {
		errs = append(errs, o.JWTOptions.Validate()...)
	}
	return utilerrors.NewAggregate(errs)
}

// Config builds a ragsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*ragsvc.Config, error) {
	return &ragsvc.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		RedisOptions:     o.RedisOptions,
		MilvusOptions:    o.MilvusOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		QAOptions:        o.QAOptions,
		FetcherOptions:   o.FetcherOptions,
		StoreOptions:     o.StoreOptions,
		CacheOptions:     o.CacheOptions,
		UsageOptions:     o.UsageOptions,
		FeedbackOptions:  o.FeedbackOptions,
		TracingOptions:   o.TracingOptions,
		JWTOptions:       o.JWTOptions,
		EnableIngest:     o.EnableIngest,
	}, nil
}
