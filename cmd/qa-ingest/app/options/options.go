// Package options contains flags and options for the ingestion command.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	ragsvc "github.com/kart-io/campus-qa/internal/rag"
	cacheopts "github.com/kart-io/campus-qa/pkg/options/cache"
	fetcheropts "github.com/kart-io/campus-qa/pkg/options/fetcher"
	llmopts "github.com/kart-io/campus-qa/pkg/options/llm"
	logopts "github.com/kart-io/campus-qa/pkg/options/logger"
	milvusopts "github.com/kart-io/campus-qa/pkg/options/milvus"
	qaopts "github.com/kart-io/campus-qa/pkg/options/qa"
	redisopts "github.com/kart-io/campus-qa/pkg/options/redis"
	storeopts "github.com/kart-io/campus-qa/pkg/options/store"
	tracingopts "github.com/kart-io/campus-qa/pkg/options/tracing"
)

// IngestOptions contains the configuration options for an ingestion run.
type IngestOptions struct {
	LogOptions       *logopts.Options         `json:"log" mapstructure:"log"`
	RedisOptions     *redisopts.Options       `json:"redis" mapstructure:"redis"`
	MilvusOptions    *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	QAOptions        *qaopts.Options          `json:"qa" mapstructure:"qa"`
	FetcherOptions   *fetcheropts.Options     `json:"fetcher" mapstructure:"fetcher"`
	StoreOptions     *storeopts.Options       `json:"store" mapstructure:"store"`
	CacheOptions     *cacheopts.Options       `json:"cache" mapstructure:"cache"`
	TracingOptions   *tracingopts.Options     `json:"tracing" mapstructure:"tracing"`

	SeedFiles  []string `json:"seed-files" mapstructure:"seed-files"`
	RawDir     string   `json:"raw-dir" mapstructure:"raw-dir"`
	Rebuild    bool     `json:"rebuild" mapstructure:"rebuild"`
	ClearCache bool     `json:"clear-cache" mapstructure:"clear-cache"`
}

// NewIngestOptions creates an IngestOptions instance with default values.
func NewIngestOptions() *IngestOptions {
	return &IngestOptions{
		LogOptions:       logopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		QAOptions:        qaopts.NewOptions(),
		FetcherOptions:   fetcheropts.NewOptions(),
		StoreOptions:     storeopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
	}
}

// Flags returns flags for a specific section name.
func (o *IngestOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.QAOptions.AddFlags(fss.FlagSet("qa"))
	o.FetcherOptions.AddFlags(fss.FlagSet("fetcher"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))

	fs := fss.FlagSet("ingest")
	fs.StringSliceVar(&o.SeedFiles, "seed-files", o.SeedFiles, "Seed files with one URL per line. Missing files are an error.")
	fs.StringVar(&o.RawDir, "raw-dir", o.RawDir, "Directory of local .pdf and .txt files to index, searched recursively.")
	fs.BoolVar(&o.Rebuild, "rebuild", o.Rebuild, "Drop and recreate the collection before indexing.")
	fs.BoolVar(&o.ClearCache, "clear-cache", o.ClearCache, "Clear cached answers after indexing.")
	return fss
}

// Complete completes all the required options.
func (o *IngestOptions) Complete() error {
	if err := o.LogOptions.Complete(); err != nil {
		return err
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.QAOptions.Complete(); err != nil {
		return fmt.Errorf("qa: %w", err)
	}
	if err := o.FetcherOptions.Complete(); err != nil {
		return fmt.Errorf("fetcher: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return o.CacheOptions.Complete()
}

// Validate checks whether the options are valid.
func (o *IngestOptions) Validate() error {
	var errs []error
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.MilvusOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.QAOptions.Validate()...)
	errs = append(errs, o.FetcherOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	return utilerrors.NewAggregate(errs)
}

// Config builds a ragsvc.IngestConfig. urls are seed URLs given on the
// command line in addition to the seed files.
func (o *IngestOptions) Config(urls []string) (*ragsvc.IngestConfig, error) {
	return &ragsvc.IngestConfig{
		LogOptions:       o.LogOptions,
		RedisOptions:     o.RedisOptions,
		MilvusOptions:    o.MilvusOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		QAOptions:        o.QAOptions,
		FetcherOptions:   o.FetcherOptions,
		StoreOptions:     o.StoreOptions,
		CacheOptions:     o.CacheOptions,
		TracingOptions:   o.TracingOptions,
		SeedFiles:        o.SeedFiles,
		URLs:             urls,
		RawDir:           o.RawDir,
		Rebuild:          o.Rebuild,
		ClearCache:       o.ClearCache,
	}, nil
}
