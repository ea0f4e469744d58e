// Package store provides vector index options.
package store

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/campus-qa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Backend names.
const (
	BackendMilvus = "milvus"
	BackendSQLite = "sqlite"
)

// Options selects and configures the persistent similarity index.
type Options struct {
	// Backend is milvus or sqlite.
	Backend string `json:"backend" mapstructure:"backend"`

	// Collection is the index collection (milvus) or table (sqlite) name.
	Collection string `json:"collection" mapstructure:"collection"`

	// Dimension is the embedding dimension. It must match the embedding model.
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `json:"sqlite-path" mapstructure:"sqlite-path"`

	// BatchSize is the number of passages embedded and written per call.
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Backend:    BackendSQLite,
		Collection: "campus_pages",
		Dimension:  768,
		SQLitePath: "_output/index.db",
		BatchSize:  16,
	}
}

// AddFlags adds flags for store options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "store."
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Vector index backend (milvus, sqlite).")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Collection or table name.")
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Embedding dimension.")
	fs.StringVar(&o.SQLitePath, p+"sqlite-path", o.SQLitePath, "Database file of the sqlite backend.")
	fs.IntVar(&o.BatchSize, p+"batch-size", o.BatchSize, "Passages embedded and written per batch.")
}

// Validate validates the store options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Backend {
	case BackendMilvus:
	case BackendSQLite:
		if o.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("store.sqlite-path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be milvus or sqlite, got %q", o.Backend))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("store.collection cannot be empty"))
	}
	if o.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("store.dimension must be positive"))
	}
	if o.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("store.batch-size must be positive"))
	}
	return errs
}
