// Package milvusopts configures the Milvus connection used by the milvus index backend.
package milvusopts

import (
	"errors"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/campus-qa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Milvus client configuration. Only read when store.backend is milvus.
type Options struct {
	Address  string `json:"address" mapstructure:"address"`
	Database string `json:"database" mapstructure:"database"`

	// Username and Password authenticate against a self-hosted server.
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`

	// APIKey authenticates against a managed (Zilliz Cloud) endpoint and
	// replaces username/password.
	APIKey string `json:"-" mapstructure:"api-key"`

	EnableTLS bool `json:"enable-tls" mapstructure:"enable-tls"`

	// Timeout bounds the initial connection.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates Options for a local standalone server.
func NewOptions() *Options {
	return &Options{
		Address:  "localhost:19530",
		Database: "default",
		Timeout:  30 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Milvus API key for managed deployments.")
	fs.BoolVar(&o.EnableTLS, p+"enable-tls", o.EnableTLS, "Connect to Milvus over TLS.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Milvus connection timeout.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, errors.New("milvus address is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("milvus timeout must be positive"))
	}
	if o.APIKey != "" && (o.Username != "" || o.Password != "") {
		errs = append(errs, errors.New("milvus api-key and username/password are mutually exclusive"))
	}
	if (o.Username == "") != (o.Password == "") {
		errs = append(errs, errors.New("milvus username and password must be set together"))
	}
	return errs
}
