// Package fetcher provides page fetching options for ingestion.
package fetcher

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/campus-qa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// DefaultUserAgent identifies the crawler to site operators.
const DefaultUserAgent = "Mozilla/5.0 (compatible; campus-qa bot)"

// Options contains fetcher configuration.
type Options struct {
	// AllowedDomains lists the hosts that may be fetched. A page on a
	// subdomain of an allowed domain is accepted.
	AllowedDomains []string `json:"allowed-domains" mapstructure:"allowed-domains"`

	// UserAgent is sent with every request.
	UserAgent string `json:"user-agent" mapstructure:"user-agent"`

	// PageTimeout bounds one HTML request.
	PageTimeout time.Duration `json:"page-timeout" mapstructure:"page-timeout"`

	// PDFTimeout bounds one PDF download.
	PDFTimeout time.Duration `json:"pdf-timeout" mapstructure:"pdf-timeout"`

	// Delay is the politeness interval between network calls.
	Delay time.Duration `json:"delay" mapstructure:"delay"`

	// MaxRetries is the retry count for 5xx and network failures.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// FollowPDFs enables extraction of linked same-host PDFs.
	FollowPDFs bool `json:"follow-pdfs" mapstructure:"follow-pdfs"`

	// MaxPDFBytes caps the size of a downloaded PDF.
	MaxPDFBytes int64 `json:"max-pdf-bytes" mapstructure:"max-pdf-bytes"`

	// Workers is the size of the ingestion worker pool.
	Workers int `json:"workers" mapstructure:"workers"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		UserAgent:   DefaultUserAgent,
		PageTimeout: 25 * time.Second,
		PDFTimeout:  30 * time.Second,
		Delay:       1 * time.Second,
		MaxRetries:  2,
		FollowPDFs:  true,
		MaxPDFBytes: 20 << 20,
		Workers:     4,
	}
}

// AddFlags adds flags for fetcher options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "fetcher."
	fs.StringSliceVar(&o.AllowedDomains, p+"allowed-domains", o.AllowedDomains, "Hosts that may be fetched.")
	fs.StringVar(&o.UserAgent, p+"user-agent", o.UserAgent, "User-Agent header sent with every request.")
	fs.DurationVar(&o.PageTimeout, p+"page-timeout", o.PageTimeout, "Timeout of one HTML request.")
	fs.DurationVar(&o.PDFTimeout, p+"pdf-timeout", o.PDFTimeout, "Timeout of one PDF download.")
	fs.DurationVar(&o.Delay, p+"delay", o.Delay, "Politeness delay between network calls.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Retries for 5xx and network failures.")
	fs.BoolVar(&o.FollowPDFs, p+"follow-pdfs", o.FollowPDFs, "Extract text from linked same-host PDFs.")
	fs.Int64Var(&o.MaxPDFBytes, p+"max-pdf-bytes", o.MaxPDFBytes, "Maximum size of a downloaded PDF.")
	fs.IntVar(&o.Workers, p+"workers", o.Workers, "Size of the ingestion worker pool.")
}

// Validate validates the fetcher options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if len(o.AllowedDomains) == 0 {
		errs = append(errs, fmt.Errorf("fetcher.allowed-domains must list at least one domain"))
	}
	if o.PageTimeout <= 0 || o.PDFTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetcher timeouts must be positive"))
	}
	if o.Delay < 0 {
		errs = append(errs, fmt.Errorf("fetcher.delay cannot be negative"))
	}
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("fetcher.workers must be positive"))
	}
	return errs
}

// Complete completes the fetcher options with defaults.
func (o *Options) Complete() error {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MaxPDFBytes <= 0 {
		o.MaxPDFBytes = 20 << 20
	}
	return nil
}
