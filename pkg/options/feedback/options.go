// Package feedback provides answer feedback storage options.
package feedback

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/campus-qa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options configures the feedback store.
type Options struct {
	// Enabled exposes the feedback endpoints.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Path is the sqlite database file.
	Path string `json:"path" mapstructure:"path"`

	// ListLimit caps the number of entries returned by a listing.
	ListLimit int `json:"list-limit" mapstructure:"list-limit"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Enabled:   true,
		Path:      "_output/feedback.db",
		ListLimit: 100,
	}
}

// AddFlags adds flags for feedback options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "feedback."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Accept answer feedback.")
	fs.StringVar(&o.Path, p+"path", o.Path, "Feedback database file.")
	fs.IntVar(&o.ListLimit, p+"list-limit", o.ListLimit, "Maximum entries returned by a listing.")
}

// Validate validates the feedback options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}
	if o.Path == "" {
		return []error{fmt.Errorf("feedback.path cannot be empty")}
	}
	return nil
}
