// Package usage provides question quota options.
package usage

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/campus-qa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options configures the per-device and global question quotas.
type Options struct {
	// Enabled turns the usage gate on.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// DeviceLimit is the number of questions one device may ask.
	DeviceLimit int64 `json:"device-limit" mapstructure:"device-limit"`

	// GlobalLimit is the number of questions the deployment may answer.
	GlobalLimit int64 `json:"global-limit" mapstructure:"global-limit"`

	// AlertThresholds log a warning when the global count reaches them.
	AlertThresholds []int64 `json:"alert-thresholds" mapstructure:"alert-thresholds"`

	// KeyPrefix prefixes redis counter keys.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// TrustProxyHeaders reads the client address from X-Forwarded-For.
	TrustProxyHeaders bool `json:"trust-proxy-headers" mapstructure:"trust-proxy-headers"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Enabled:           true,
		DeviceLimit:       5,
		GlobalLimit:       5000,
		AlertThresholds:   []int64{1000, 5000},
		KeyPrefix:         "qa:usage:",
		TrustProxyHeaders: true,
	}
}

// AddFlags adds flags for usage options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "usage."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enforce question quotas.")
	fs.Int64Var(&o.DeviceLimit, p+"device-limit", o.DeviceLimit, "Questions allowed per device.")
	fs.Int64Var(&o.GlobalLimit, p+"global-limit", o.GlobalLimit, "Questions allowed in total.")
	fs.Int64SliceVar(&o.AlertThresholds, p+"alert-thresholds", o.AlertThresholds, "Global counts that trigger an alert log.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Redis key prefix of usage counters.")
	fs.BoolVar(&o.TrustProxyHeaders, p+"trust-proxy-headers", o.TrustProxyHeaders, "Read the client address from X-Forwarded-For.")
}

// Validate validates the usage options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.DeviceLimit <= 0 {
		errs = append(errs, fmt.Errorf("usage.device-limit must be positive"))
	}
	if o.GlobalLimit <= 0 {
		errs = append(errs, fmt.Errorf("usage.global-limit must be positive"))
	}
	return errs
}
