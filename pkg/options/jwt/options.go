// Package jwt provides options for the bearer tokens that guard the admin
// endpoints.
//
// Configuration Example (YAML):
//
//	jwt:
//	  key: "your-secret-key-min-32-chars-long"
//	  signing-method: "HS256"
//	  expired: "24h"
//	  issuer: "campus-qa"
package jwt

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/campus-qa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const (
	// DefaultSigningMethod is the default JWT signing algorithm.
	DefaultSigningMethod = "HS256"

	// DefaultExpired is the default token lifetime.
	DefaultExpired = 24 * time.Hour

	// DefaultIssuer is the default token issuer.
	DefaultIssuer = "campus-qa"

	// MinKeyLength is the minimum key length for HMAC algorithms.
	MinKeyLength = 32

	// MaxKeyLength is the maximum allowed key length.
	MaxKeyLength = 256
)

// SupportedSigningMethods lists the HMAC algorithms accepted for admin tokens.
var SupportedSigningMethods = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Options contains JWT configuration.
type Options struct {
	// DisableAuth leaves the admin endpoints open. Only for local development.
	DisableAuth bool `json:"disable-auth" mapstructure:"disable-auth"`

	// Key is the shared HMAC secret, at least 32 characters.
	Key string `json:"key" mapstructure:"key"`

	// SigningMethod is HS256, HS384 or HS512.
	SigningMethod string `json:"signing-method" mapstructure:"signing-method"`

	// Expired is the lifetime of issued tokens.
	Expired time.Duration `json:"expired" mapstructure:"expired"`

	// Issuer is the iss claim written and required on verification.
	Issuer string `json:"issuer" mapstructure:"issuer"`

	// Audience is the aud claim. When set, verification requires it.
	Audience []string `json:"audience" mapstructure:"audience"`
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		DisableAuth:   false,
		SigningMethod: DefaultSigningMethod,
		Expired:       DefaultExpired,
		Issuer:        DefaultIssuer,
		Audience:      []string{},
	}
}

// AddFlags adds flags for JWT options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "jwt."
	fs.BoolVar(&o.DisableAuth, p+"disable-auth", o.DisableAuth,
		"Serve the admin endpoints without a bearer token. Only for local development.")
	fs.StringVar(&o.Key, p+"key", o.Key,
		"JWT signing key (min 32 chars).")
	fs.StringVar(&o.SigningMethod, p+"signing-method", o.SigningMethod,
		"JWT signing algorithm (HS256, HS384, HS512).")
	fs.DurationVar(&o.Expired, p+"expired", o.Expired,
		"Lifetime of issued admin tokens.")
	fs.StringVar(&o.Issuer, p+"issuer", o.Issuer,
		"JWT token issuer (iss claim).")
	fs.StringSliceVar(&o.Audience, p+"audience", o.Audience,
		"JWT token audience (aud claim).")
}

// Complete fills in default values for unset fields.
func (o *Options) Complete() error {
	if o.SigningMethod == "" {
		o.SigningMethod = DefaultSigningMethod
	}
	if o.Expired == 0 {
		o.Expired = DefaultExpired
	}
	if o.Issuer == "" {
		o.Issuer = DefaultIssuer
	}
	return nil
}

// Validate validates the JWT options.
func (o *Options) Validate() []error {
	if o == nil || o.DisableAuth {
		return nil
	}

	var errs []error
	if !SupportedSigningMethods[o.SigningMethod] {
		errs = append(errs, fmt.Errorf("jwt.signing-method %q is not supported", o.SigningMethod))
	}
	switch {
	case o.Key == "":
		errs = append(errs, fmt.Errorf("jwt.key is required"))
	case len(o.Key) < MinKeyLength:
		errs = append(errs, fmt.Errorf("jwt.key must be at least %d characters, got %d", MinKeyLength, len(o.Key)))
	case len(o.Key) > MaxKeyLength:
		errs = append(errs, fmt.Errorf("jwt.key must be at most %d characters, got %d", MaxKeyLength, len(o.Key)))
	}
	if o.Expired <= 0 {
		errs = append(errs, fmt.Errorf("jwt.expired must be positive, got %v", o.Expired))
	}
	return errs
}
