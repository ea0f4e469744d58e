// Package options contains flags and options for the admin token command.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	jwtopts "github.com/kart-io/campus-qa/pkg/options/jwt"
)

// TokenOptions contains the configuration options for issuing a token.
type TokenOptions struct {
	JWTOptions *jwtopts.Options `json:"jwt" mapstructure:"jwt"`

	// Subject is written to the sub claim and logged by the server.
	Subject string `json:"subject" mapstructure:"subject"`
}

// NewTokenOptions creates a TokenOptions instance with default values.
func NewTokenOptions() *TokenOptions {
	return &TokenOptions{
		JWTOptions: jwtopts.NewOptions(),
		Subject:    "admin",
	}
}

// Flags returns flags for a specific section name.
func (o *TokenOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.JWTOptions.AddFlags(fss.FlagSet("jwt"))

	fs := fss.FlagSet("token")
	fs.StringVar(&o.Subject, "subject", o.Subject, "Subject (sub claim) of the issued token.")
	return fss
}

// Complete completes all the required options.
func (o *TokenOptions) Complete() error {
	return o.JWTOptions.Complete()
}

// Validate checks whether the options are valid.
func (o *TokenOptions) Validate() error {
	var errs []error
	if o.JWTOptions.DisableAuth {
		errs = append(errs, fmt.Errorf("jwt.disable-auth leaves nothing to sign"))
	}
	errs = append(errs, o.JWTOptions.Validate()...)
	if o.Subject == "" {
		errs = append(errs, fmt.Errorf("subject cannot be empty"))
	}
	return utilerrors.NewAggregate(errs)
}
