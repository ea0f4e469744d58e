package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// CliOptions is implemented by the option set of a command.
type CliOptions interface {
	// Flags returns the flags grouped by option section.
	Flags() cliflag.NamedFlagSets

	// Complete fills defaults that depend on other values.
	Complete() error

	// Validate reports every invalid value.
	Validate() error
}
