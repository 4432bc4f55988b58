// Package options holds the contract shared by every option group.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every option group.
type IOptions interface {
	// Validate returns every problem found, not just the first.
	Validate() []error

	// AddFlags registers the group's flags, namespaced by prefixes.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// Join builds a flag prefix: Join("a", "b") is "a.b." and Join() is "".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined == "" {
		return ""
	}
	return joined + "."
}

// ValidateAll collects the errors of every group. Nil groups are skipped.
func ValidateAll(groups ...IOptions) []error {
	var errs []error
	for _, g := range groups {
		if g == nil {
			continue
		}
		errs = append(errs, g.Validate()...)
	}
	return errs
}
