// Package auth provides the token endpoint options.
//
// Configuration Example (YAML):
//
//	auth:
//	  users:
//	    alice: "$2a$10$..."
//	    bob: "plaintext-password"
package auth

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// DemoSubject is the subject of tokens issued when no users are configured.
const DemoSubject = "demo_user"

// Options configures who may obtain a token.
type Options struct {
	// Users maps usernames to bcrypt password hashes. Entries that are not
	// bcrypt hashes are plaintext passwords and get hashed at startup.
	// When empty the token endpoint issues demo tokens without credentials.
	Users map[string]string `json:"-" mapstructure:"users"`
}

// NewOptions creates Options with no configured users.
func NewOptions() *Options {
	return &Options{Users: map[string]string{}}
}

// DemoMode reports whether tokens are issued without credentials.
func (o *Options) DemoMode() bool {
	return len(o.Users) == 0
}

// AddFlags adds flags for auth options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "auth."
	fs.StringToStringVar(&o.Users, p+"users", o.Users, "Users allowed to request tokens, as username=password pairs. Passwords may be bcrypt hashes.")
}

// IsHashed reports whether a configured password is already a bcrypt hash.
func IsHashed(password string) bool {
	return strings.HasPrefix(password, "$2")
}

// Validate checks that every configured user has a name and a password.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	names := make([]string, 0, len(o.Users))
	for name := range o.Users {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if name == "" {
			errs = append(errs, fmt.Errorf("auth.users contains an empty username"))
			continue
		}
		if o.Users[name] == "" {
			errs = append(errs, fmt.Errorf("auth.users[%s] has an empty password", name))
		}
	}
	return errs
}
