// Package jwt provides JWT configuration options for docqa.
//
// Configuration Example (YAML):
//
//	jwt:
//	  secret-key: "${DOCQA_SECRET_KEY}"
//	  expire: "30m"
//	  issuer: "docqa"
package jwt

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const (
	// DefaultSigningMethod is the default JWT signing algorithm.
	DefaultSigningMethod = "HS256"

	// DefaultExpire is the default token lifetime.
	DefaultExpire = 30 * time.Minute

	// DefaultIssuer is the default token issuer.
	DefaultIssuer = "docqa"

	// MinKeyLength is the minimum required key length for HMAC keys.
	MinKeyLength = 32
)

// SupportedSigningMethods contains the HMAC algorithms accepted for signing.
var SupportedSigningMethods = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Options contains JWT configuration.
type Options struct {
	// SecretKey signs and verifies tokens. Falls back to the SECRET_KEY env var.
	SecretKey string `json:"-" mapstructure:"secret-key"`

	// SigningMethod is the JWT signing algorithm.
	SigningMethod string `json:"signing-method" mapstructure:"signing-method"`

	// Expire is the token lifetime.
	Expire time.Duration `json:"expire" mapstructure:"expire"`

	// Issuer is the token issuer (iss claim).
	Issuer string `json:"issuer" mapstructure:"issuer"`
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		SigningMethod: DefaultSigningMethod,
		Expire:        DefaultExpire,
		Issuer:        DefaultIssuer,
	}
}

// Complete fills in default values for unset fields.
func (o *Options) Complete() error {
	if o.SecretKey == "" {
		o.SecretKey = os.Getenv("SECRET_KEY")
	}
	if o.SigningMethod == "" {
		o.SigningMethod = DefaultSigningMethod
	}
	if o.Expire == 0 {
		o.Expire = DefaultExpire
	}
	if o.Issuer == "" {
		o.Issuer = DefaultIssuer
	}
	return nil
}

// Validate validates the JWT options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if !SupportedSigningMethods[o.SigningMethod] {
		errs = append(errs, fmt.Errorf("jwt: unsupported signing method %q", o.SigningMethod))
	}
	if o.SecretKey == "" {
		errs = append(errs, fmt.Errorf("jwt.secret-key is required (or set SECRET_KEY)"))
	} else if len(o.SecretKey) < MinKeyLength {
		errs = append(errs, fmt.Errorf("jwt.secret-key must be at least %d characters, got %d", MinKeyLength, len(o.SecretKey)))
	}
	if o.Expire <= 0 {
		errs = append(errs, fmt.Errorf("jwt.expire must be positive, got %v", o.Expire))
	}
	return errs
}

// AddFlags adds flags for JWT options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "jwt."
	fs.StringVar(&o.SecretKey, p+"secret-key", o.SecretKey, "JWT signing key, at least 32 characters (prefer the SECRET_KEY env var).")
	fs.StringVar(&o.SigningMethod, p+"signing-method", o.SigningMethod, "JWT signing algorithm (HS256, HS384, HS512).")
	fs.DurationVar(&o.Expire, p+"expire", o.Expire, "Access token lifetime.")
	fs.StringVar(&o.Issuer, p+"issuer", o.Issuer, "JWT token issuer (iss claim).")
}
