// Package options contains flags and options for initializing the Document QA server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/docqa/internal/docqa"
	"github.com/kart-io/docqa/pkg/infra/app"
	genericoptions "github.com/kart-io/docqa/pkg/options"
	authopts "github.com/kart-io/docqa/pkg/options/auth"
	dbopts "github.com/kart-io/docqa/pkg/options/database"
	docqaopts "github.com/kart-io/docqa/pkg/options/docqa"
	jwtopts "github.com/kart-io/docqa/pkg/options/jwt"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	mwopts "github.com/kart-io/docqa/pkg/options/middleware"
	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
	redisopts "github.com/kart-io/docqa/pkg/options/redis"
	httpopts "github.com/kart-io/docqa/pkg/options/server/http"
	tracingopts "github.com/kart-io/docqa/pkg/options/tracing"
)

// Environment presets.
const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// Env selects a preset applied before validation (dev, prod).
	Env string `json:"env" mapstructure:"env"`

	HTTPOptions       *httpopts.Options        `json:"http" mapstructure:"http"`
	LogOptions        *logopts.Options         `json:"log" mapstructure:"log"`
	JWTOptions        *jwtopts.Options         `json:"jwt" mapstructure:"jwt"`
	AuthOptions       *authopts.Options        `json:"auth" mapstructure:"auth"`
	RateLimitOptions  *mwopts.RateLimitOptions `json:"rate-limit" mapstructure:"rate-limit"`
	MiddlewareOptions *mwopts.Options          `json:"middleware" mapstructure:"middleware"`
	RedisOptions      *redisopts.Options       `json:"redis" mapstructure:"redis"`
	MilvusOptions     *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
	DatabaseOptions   *dbopts.Options          `json:"database" mapstructure:"database"`
	TracingOptions    *tracingopts.Options     `json:"tracing" mapstructure:"tracing"`
	DocQAOptions      *docqaopts.Options       `json:"docqa" mapstructure:"docqa"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		JWTOptions:        jwtopts.NewOptions(),
		AuthOptions:       authopts.NewOptions(),
		RateLimitOptions:  mwopts.NewRateLimitOptions(),
		MiddlewareOptions: mwopts.NewOptions(),
		RedisOptions:      redisopts.NewOptions(),
		MilvusOptions:     milvusopts.NewOptions(),
		DatabaseOptions:   dbopts.NewOptions(),
		TracingOptions:    tracingopts.NewOptions(),
		DocQAOptions:      docqaopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.JWTOptions.AddFlags(fss.FlagSet("jwt"))
	o.AuthOptions.AddFlags(fss.FlagSet("auth"))
	o.RateLimitOptions.AddFlags(fss.FlagSet("rate-limit"))
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.DatabaseOptions.AddFlags(fss.FlagSet("database"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.DocQAOptions.AddFlags(fss.FlagSet("docqa"))

	fs := fss.FlagSet("misc")
	fs.StringVar(&o.Env, "env", o.Env, "Environment preset (dev, prod). dev logs at debug level, prod logs at warn level and forces rate limiting.")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	o.applyEnv()

	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.JWTOptions.Complete(); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}
	if err := o.MiddlewareOptions.Complete(); err != nil {
		return fmt.Errorf("middleware: %w", err)
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := o.DocQAOptions.Complete(); err != nil {
		return fmt.Errorf("docqa: %w", err)
	}
	return nil
}

func (o *ServerOptions) applyEnv() {
	switch o.Env {
	case EnvDev:
		o.LogOptions.Level = "DEBUG"
		o.HTTPOptions.Mode = "debug"
	case EnvProd:
		o.LogOptions.Level = "WARN"
		o.RateLimitOptions.Enabled = true
	}
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	var errs []error

	switch o.Env {
	case "", EnvDev, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("env must be dev or prod, got %q", o.Env))
	}

	groups := []genericoptions.IOptions{
		o.HTTPOptions,
		o.LogOptions,
		o.JWTOptions,
		o.AuthOptions,
		o.RateLimitOptions,
		o.MiddlewareOptions,
		o.RedisOptions,
		o.TracingOptions,
		o.DocQAOptions,
	}
	// 仅校验已选用的后端
	if o.DocQAOptions.SessionStore == docqaopts.SessionStoreDatabase {
		groups = append(groups, o.DatabaseOptions)
	}
	if o.DocQAOptions.RAG.Enabled && o.DocQAOptions.RAG.VectorStore == docqaopts.VectorStoreMilvus {
		groups = append(groups, o.MilvusOptions)
	}
	errs = append(errs, genericoptions.ValidateAll(groups...)...)

	return utilerrors.NewAggregate(errs)
}

// Config builds a docqa.Config based on ServerOptions.
func (o *ServerOptions) Config() (*docqa.Config, error) {
	return &docqa.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		JWTOptions:        o.JWTOptions,
		AuthOptions:       o.AuthOptions,
		RateLimitOptions:  o.RateLimitOptions,
		MiddlewareOptions: o.MiddlewareOptions,
		RedisOptions:      o.RedisOptions,
		MilvusOptions:     o.MilvusOptions,
		DatabaseOptions:   o.DatabaseOptions,
		TracingOptions:    o.TracingOptions,
		DocQAOptions:      o.DocQAOptions,
	}, nil
}
