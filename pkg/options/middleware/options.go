// Package middleware provides middleware configuration options.
package middleware

import (
	"github.com/spf13/pflag"
)

// Options 聚合 HTTP 中间件配置。
// 中间件按固定顺序装配：recovery → request-id → logger → security-headers
// → cors → body-limit → rate-limit → metrics。
type Options struct {
	RequestID       *RequestIDOptions       `json:"request-id" mapstructure:"request-id"`
	Logger          *LoggerOptions          `json:"logger" mapstructure:"logger"`
	SecurityHeaders *SecurityHeadersOptions `json:"security-headers" mapstructure:"security-headers"`
	CORS            *CORSOptions            `json:"cors" mapstructure:"cors"`
	BodyLimit       *BodyLimitOptions       `json:"body-limit" mapstructure:"body-limit"`
}

// NewOptions 创建默认中间件选项。
func NewOptions() *Options {
	return &Options{
		RequestID:       NewRequestIDOptions(),
		Logger:          NewLoggerOptions(),
		SecurityHeaders: NewSecurityHeadersOptions(),
		CORS:            NewCORSOptions(),
		BodyLimit:       NewBodyLimitOptions(),
	}
}

// AddFlags 为所有中间件添加命令行标志。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	o.RequestID.AddFlags(fs, prefixes...)
	o.Logger.AddFlags(fs, prefixes...)
	o.SecurityHeaders.AddFlags(fs, prefixes...)
	o.CORS.AddFlags(fs, prefixes...)
	o.BodyLimit.AddFlags(fs, prefixes...)
}

// Validate 验证所有中间件配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	errs = append(errs, o.RequestID.Validate()...)
	errs = append(errs, o.CORS.Validate()...)
	errs = append(errs, o.BodyLimit.Validate()...)
	return errs
}

// Complete 完成中间件配置的默认值填充。
func (o *Options) Complete() error {
	if o.RequestID == nil {
		o.RequestID = NewRequestIDOptions()
	}
	if o.Logger == nil {
		o.Logger = NewLoggerOptions()
	}
	if o.SecurityHeaders == nil {
		o.SecurityHeaders = NewSecurityHeadersOptions()
	}
	if o.CORS == nil {
		o.CORS = NewCORSOptions()
	}
	if o.BodyLimit == nil {
		o.BodyLimit = NewBodyLimitOptions()
	}
	return nil
}
