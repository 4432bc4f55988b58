package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

// 限流后端类型。
const (
	RateLimitBackendMemory      = "memory"
	RateLimitBackendRedis       = "redis"
	RateLimitBackendTokenBucket = "token-bucket"
)

// RateLimitOptions 定义限流中间件的配置选项。
type RateLimitOptions struct {
	// Enabled 控制全局限流是否生效。路由级限流始终生效，关闭时使用内存后端。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Requests 是时间窗口内允许的最大请求数。
	Requests int `json:"requests" mapstructure:"requests"`

	// Window 是限流时间窗口（秒）。
	Window int `json:"window" mapstructure:"window"`

	// Backend 选择限流器实现：memory、redis 或 token-bucket。
	Backend string `json:"backend" mapstructure:"backend"`

	// SkipPaths 是跳过全局限流的路径列表。
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`

	// TrustProxyHeaders 控制是否信任 X-Forwarded-For / X-Real-IP。
	TrustProxyHeaders bool `json:"trust-proxy-headers" mapstructure:"trust-proxy-headers"`
}

// NewRateLimitOptions 创建默认的限流选项。
func NewRateLimitOptions() *RateLimitOptions {
	return &RateLimitOptions{
		Enabled:   true,
		Requests:  100,
		Window:    60,
		Backend:   RateLimitBackendMemory,
		SkipPaths: []string{"/health", "/metrics"},
	}
}

// AddFlags 为限流选项添加标志到指定的 FlagSet。
func (o *RateLimitOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rate-limit."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Apply the global per-IP rate limit.")
	fs.IntVar(&o.Requests, p+"requests", o.Requests, "Maximum number of requests allowed within the time window.")
	fs.IntVar(&o.Window, p+"window", o.Window, "Time window duration for rate limiting (seconds).")
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Rate limiter backend (memory, redis, token-bucket).")
	fs.StringSliceVar(&o.SkipPaths, p+"skip-paths", o.SkipPaths, "List of paths to skip global rate limiting.")
	fs.BoolVar(&o.TrustProxyHeaders, p+"trust-proxy-headers", o.TrustProxyHeaders, "Trust proxy headers for IP extraction.")
}

// Validate 验证限流选项。
func (o *RateLimitOptions) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Requests <= 0 {
		errs = append(errs, errors.New("rate-limit.requests must be positive"))
	}
	if o.Window <= 0 {
		errs = append(errs, errors.New("rate-limit.window must be positive"))
	}
	switch o.Backend {
	case RateLimitBackendMemory, RateLimitBackendRedis, RateLimitBackendTokenBucket:
	default:
		errs = append(errs, fmt.Errorf("rate-limit.backend %q is not supported", o.Backend))
	}
	return errs
}

// GetWindow 返回时间窗口的 time.Duration 表示。
func (o *RateLimitOptions) GetWindow() time.Duration {
	return time.Duration(o.Window) * time.Second
}
