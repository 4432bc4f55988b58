package middleware

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

// SecurityHeadersOptions 定义安全头中间件的配置选项。
type SecurityHeadersOptions struct {
	// HSTSMaxAge 是 HSTS max-age（秒），0 表示不发送。
	HSTSMaxAge int `json:"hsts-max-age" mapstructure:"hsts-max-age"`
	// FrameOptions 是 X-Frame-Options 的值。
	FrameOptions string `json:"frame-options" mapstructure:"frame-options"`
	// XSSProtection 是 X-XSS-Protection 的值。
	XSSProtection string `json:"xss-protection" mapstructure:"xss-protection"`
	// ContentSecurityPolicy 是 Content-Security-Policy 的值。
	ContentSecurityPolicy string `json:"content-security-policy" mapstructure:"content-security-policy"`
	// DocsPathPrefix 下的页面使用宽松的 CSP，以便 Swagger UI 加载内联脚本。
	DocsPathPrefix string `json:"docs-path-prefix" mapstructure:"docs-path-prefix"`
	// DocsContentSecurityPolicy 是文档页面的 CSP。
	DocsContentSecurityPolicy string `json:"docs-content-security-policy" mapstructure:"docs-content-security-policy"`
}

// NewSecurityHeadersOptions 创建默认的安全头选项。
func NewSecurityHeadersOptions() *SecurityHeadersOptions {
	return &SecurityHeadersOptions{
		HSTSMaxAge:                31536000,
		FrameOptions:              "DENY",
		XSSProtection:             "1; mode=block",
		ContentSecurityPolicy:     "default-src 'self'",
		DocsPathPrefix:            "/api/docs",
		DocsContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:",
	}
}

// AddFlags 为安全头选项添加标志到指定的 FlagSet。
func (o *SecurityHeadersOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "middleware.security-headers."
	fs.IntVar(&o.HSTSMaxAge, p+"hsts-max-age", o.HSTSMaxAge, "HSTS max-age in seconds, 0 disables the header.")
	fs.StringVar(&o.FrameOptions, p+"frame-options", o.FrameOptions, "X-Frame-Options header value.")
	fs.StringVar(&o.XSSProtection, p+"xss-protection", o.XSSProtection, "X-XSS-Protection header value.")
	fs.StringVar(&o.ContentSecurityPolicy, p+"content-security-policy", o.ContentSecurityPolicy, "Content-Security-Policy header value.")
	fs.StringVar(&o.DocsPathPrefix, p+"docs-path-prefix", o.DocsPathPrefix, "Path prefix served with the relaxed docs CSP.")
}
