// Package security provides response hardening middleware.
package security

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	mwopts "github.com/kart-io/docqa/pkg/options/middleware"
)

// Security header constants.
const (
	HeaderXFrameOptions           = "X-Frame-Options"
	HeaderXContentTypeOptions     = "X-Content-Type-Options"
	HeaderXXSSProtection          = "X-XSS-Protection"
	HeaderContentSecurityPolicy   = "Content-Security-Policy"
	HeaderStrictTransportSecurity = "Strict-Transport-Security"
)

// SecurityHeaders 返回为每个响应添加安全头的中间件。
// 文档路径（DocsPathPrefix）使用宽松的 CSP，以便 Swagger UI 正常加载。
func SecurityHeaders(opts mwopts.SecurityHeadersOptions) gin.HandlerFunc {
	var hsts string
	if opts.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d; includeSubDomains", opts.HSTSMaxAge)
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set(HeaderXContentTypeOptions, "nosniff")
		if opts.FrameOptions != "" {
			h.Set(HeaderXFrameOptions, opts.FrameOptions)
		}
		if opts.XSSProtection != "" {
			h.Set(HeaderXXSSProtection, opts.XSSProtection)
		}
		if hsts != "" {
			h.Set(HeaderStrictTransportSecurity, hsts)
		}

		csp := opts.ContentSecurityPolicy
		if opts.DocsPathPrefix != "" && strings.HasPrefix(c.Request.URL.Path, opts.DocsPathPrefix) {
			csp = opts.DocsContentSecurityPolicy
		}
		if csp != "" {
			h.Set(HeaderContentSecurityPolicy, csp)
		}

		c.Next()
	}
}
