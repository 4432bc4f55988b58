package security

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	mwopts "github.com/kart-io/docqa/pkg/options/middleware"
)

// CORS 返回跨域资源共享中间件。
// 允许所有来源且开启凭证时，回显请求的 Origin（浏览器不接受 "*" 与凭证同时出现）。
func CORS(opts mwopts.CORSOptions) gin.HandlerFunc {
	allowAll := contains(opts.AllowOrigins, "*")
	allowed := make(map[string]bool, len(opts.AllowOrigins))
	for _, o := range opts.AllowOrigins {
		allowed[o] = true
	}
	methods := strings.Join(opts.AllowMethods, ", ")
	headers := strings.Join(opts.AllowHeaders, ", ")
	maxAge := strconv.Itoa(opts.MaxAge)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if !allowAll && !allowed[origin] {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		if allowAll && !opts.AllowCredentials {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
		}
		if opts.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			allowMethods := methods
			if contains(opts.AllowMethods, "*") {
				allowMethods = c.GetHeader("Access-Control-Request-Method")
			}
			allowHeaders := headers
			if contains(opts.AllowHeaders, "*") {
				allowHeaders = c.GetHeader("Access-Control-Request-Headers")
			}
			h.Set("Access-Control-Allow-Methods", allowMethods)
			if allowHeaders != "" {
				h.Set("Access-Control-Allow-Headers", allowHeaders)
			}
			if opts.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", maxAge)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
