package resilience

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/docqa/pkg/options/middleware"
	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// BodyLimit 返回请求体大小限制中间件。
//
// 工作原理：
//  1. 检查 Content-Length 头，如果超过限制立即返回 413
//  2. 使用 http.MaxBytesReader 限制实际读取的字节数
func BodyLimit(opts mwopts.BodyLimitOptions) gin.HandlerFunc {
	if opts.MaxSize <= 0 {
		opts.MaxSize = mwopts.NewBodyLimitOptions().MaxSize
	}

	return func(c *gin.Context) {
		req := c.Request
		if req.ContentLength > opts.MaxSize {
			logger.Warnw("Request body too large",
				"path", req.URL.Path,
				"content_length", req.ContentLength,
				"max_size", opts.MaxSize,
			)
			response.Fail(c, errors.ErrRequestTooLarge)
			return
		}

		if req.Body != nil {
			req.Body = http.MaxBytesReader(c.Writer, req.Body, opts.MaxSize)
		}
		c.Next()
	}
}
