// Package observability provides request logging and metrics middleware.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/pkg/infra/middleware/common"
	mwopts "github.com/kart-io/docqa/pkg/options/middleware"
)

// processTimeWriter 在写出响应头之前补充 X-Process-Time。
type processTimeWriter struct {
	gin.ResponseWriter
	start   time.Time
	written bool
}

func (w *processTimeWriter) stamp() {
	if w.written {
		return
	}
	w.written = true
	w.Header().Set(common.HeaderProcessTime, formatSeconds(time.Since(w.start)))
}

func (w *processTimeWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *processTimeWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *processTimeWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *processTimeWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}

// Logger returns a middleware that logs each request and its response and
// reports the handling time in X-Process-Time.
func Logger(opts mwopts.LoggerOptions) gin.HandlerFunc {
	skipPaths := make(map[string]bool, len(opts.SkipPaths))
	for _, path := range opts.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Writer = &processTimeWriter{ResponseWriter: c.Writer, start: start}

		path := c.Request.URL.Path
		if skipPaths[path] {
			c.Next()
			return
		}

		requestID := common.RequestIDFromGin(c)
		logger.Infow("Request started",
			"method", c.Request.Method,
			"path", path,
			"client", c.ClientIP(),
			"request_id", requestID,
		)

		c.Next()

		latency := time.Since(start)
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", latency.Seconds(),
			"latency_ms", latency.Milliseconds(),
			"request_id", requestID,
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Errorw("Request completed", fields...)
		case status >= 400:
			logger.Warnw("Request completed", fields...)
		default:
			logger.Infow("Request completed", fields...)
		}
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}
