package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Recorder 接收每个请求的指标。
type Recorder interface {
	ObserveRequest(method, endpoint, status string, duration time.Duration)
}

// Metrics returns a middleware that reports every request to rec. The
// endpoint label is the matched route template so path parameters do not
// explode label cardinality. Unmatched requests are reported as "unmatched".
func Metrics(rec Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		rec.ObserveRequest(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
