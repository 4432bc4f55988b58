// Package middleware provides the HTTP middleware chain used by docqa.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/pkg/infra/middleware/common"
	mwopts "github.com/kart-io/docqa/pkg/options/middleware"
	"github.com/kart-io/docqa/pkg/utils/id"
)

// HeaderXRequestID is re-exported from common for convenience.
const HeaderXRequestID = common.HeaderXRequestID

// RequestID returns a middleware that adds a unique request ID to each request.
// An incoming ID in the configured header is kept, otherwise a ULID is generated.
// The ID is set on the response header, the gin context and the request context.
func RequestID(opts mwopts.RequestIDOptions) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = HeaderXRequestID
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(header)
		if requestID == "" {
			requestID = id.NewULID()
		}

		c.Header(header, requestID)
		c.Set(common.ContextKeyRequestID, requestID)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID returns the request ID stored on c.
func GetRequestID(c *gin.Context) string {
	return common.RequestIDFromGin(c)
}
