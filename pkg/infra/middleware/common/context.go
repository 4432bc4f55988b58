// Package common provides shared utilities for middleware packages.
package common

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Header constants used across middleware.
const (
	// HeaderXRequestID is the header name for request ID.
	HeaderXRequestID = "X-Request-ID"
	// HeaderProcessTime carries the handling time in seconds.
	HeaderProcessTime = "X-Process-Time"
)

// ContextKeyRequestID is the gin context key holding the request ID.
const ContextKeyRequestID = "request_id"

// RequestIDKey is the context key type for request ID.
type RequestIDKey struct{}

// GetRequestID returns the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey{}, requestID)
}

// RequestIDFromGin returns the request ID stored on c.
func RequestIDFromGin(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// ClientIP returns the caller IP. Proxy headers are honoured only when
// trustProxy is set, otherwise the socket peer address is used.
func ClientIP(c *gin.Context, trustProxy bool) string {
	if trustProxy {
		return c.ClientIP()
	}
	return c.RemoteIP()
}
