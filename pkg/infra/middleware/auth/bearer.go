// Package auth provides bearer token authentication middleware.
package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/pkg/security/jwt"
	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// gin context keys set by Bearer.
const (
	ContextKeyClaims = "auth_claims"
	ContextKeyToken  = "auth_token"
)

// Verifier 校验 token 并返回 claims。
type Verifier interface {
	Verify(ctx context.Context, token string) (*jwt.Claims, error)
}

// Bearer returns a middleware that requires "Authorization: Bearer <token>".
// Every rejection is a 401 with WWW-Authenticate: Bearer.
func Bearer(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			unauthorized(c, errors.ErrUnauthorized.WithMessage("Missing authorization header"))
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			unauthorized(c, errors.ErrUnauthorized.WithMessage("Invalid authorization header format"))
			return
		}

		token = strings.TrimSpace(token)
		claims, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Debugw("Token verification failed", "error", err, "path", c.Request.URL.Path)
			unauthorized(c, errors.ErrInvalidToken)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyToken, token)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Bearer.
func ClaimsFrom(c *gin.Context) (*jwt.Claims, bool) {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}

// TokenFrom returns the raw bearer token accepted by Bearer.
func TokenFrom(c *gin.Context) (string, bool) {
	token := c.GetString(ContextKeyToken)
	return token, token != ""
}

func unauthorized(c *gin.Context, e *errors.Errno) {
	c.Header("WWW-Authenticate", "Bearer")
	response.Fail(c, e)
}
