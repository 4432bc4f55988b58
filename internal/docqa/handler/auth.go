// Package handler provides the HTTP handlers of the docqa API.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/infra/middleware/auth"
	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// AuthHandler issues and revokes access tokens.
type AuthHandler struct {
	svc *biz.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *biz.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Token issues a bearer token.
//
// @Summary      Issue access token
// @Description  Returns a bearer token. Credentials are required only when user accounts are configured.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      model.TokenRequest  false  "Credentials"
// @Success      200      {object}  model.TokenResponse
// @Failure      401      {object}  response.ErrorResponse
// @Failure      429      {object}  response.ErrorResponse
// @Router       /api/v1/token [post]
func (h *AuthHandler) Token(c *gin.Context) {
	var req model.TokenRequest
	if !h.svc.DemoMode() {
		// a missing or malformed body is rejected as invalid credentials
		_ = c.ShouldBind(&req)
	}

	resp, err := h.svc.IssueToken(c.Request.Context(), &req)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, resp)
}

// Logout revokes the bearer token of the request.
//
// @Summary      Revoke access token
// @Description  Revokes the presented bearer token until it expires.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.LogoutResponse
// @Failure      401  {object}  response.ErrorResponse
// @Router       /api/v1/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := auth.TokenFrom(c)
	if !ok {
		response.Fail(c, errors.ErrUnauthorized)
		return
	}

	resp, err := h.svc.Logout(c.Request.Context(), token)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, resp)
}
