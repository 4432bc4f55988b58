package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// SessionHandler manages document sessions.
type SessionHandler struct {
	svc *biz.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(svc *biz.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// Create starts a new session.
//
// @Summary      Create session
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.CreateSessionResponse
// @Failure      401  {object}  response.ErrorResponse
// @Router       /api/v1/session [post]
func (h *SessionHandler) Create(c *gin.Context) {
	resp, err := h.svc.Create(c.Request.Context())
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, resp)
}

// Get returns a session with its documents.
//
// @Summary      Get session
// @Description  Returns the session with every document, its text and entity recognition state.
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        session_id  path      string  true   "Session ID"
// @Param        format      query     string  false  "Entity highlight format (html, markdown)"
// @Success      200         {object}  model.SessionDetail
// @Failure      404         {object}  response.ErrorResponse
// @Router       /api/v1/session/{session_id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	resp, err := h.svc.Get(c.Request.Context(), c.Param("session_id"), c.Query("format"))
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, resp)
}

// Delete removes a session, its index and its cached answers.
//
// @Summary      Delete session
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        session_id  path      string  true  "Session ID"
// @Success      200         {object}  model.DeleteSessionResponse
// @Failure      404         {object}  response.ErrorResponse
// @Router       /api/v1/session/{session_id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	resp, err := h.svc.Delete(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, resp)
}

// Count lists active sessions.
//
// @Summary      Count sessions
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  model.SessionCount
// @Router       /api/v1/sessions/count [get]
func (h *SessionHandler) Count(c *gin.Context) {
	resp, err := h.svc.Count(c.Request.Context())
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, resp)
}
