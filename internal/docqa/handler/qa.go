package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// QAHandler answers questions.
type QAHandler struct {
	svc *biz.QAService
}

// NewQAHandler creates a new QAHandler.
func NewQAHandler(svc *biz.QAService) *QAHandler {
	return &QAHandler{svc: svc}
}

// Ask answers a question from a session or one of its documents.
//
// @Summary      Ask a question
// @Description  Answers from doc_id when given, otherwise from the retrieved chunks or the best matching document. Session-wide answers are cached.
// @Tags         qa
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.AskRequest  true  "Question"
// @Success      200      {object}  model.AskResponse
// @Failure      400      {object}  response.ErrorResponse
// @Failure      404      {object}  response.ErrorResponse
// @Router       /api/v1/ask [post]
func (h *QAHandler) Ask(c *gin.Context) {
	var req model.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWithBindOrValidation(c, err)
		return
	}

	resp, err := h.svc.Ask(c.Request.Context(), &req)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, resp)
}

// AskDetailed answers a question against every document.
//
// @Summary      Ask with per-document answers
// @Tags         qa
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.AskRequest  true  "Question"
// @Success      200      {object}  model.AskDetailedResponse
// @Failure      400      {object}  response.ErrorResponse
// @Failure      404      {object}  response.ErrorResponse
// @Router       /api/v1/ask-detailed [post]
func (h *QAHandler) AskDetailed(c *gin.Context) {
	var req model.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWithBindOrValidation(c, err)
		return
	}

	resp, err := h.svc.AskDetailed(c.Request.Context(), &req)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, resp)
}
