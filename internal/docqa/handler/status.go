package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// StatusHandler serves health and monitoring endpoints.
type StatusHandler struct {
	svc  *biz.StatusService
	info model.RootResponse
}

// NewStatusHandler creates a new StatusHandler. name and description are
// shown on the root endpoint.
func NewStatusHandler(svc *biz.StatusService, name, description string) *StatusHandler {
	return &StatusHandler{
		svc: svc,
		info: model.RootResponse{
			Name:        name,
			Version:     svc.Version(),
			Description: description,
			Endpoints: model.Endpoints{
				Docs:        "/api/docs",
				Metrics:     "/metrics",
				Health:      "/health",
				Upload:      "POST /api/v1/upload",
				Ask:         "POST /api/v1/ask",
				AskDetailed: "POST /api/v1/ask-detailed",
			},
		},
	}
}

// Root describes the API.
//
// @Summary      API information
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  model.RootResponse
// @Router       / [get]
func (h *StatusHandler) Root(c *gin.Context) {
	response.OK(c, h.info)
}

// Health is the liveness probe.
//
// @Summary      Health check
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  model.HealthResponse
// @Router       /health [get]
func (h *StatusHandler) Health(c *gin.Context) {
	response.OK(c, h.svc.Health())
}

// DetailedHealth reports each component.
//
// @Summary      Detailed health check
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  model.DetailedHealthResponse
// @Router       /api/v1/health/detailed [get]
func (h *StatusHandler) DetailedHealth(c *gin.Context) {
	response.OK(c, h.svc.DetailedHealth(c.Request.Context()))
}

// CacheStats reports cache statistics.
//
// @Summary      Cache statistics
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/cache/stats [get]
func (h *StatusHandler) CacheStats(c *gin.Context) {
	response.OK(c, h.svc.CacheStats(c.Request.Context()))
}

// ModelsStatus reports the loaded models.
//
// @Summary      Model status
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  model.ModelsStatusResponse
// @Router       /api/v1/models/status [get]
func (h *StatusHandler) ModelsStatus(c *gin.Context) {
	response.OK(c, h.svc.ModelsStatus())
}
