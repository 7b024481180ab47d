// internal/api/visual_handlers.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/SceneScriptForm/internal/errors"
	"github.com/Corphon/SceneScriptForm/internal/models"
	"github.com/Corphon/SceneScriptForm/internal/services"
	"github.com/Corphon/SceneScriptForm/internal/utils"
)

// VisualHandler serves POST /generate-visuals with the same plain wire
// format as the script route.
type VisualHandler struct {
	Visuals *services.VisualGeneratorService
	Metrics *utils.MetricsCollector
	logger  *utils.Logger
}

// NewVisualHandler 创建配图处理器
func NewVisualHandler(visuals *services.VisualGeneratorService, metrics *utils.MetricsCollector) *VisualHandler {
	return &VisualHandler{
		Visuals: visuals,
		Metrics: metrics,
		logger:  utils.GetLogger(),
	}
}

// GenerateVisuals maps the posted scenes to image URLs.
func (h *VisualHandler) GenerateVisuals(c *gin.Context) {
	var req models.VisualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	set, err := h.Visuals.GenerateVisuals(c.Request.Context(), req.Scenes)
	if err != nil {
		status := http.StatusInternalServerError
		if apperrors.IsValidationError(err) {
			status = http.StatusBadRequest
		}
		h.fail(c, status, apperrors.UserMessage(err))
		return
	}

	h.Metrics.VisualsServed(http.StatusOK)
	h.logger.Info("visuals generated", map[string]interface{}{
		"scenes":     len(set.Scenes),
		"request_id": c.GetString(requestIDKey),
	})
	c.JSON(http.StatusOK, set)
}

func (h *VisualHandler) fail(c *gin.Context, status int, message string) {
	h.Metrics.VisualsServed(status)
	c.JSON(status, gin.H{"error": message})
}
