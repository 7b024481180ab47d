// internal/api/scriptgen_handlers.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/SceneScriptForm/internal/errors"
	"github.com/Corphon/SceneScriptForm/internal/models"
	"github.com/Corphon/SceneScriptForm/internal/services"
	"github.com/Corphon/SceneScriptForm/internal/utils"
)

const healthTimeout = 3 * time.Second

// ScriptGenHandler serves the generation service. Its wire format is the
// plain one the form application's client expects: the script object on
// success and {"error": message} otherwise.
type ScriptGenHandler struct {
	Generator *services.ScriptGeneratorService
	Metrics   *utils.MetricsCollector
	logger    *utils.Logger
}

// NewScriptGenHandler 创建生成服务处理器
func NewScriptGenHandler(generator *services.ScriptGeneratorService, metrics *utils.MetricsCollector) *ScriptGenHandler {
	return &ScriptGenHandler{
		Generator: generator,
		Metrics:   metrics,
		logger:    utils.GetLogger(),
	}
}

// Health 健康检查; 503 while the provider is unreachable.
func (h *ScriptGenHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	provider := h.Generator.ProviderName()
	if err := h.Generator.Ping(ctx); err != nil {
		h.logger.Warn("llm provider unreachable", map[string]interface{}{
			"provider": provider,
			"err":      err.Error(),
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "degraded",
			"provider":   provider,
			"llm_status": "disconnected",
			"error":      err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"provider":   provider,
		"llm_status": "connected",
	})
}

// GenerateScript decodes form input and answers with a generated script.
func (h *ScriptGenHandler) GenerateScript(c *gin.Context) {
	var input models.FormInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	script, err := h.Generator.GenerateScript(c.Request.Context(), input)
	if err != nil {
		status := http.StatusInternalServerError
		if apperrors.IsValidationError(err) {
			status = http.StatusBadRequest
		}
		h.fail(c, status, apperrors.UserMessage(err))
		return
	}

	h.Metrics.ScriptGenServed(h.Generator.ProviderName(), http.StatusOK)
	h.logger.Info("script generated", map[string]interface{}{
		"genre":        input.Genre,
		"visual_style": input.VisualStyle,
		"scenes":       len(script.Scenes),
		"request_id":   c.GetString(requestIDKey),
	})
	c.JSON(http.StatusOK, script)
}

func (h *ScriptGenHandler) fail(c *gin.Context, status int, message string) {
	h.Metrics.ScriptGenServed(h.Generator.ProviderName(), status)
	c.JSON(status, gin.H{"error": message})
}
