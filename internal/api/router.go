// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/SceneScriptForm/internal/config"
	"github.com/Corphon/SceneScriptForm/internal/di"
	"github.com/Corphon/SceneScriptForm/internal/render"
	"github.com/Corphon/SceneScriptForm/internal/services"
	"github.com/Corphon/SceneScriptForm/internal/utils"
)

const (
	submitRateLimit  = 30
	submitRateWindow = time.Minute
)

// SetupRouter 配置表单应用的HTTP路由. Services come from the global container.
func SetupRouter() (*gin.Engine, *Handler, error) {
	container := di.GetContainer()

	cfg, ok := di.Resolve[*config.Config](container, di.ServiceConfig)
	if !ok {
		return nil, nil, fmt.Errorf("config not registered")
	}
	sessions, ok := di.Resolve[*services.SessionStore](container, di.ServiceSessions)
	if !ok {
		return nil, nil, fmt.Errorf("session store not registered")
	}
	submissions, ok := di.Resolve[*services.SubmissionService](container, di.ServiceSubmission)
	if !ok {
		return nil, nil, fmt.Errorf("submission service not registered")
	}
	metrics, ok := di.Resolve[*utils.MetricsCollector](container, di.ServiceMetrics)
	if !ok {
		return nil, nil, fmt.Errorf("metrics collector not registered")
	}
	page, ok := di.Resolve[*render.Page](container, di.ServicePage)
	if !ok {
		return nil, nil, fmt.Errorf("page templates not registered")
	}

	handler := NewHandler(sessions, submissions, metrics)
	return NewRouter(handler, page, cfg.DebugMode), handler, nil
}

// NewRouter builds the form application's routes around handler.
func NewRouter(handler *Handler, page *render.Page, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger())
	r.SetHTMLTemplate(page.Template())

	submitLimit := RateLimitByIP(handler.Limiter, submitRateLimit, submitRateWindow)

	// ===============================
	// 页面路由
	// ===============================
	r.GET("/", handler.IndexPage)
	r.GET("/sessions/:id", handler.SessionPage)
	r.POST("/sessions/:id/submit", submitLimit, handler.SubmitForm)

	// WebSocket 支持
	r.GET("/ws/sessions/:id", handler.SessionWebSocket)

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(handler.Metrics.Handler()))

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		api.GET("/catalog", handler.Catalog)
		api.GET("/ws/status", handler.GetWebSocketStatus)

		sessionsGroup := api.Group("/sessions")
		{
			sessionsGroup.POST("", handler.CreateSession)
			sessionsGroup.GET("/:id", handler.GetSession)
			sessionsGroup.PUT("/:id/fields/:name", handler.SetField)
			sessionsGroup.POST("/:id/submit", submitLimit, handler.SubmitJSON)
			sessionsGroup.DELETE("/:id", handler.DeleteSession)
		}
	}

	return r
}

// NewScriptGenRouter builds the generation service's routes.
func NewScriptGenRouter(handler *ScriptGenHandler, visuals *VisualHandler, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger())

	// 启用CORS
	r.Use(corsMiddleware())

	r.GET("/health", handler.Health)
	r.POST("/generate-script", handler.GenerateScript)
	r.POST("/generate-visuals", visuals.GenerateVisuals)
	r.GET("/metrics", gin.WrapH(handler.Metrics.Handler()))

	// gin runs middleware only for routed paths, so preflight needs a route.
	r.OPTIONS("/generate-script", func(c *gin.Context) {})
	r.OPTIONS("/generate-visuals", func(c *gin.Context) {})

	return r
}
