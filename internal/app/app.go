// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Corphon/SceneScriptForm/internal/api"
	"github.com/Corphon/SceneScriptForm/internal/client"
	"github.com/Corphon/SceneScriptForm/internal/config"
	"github.com/Corphon/SceneScriptForm/internal/di"
	"github.com/Corphon/SceneScriptForm/internal/llm"
	"github.com/Corphon/SceneScriptForm/internal/render"
	"github.com/Corphon/SceneScriptForm/internal/services"
	"github.com/Corphon/SceneScriptForm/internal/utils"

	// LLM 提供者注册
	_ "github.com/Corphon/SceneScriptForm/internal/llm/providers/mock"
	_ "github.com/Corphon/SceneScriptForm/internal/llm/providers/ollama"
)

const shutdownTimeout = 30 * time.Second

// Server is the part of *http.Server the app drives.
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 应用程序实例
type App struct {
	config   *config.Config
	router   http.Handler
	server   Server
	stopChan chan os.Signal
	closers  []func()
}

var (
	instance   *App
	instanceMu sync.Mutex
)

// GetApp 获取全局应用实例
func GetApp() *App {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		instance = &App{stopChan: make(chan os.Signal, 1)}
	}
	return instance
}

// Initialize prepares the form application: logger, services and router.
func Initialize(cfg *config.Config) error {
	if err := utils.InitLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}

	if err := InitServices(cfg); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	router, handler, err := api.SetupRouter()
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}

	app := GetApp()
	app.config = cfg
	app.router = router
	app.server = &http.Server{Addr: ":" + cfg.Port, Handler: router}
	app.closers = append(app.closers, handler.Close)
	return nil
}

// InitServices registers the form application's services in dependency order.
func InitServices(cfg *config.Config) error {
	container := di.GetContainer()
	logger := utils.GetLogger()

	container.Register(di.ServiceConfig, cfg)

	metrics := utils.GetMetricsCollector()
	container.Register(di.ServiceMetrics, metrics)

	sessions := services.NewSessionStore(cfg.SessionTTL, metrics)
	sessions.StartCleanup(cleanupInterval(cfg.SessionTTL))
	container.Register(di.ServiceSessions, sessions)
	GetApp().closers = append(GetApp().closers, sessions.Shutdown)

	generator := client.NewScriptClient(cfg.GeneratorURL, &http.Client{})
	container.Register(di.ServiceGenerator, generator)

	container.Register(di.ServiceSubmission, services.NewSubmissionService(generator, cfg.RequestTimeout, metrics))

	page, err := render.NewPage()
	if err != nil {
		return err
	}
	container.Register(di.ServicePage, page)

	logger.Info("form services initialized", map[string]interface{}{
		"generator":       generator.Endpoint(),
		"session_ttl":     cfg.SessionTTL.String(),
		"request_timeout": cfg.RequestTimeout.String(),
	})
	return nil
}

// InitializeScriptGen prepares the script generation service.
func InitializeScriptGen(cfg *config.Config) error {
	if err := utils.InitLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}

	generator, err := InitScriptGenServices(cfg)
	if err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	container := di.GetContainer()
	metrics, _ := di.Resolve[*utils.MetricsCollector](container, di.ServiceMetrics)
	visuals, _ := di.Resolve[*services.VisualGeneratorService](container, di.ServiceVisuals)
	router := api.NewScriptGenRouter(
		api.NewScriptGenHandler(generator, metrics),
		api.NewVisualHandler(visuals, metrics),
		cfg.DebugMode,
	)

	app := GetApp()
	app.config = cfg
	app.router = router
	app.server = &http.Server{Addr: ":" + cfg.ScriptGenPort, Handler: router}
	return nil
}

// InitScriptGenServices registers the LLM provider and the generator built on it.
func InitScriptGenServices(cfg *config.Config) (*services.ScriptGeneratorService, error) {
	container := di.GetContainer()

	container.Register(di.ServiceConfig, cfg)
	container.Register(di.ServiceMetrics, utils.GetMetricsCollector())

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		return nil, fmt.Errorf("llm provider %q (available: %v): %w", cfg.LLMProvider, llm.ListProviders(), err)
	}
	container.Register(di.ServiceLLM, provider)

	generator := services.NewScriptGeneratorService(provider)
	container.Register(di.ServiceScriptGenerator, generator)

	visuals := services.NewVisualGeneratorService(cfg.VisualBaseURL)
	container.Register(di.ServiceVisuals, visuals)

	utils.GetLogger().Info("script generation services initialized", map[string]interface{}{
		"provider":    provider.GetName(),
		"model":       cfg.LLMConfig["default_model"],
		"visual_base": visuals.BaseURL(),
	})
	return generator, nil
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully.
func Run() error {
	app := GetApp()
	if app.server == nil {
		return errors.New("app not initialized")
	}
	logger := utils.GetLogger()

	signal.Notify(app.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(app.stopChan)

	serveErr := make(chan error, 1)
	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	if app.config != nil {
		logger.Infof("server listening, debug=%v", app.config.DebugMode)
	}

	select {
	case sig := <-app.stopChan:
		logger.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	case err := <-serveErr:
		app.cleanup()
		return fmt.Errorf("启动服务器失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := app.server.Shutdown(ctx)
	app.cleanup()
	if err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}
	logger.Info("server stopped", nil)
	return nil
}

// cleanup 清理资源, last registered first.
func (a *App) cleanup() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = utils.GetLogger().Sync()
}

// GetConfig 获取应用配置
func (a *App) GetConfig() *config.Config {
	return a.config
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.router
}

// GetDIContainer 获取依赖注入容器
func GetDIContainer() *di.Container {
	return di.GetContainer()
}

// IsDebugMode 检查是否为调试模式
func IsDebugMode() bool {
	instanceMu.Lock()
	app := instance
	instanceMu.Unlock()

	return app != nil && app.config != nil && app.config.DebugMode
}

// cleanupInterval sweeps a few times per TTL, within [1s, 5m].
func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Second {
		return time.Second
	}
	if interval > 5*time.Minute {
		return 5 * time.Minute
	}
	return interval
}
