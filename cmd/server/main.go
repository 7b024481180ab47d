// cmd/server/main.go
package main

import (
	"log"

	"github.com/Corphon/SceneScriptForm/internal/app"
	"github.com/Corphon/SceneScriptForm/internal/config"
)

func main() {
	log.Println("🚀 启动 SceneScriptForm 服务器...")

	// 1. 加载配置
	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 配置加载完成，端口: %s，生成服务: %s", cfg.Port, cfg.GeneratorURL)

	// 2. 初始化服务和路由
	if err := app.Initialize(cfg); err != nil {
		log.Fatalf("❌ 初始化失败: %v", err)
	}
	log.Printf("🔗 访问地址: http://localhost:%s", cfg.Port)

	// 3. 启动服务器，等待中断信号后优雅关闭
	if err := app.Run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("✅ 服务器优雅关闭完成")
}
