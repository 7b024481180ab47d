// cmd/scriptgen/main.go
package main

import (
	"log"

	"github.com/Corphon/SceneScriptForm/internal/app"
	"github.com/Corphon/SceneScriptForm/internal/config"
	"github.com/Corphon/SceneScriptForm/internal/llm"
)

func main() {
	log.Println("🚀 启动剧本生成服务...")

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 配置加载完成，端口: %s，LLM: %s (可用: %v)", cfg.ScriptGenPort, cfg.LLMProvider, llm.ListProviders())

	if err := app.InitializeScriptGen(cfg); err != nil {
		log.Fatalf("❌ 初始化失败: %v", err)
	}
	log.Printf("🔗 生成接口: http://localhost:%s/generate-script", cfg.ScriptGenPort)

	if err := app.Run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("✅ 服务已关闭")
}
