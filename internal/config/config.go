// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 当前配置的单例实例
var (
	currentConfig *Config
	configMutex   sync.RWMutex
)

// Config 存储应用配置
type Config struct {
	// form application
	Port           string        `yaml:"port"`
	GeneratorURL   string        `yaml:"generator_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	DebugMode      bool          `yaml:"debug_mode"`
	LogLevel       string        `yaml:"log_level"`
	LogFile        string        `yaml:"log_file"`

	// script generation service
	ScriptGenPort string            `yaml:"scriptgen_port"`
	LLMProvider   string            `yaml:"llm_provider"`
	LLMConfig     map[string]string `yaml:"llm_config"`
	VisualBaseURL string            `yaml:"visual_base_url"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:           "8080",
		GeneratorURL:   "http://localhost:5001",
		RequestTimeout: 0,
		SessionTTL:     30 * time.Minute,
		DebugMode:      true,
		LogLevel:       "info",
		ScriptGenPort:  "5001",
		LLMProvider:    "mock",
		LLMConfig: map[string]string{
			"host":          "http://localhost:11434",
			"default_model": "llama3",
		},
		VisualBaseURL: "https://storage.googleapis.com/scenescript-visuals",
	}
}

// Load 从 .env、可选的 YAML 文件和环境变量加载配置
//
// Precedence, lowest first: defaults, CONFIG_FILE, environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.GeneratorURL = strings.TrimRight(getEnv("GENERATOR_URL", cfg.GeneratorURL), "/")
	cfg.DebugMode = getEnvBool("DEBUG_MODE", cfg.DebugMode)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.ScriptGenPort = getEnv("SCRIPTGEN_PORT", cfg.ScriptGenPort)
	cfg.LLMProvider = getEnv("LLM_PROVIDER", cfg.LLMProvider)
	cfg.LLMConfig["host"] = getEnv("OLLAMA_HOST", cfg.LLMConfig["host"])
	cfg.LLMConfig["default_model"] = getEnv("OLLAMA_MODEL", cfg.LLMConfig["default_model"])
	cfg.VisualBaseURL = strings.TrimRight(getEnv("VISUAL_BASE_URL", cfg.VisualBaseURL), "/")

	var err error
	if cfg.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", cfg.SessionTTL); err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.RequestTimeout < 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", cfg.RequestTimeout)
	}

	return cfg, nil
}

// applyFile overlays the YAML file at path onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	llmDefaults := cfg.LLMConfig
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	// keep defaults for llm keys the file does not set
	if cfg.LLMConfig == nil {
		cfg.LLMConfig = map[string]string{}
	}
	for k, v := range llmDefaults {
		if _, ok := cfg.LLMConfig[k]; !ok {
			cfg.LLMConfig[k] = v
		}
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvDuration accepts Go durations ("90s") and bare seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	if d, err := time.ParseDuration(value + "s"); err == nil {
		return d, nil
	}
	return 0, fmt.Errorf("invalid duration for %s: %q", key, value)
}

// InitConfig 初始化配置管理器
func InitConfig() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	configMutex.Lock()
	currentConfig = cfg
	configMutex.Unlock()

	return GetCurrentConfig(), nil
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		return Default()
	}

	configCopy := *currentConfig
	configCopy.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		configCopy.LLMConfig[k] = v
	}
	return &configCopy
}
