// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// 错误定义
var ErrUnknownProvider = errors.New("unknown llm provider")

// 请求参数标准化
type CompletionRequest struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
	Model        string  `json:"model,omitempty"`
	// JSONMode asks the provider to constrain its output to a JSON document.
	JSONMode    bool                   `json:"json_mode,omitempty"`
	ExtraParams map[string]interface{} `json:"extra_params,omitempty"`
}

// 响应结构标准化
type CompletionResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// Provider 定义所有LLM提供者必须实现的接口
type Provider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 获取支持的模型列表
	GetSupportedModels() []string

	// 文本生成
	CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// HealthChecker is implemented by providers backed by a remote server.
// Providers without it are treated as always reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Ping reports whether p can currently serve requests.
func Ping(ctx context.Context, p Provider) error {
	if hc, ok := p.(HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// ProviderFactory creates an uninitialized provider.
type ProviderFactory func() Provider

var (
	providersMu sync.RWMutex
	providers   = make(map[string]ProviderFactory)
)

// Register 注册提供者工厂. Providers call it from init.
func Register(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// GetProvider 创建并初始化指定名称的提供者实例
func GetProvider(name string, config map[string]string) (Provider, error) {
	providersMu.RLock()
	factory, exists := providers[name]
	providersMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	provider := factory()
	if err := provider.Initialize(config); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", name, err)
	}
	return provider, nil
}

// ListProviders 返回所有已注册的提供者名称
func ListProviders() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StringParam reads a string entry from ExtraParams.
func (r CompletionRequest) StringParam(key string) string {
	if r.ExtraParams == nil {
		return ""
	}
	if s, ok := r.ExtraParams[key].(string); ok {
		return s
	}
	return ""
}
