// internal/llm/providers/ollama/ollama.go
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/Corphon/SceneScriptForm/internal/llm"
)

// Name is the registry key of the Ollama provider.
const Name = "ollama"

const (
	defaultHost  = "http://localhost:11434"
	defaultModel = "llama3"
)

func init() {
	llm.Register(Name, func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"llama3",
				"llama3.1:8b",
				"mistral:7b",
				"qwen2.5:7b",
			},
		}
	})
}

// Provider runs completions against a local Ollama server.
type Provider struct {
	client            *api.Client
	host              string
	defaultModel      string
	recommendedModels []string
}

// Initialize reads "host" and "default_model"; both fall back to local defaults.
func (p *Provider) Initialize(config map[string]string) error {
	p.host = defaultHost
	if host, ok := config["host"]; ok && host != "" {
		p.host = host
	}

	parsed, err := url.Parse(p.host)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid ollama host %q", p.host)
	}

	p.defaultModel = defaultModel
	if model, ok := config["default_model"]; ok && model != "" {
		p.defaultModel = model
	}

	p.client = api.NewClient(parsed, http.DefaultClient)
	return nil
}

func (p *Provider) GetName() string {
	return "Ollama"
}

func (p *Provider) GetSupportedModels() []string {
	return p.recommendedModels
}

// Ping checks that the Ollama server answers.
func (p *Provider) Ping(ctx context.Context) error {
	if p.client == nil {
		return errors.New("ollama provider not initialized")
	}
	if err := p.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat %s: %w", p.host, err)
	}
	return nil
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.client == nil {
		return nil, errors.New("ollama provider not initialized")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]api.Message, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  map[string]any{},
	}
	if req.Temperature > 0 {
		chatReq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.MaxTokens
	}
	if req.JSONMode {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	var response api.ChatResponse
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	return &llm.CompletionResponse{
		Text:         response.Message.Content,
		FinishReason: response.DoneReason,
		PromptTokens: response.PromptEvalCount,
		OutputTokens: response.EvalCount,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}
