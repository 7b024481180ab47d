// internal/llm/providers/mock/mock.go
package mock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Corphon/SceneScriptForm/internal/llm"
)

// Name is the registry key of the canned provider.
const Name = "mock"

func init() {
	llm.Register(Name, func() llm.Provider {
		return &Provider{}
	})
}

// Provider answers every request with a fixed two-scene script built from
// the genre and visualStyle request parameters. It needs no configuration.
type Provider struct{}

type scene struct {
	SceneNumber int    `json:"scene_number"`
	Description string `json:"description"`
	Dialogue    string `json:"dialogue"`
}

type script struct {
	Title  string  `json:"title"`
	Scenes []scene `json:"scenes"`
}

func (p *Provider) Initialize(config map[string]string) error {
	return nil
}

func (p *Provider) GetName() string {
	return "Mock"
}

func (p *Provider) GetSupportedModels() []string {
	return []string{"canned"}
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	genre := req.StringParam("genre")
	style := req.StringParam("visualStyle")

	out := script{
		Title: fmt.Sprintf("%s Story", genre),
		Scenes: []scene{
			{
				SceneNumber: 1,
				Description: fmt.Sprintf("Opening scene in %s style", style),
				Dialogue:    "Sample dialogue for scene 1",
			},
			{
				SceneNumber: 2,
				Description: fmt.Sprintf("Main scene in %s style", style),
				Dialogue:    "Sample dialogue for scene 2",
			},
		},
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}

	return &llm.CompletionResponse{
		Text:         string(body),
		FinishReason: "stop",
		ModelName:    "canned",
		ProviderName: p.GetName(),
	}, nil
}
