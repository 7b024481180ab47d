// internal/services/script_generator_service.go
package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	apperrors "github.com/Corphon/SceneScriptForm/internal/errors"
	"github.com/Corphon/SceneScriptForm/internal/llm"
	"github.com/Corphon/SceneScriptForm/internal/models"
	"github.com/Corphon/SceneScriptForm/internal/utils"
)

const scriptSystemPrompt = `You are a screenwriter. Reply with a single JSON object and nothing else.
The object must have exactly this shape:
{"title": string, "scenes": [{"scene_number": integer, "description": string, "dialogue": string}]}
Number scenes from 1. Plain text only, no markdown or HTML.`

// ScriptGeneratorService turns form input into a script through an LLM provider.
type ScriptGeneratorService struct {
	provider llm.Provider
	policy   *bluemonday.Policy
	logger   *utils.Logger
}

// NewScriptGeneratorService wraps provider.
func NewScriptGeneratorService(provider llm.Provider) *ScriptGeneratorService {
	return &ScriptGeneratorService{
		provider: provider,
		policy:   bluemonday.StrictPolicy(),
		logger:   utils.GetLogger(),
	}
}

// ProviderName 返回当前提供者名称
func (s *ScriptGeneratorService) ProviderName() string {
	return s.provider.GetName()
}

// Ping reports whether the provider is reachable.
func (s *ScriptGeneratorService) Ping(ctx context.Context) error {
	return llm.Ping(ctx, s.provider)
}

// GenerateScript validates input, asks the provider for a script and cleans
// the result. Model output that does not decode into a script is reported as
// a malformed response.
func (s *ScriptGeneratorService) GenerateScript(ctx context.Context, input models.FormInput) (*models.GeneratedScript, error) {
	if missing := input.Missing(); len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing fields: "+strings.Join(missing, ", "), nil)
	}

	req := llm.CompletionRequest{
		SystemPrompt: scriptSystemPrompt,
		Prompt:       buildScriptPrompt(input),
		Temperature:  0.8,
		JSONMode:     true,
		ExtraParams: map[string]interface{}{
			models.FieldGenre:       input.Genre,
			models.FieldTheme:       input.Theme,
			models.FieldVisualStyle: input.VisualStyle,
		},
	}

	resp, err := s.provider.CompleteText(ctx, req)
	if err != nil {
		s.logger.Error("llm completion failed", map[string]interface{}{
			"provider": s.provider.GetName(),
			"err":      err.Error(),
		})
		return nil, apperrors.NewProcessingError("script generation failed", err)
	}

	script, err := models.DecodeScript([]byte(extractJSON(resp.Text)))
	if err != nil {
		s.logger.Warn("llm returned an unusable script", map[string]interface{}{
			"provider": s.provider.GetName(),
			"model":    resp.ModelName,
			"err":      err.Error(),
		})
		return nil, apperrors.NewMalformedResponseError(err.Error(), nil)
	}

	return s.clean(script), nil
}

func (s *ScriptGeneratorService) clean(script *models.GeneratedScript) *models.GeneratedScript {
	out := &models.GeneratedScript{
		Title:  s.plainText(script.Title),
		Scenes: make([]models.Scene, len(script.Scenes)),
	}
	for i, sc := range script.Scenes {
		out.Scenes[i] = models.Scene{
			SceneNumber: sc.SceneNumber,
			Description: s.plainText(sc.Description),
			Dialogue:    s.plainText(sc.Dialogue),
		}
	}
	return out
}

// plainText drops markup. The strict policy entity-encodes what it keeps, so
// the result is unescaped back to text; the page escapes it again on render.
func (s *ScriptGeneratorService) plainText(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}

func buildScriptPrompt(input models.FormInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a short %s screenplay.\n", input.Genre)
	fmt.Fprintf(&b, "Theme: %s\n", input.Theme)
	fmt.Fprintf(&b, "Visual style: %s\n", input.VisualStyle)
	b.WriteString("Give it a title and two to four scenes, each with a description and a line of dialogue.")
	return b.String()
}

// extractJSON pulls the script object out of model output. Some models wrap
// it in a ``` block or surround it with prose despite the JSON format
// constraint; everything outside the first '{' and the last '}' is dropped.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
