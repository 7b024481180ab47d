// internal/services/visual_generator_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/Corphon/SceneScriptForm/internal/errors"
	"github.com/Corphon/SceneScriptForm/internal/models"
	"github.com/Corphon/SceneScriptForm/internal/utils"
)

// VisualGeneratorService assigns an image to every scene. No image model is
// wired yet: URLs are shaped from the scene number under baseURL.
type VisualGeneratorService struct {
	baseURL string
	logger  *utils.Logger
}

// NewVisualGeneratorService 创建配图服务
func NewVisualGeneratorService(baseURL string) *VisualGeneratorService {
	return &VisualGeneratorService{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  utils.GetLogger(),
	}
}

// BaseURL 返回图片地址前缀
func (s *VisualGeneratorService) BaseURL() string {
	return s.baseURL
}

// GenerateVisuals returns one visual per scene, in order. Scene numbers are
// not checked for uniqueness, matching how scripts treat them.
func (s *VisualGeneratorService) GenerateVisuals(ctx context.Context, scenes []models.Scene) (*models.VisualSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := &models.VisualSet{Scenes: make([]models.SceneVisual, 0, len(scenes))}
	for i, scene := range scenes {
		if scene.SceneNumber < 1 {
			return nil, apperrors.NewValidationError(fmt.Sprintf("scene %d: scene_number must be positive", i+1), nil)
		}
		set.Scenes = append(set.Scenes, models.SceneVisual{
			SceneNumber: scene.SceneNumber,
			ImageURL:    s.imageURL(scene.SceneNumber),
		})
	}

	s.logger.Debug("visuals generated", map[string]interface{}{"scenes": len(set.Scenes)})
	return set, nil
}

func (s *VisualGeneratorService) imageURL(sceneNumber int) string {
	return fmt.Sprintf("%s/mock_scene_%d.png", s.baseURL, sceneNumber)
}
