// internal/models/visual.go
package models

// VisualRequest is the body of POST /generate-visuals. Scenes are usually
// taken straight from a GeneratedScript; only scene_number is read.
type VisualRequest struct {
	Scenes []Scene `json:"scenes"`
}

// SceneVisual 单个场景的配图
type SceneVisual struct {
	SceneNumber int    `json:"scene_number"`
	ImageURL    string `json:"image_url"`
}

// VisualSet is the response of POST /generate-visuals, one entry per
// requested scene in request order.
type VisualSet struct {
	Scenes []SceneVisual `json:"scenes"`
}
