// internal/models/script.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// GeneratedScript is the narrative returned by the generation service.
type GeneratedScript struct {
	Title  string  `json:"title"`
	Scenes []Scene `json:"scenes"`
}

// Scene is one narrative unit. SceneNumber is a display key; it is not
// checked for uniqueness or order.
type Scene struct {
	SceneNumber int    `json:"scene_number"`
	Description string `json:"description"`
	Dialogue    string `json:"dialogue"`
}

// wireScript detects absent keys, which a plain struct decode would turn
// into zero values.
type wireScript struct {
	Title  *string  `json:"title"`
	Scenes *[]Scene `json:"scenes"`
}

// DecodeScript parses and validates a response body. Both title and scenes
// must be present; scenes may be empty.
func DecodeScript(body []byte) (*GeneratedScript, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	var wire wireScript
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if wire.Title == nil {
		return nil, fmt.Errorf("missing title")
	}
	if wire.Scenes == nil {
		return nil, fmt.Errorf("missing scenes")
	}

	return &GeneratedScript{Title: *wire.Title, Scenes: *wire.Scenes}, nil
}

// Clone returns a deep copy so snapshots never share scene slices.
func (s *GeneratedScript) Clone() *GeneratedScript {
	if s == nil {
		return nil
	}
	out := &GeneratedScript{Title: s.Title}
	if s.Scenes != nil {
		out.Scenes = append(make([]Scene, 0, len(s.Scenes)), s.Scenes...)
	}
	return out
}
