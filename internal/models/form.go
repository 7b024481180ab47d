// internal/models/form.go
package models

import "slices"

// Field names accepted by the form. They double as JSON keys on the wire.
const (
	FieldGenre       = "genre"
	FieldTheme       = "theme"
	FieldVisualStyle = "visualStyle"
)

var genres = []string{
	"Action",
	"Drama",
	"Comedy",
	"Sci-Fi",
	"Fantasy",
	"Romance",
	"Mystery",
	"Horror",
}

var visualStyles = []string{
	"Realistic",
	"Animated",
	"Cinematic",
	"Artistic",
	"Minimalist",
	"Vintage",
}

// Genres returns the selectable genres in display order.
func Genres() []string { return slices.Clone(genres) }

// VisualStyles returns the selectable visual styles in display order.
func VisualStyles() []string { return slices.Clone(visualStyles) }

// IsGenre reports whether v is one of the selectable genres.
func IsGenre(v string) bool { return slices.Contains(genres, v) }

// IsVisualStyle reports whether v is one of the selectable visual styles.
func IsVisualStyle(v string) bool { return slices.Contains(visualStyles, v) }

// FormInput is the user's three choices. Its JSON encoding is exactly the
// request body sent to the generation service.
type FormInput struct {
	Genre       string `json:"genre"`
	Theme       string `json:"theme"`
	VisualStyle string `json:"visualStyle"`
}

// Missing lists the required fields that are still empty, in form order.
func (f FormInput) Missing() []string {
	var missing []string
	if f.Genre == "" {
		missing = append(missing, FieldGenre)
	}
	if f.Theme == "" {
		missing = append(missing, FieldTheme)
	}
	if f.VisualStyle == "" {
		missing = append(missing, FieldVisualStyle)
	}
	return missing
}

// Catalog is the option list payload served to clients.
type Catalog struct {
	Genres       []string `json:"genres"`
	VisualStyles []string `json:"visual_styles"`
}

// DefaultCatalog returns the fixed option lists.
func DefaultCatalog() Catalog {
	return Catalog{Genres: Genres(), VisualStyles: VisualStyles()}
}
