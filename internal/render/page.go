package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

// IndexTemplate is the name of the form page template.
const IndexTemplate = "index.html"

// PageData wraps a View with the fixed page labels.
type PageData struct {
	Title            string
	GenrePlaceholder string
	StylePlaceholder string
	ScriptHeading    string
	View             View
}

// NewPageData builds template data for v.
func NewPageData(v View) PageData {
	return PageData{
		Title:            PageTitle,
		GenrePlaceholder: GenrePlaceholder,
		StylePlaceholder: StylePlaceholder,
		ScriptHeading:    ScriptHeadingLabel,
		View:             v,
	}
}

// Page holds the parsed page templates. html/template escapes every value,
// so scene text is always rendered as plain text.
type Page struct {
	tmpl *template.Template
}

// NewPage parses the embedded templates.
func NewPage() (*Page, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Page{tmpl: tmpl}, nil
}

// Template exposes the template set, e.g. for gin's SetHTMLTemplate.
func (p *Page) Template() *template.Template {
	return p.tmpl
}

// Render writes the form page for v.
func (p *Page) Render(w io.Writer, v View) error {
	return p.tmpl.ExecuteTemplate(w, IndexTemplate, NewPageData(v))
}
