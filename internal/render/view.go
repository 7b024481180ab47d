// Package render projects form session state onto the HTML page.
package render

import (
	"github.com/Corphon/SceneScriptForm/internal/models"
)

// Labels shown on the page.
const (
	PageTitle          = "Create Your Story"
	SubmitLabelIdle    = "Generate Story"
	SubmitLabelBusy    = "Generating..."
	SuccessMessage     = "Script generated successfully!"
	GenrePlaceholder   = "Select a genre"
	StylePlaceholder   = "Select a visual style"
	ScriptHeadingLabel = "Generated Script: "
)

// Option is one entry of a selector.
type Option struct {
	Value    string
	Selected bool
}

// View is everything the page template needs. It carries no behaviour.
type View struct {
	SessionID string
	Phase     models.Phase

	Genres       []Option
	Theme        string
	VisualStyles []Option

	SubmitLabel    string
	SubmitDisabled bool

	// Notice is a form-level message from the request handler, e.g. a
	// missing field that slipped past the browser.
	Notice        string
	ErrorBanner   string
	SuccessBanner string

	Script *models.GeneratedScript
}

// BuildView is a pure function of the snapshot.
//
// Banners follow the phase and are mutually exclusive. The script block
// follows the last-known script, independent of the phase.
func BuildView(snap models.Snapshot) View {
	v := View{
		SessionID:    snap.SessionID,
		Phase:        snap.Phase,
		Genres:       options(models.Genres(), snap.Form.Genre),
		Theme:        snap.Form.Theme,
		VisualStyles: options(models.VisualStyles(), snap.Form.VisualStyle),
		SubmitLabel:  SubmitLabelIdle,
		Script:       snap.Script,
	}

	switch snap.Phase {
	case models.PhasePending:
		v.SubmitLabel = SubmitLabelBusy
		v.SubmitDisabled = true
	case models.PhaseFailed:
		v.ErrorBanner = snap.Error
	case models.PhaseSucceeded:
		v.SuccessBanner = SuccessMessage
	}
	return v
}

// WithNotice returns a copy of v carrying a form-level notice.
func (v View) WithNotice(notice string) View {
	v.Notice = notice
	return v
}

func options(values []string, selected string) []Option {
	out := make([]Option, len(values))
	for i, value := range values {
		out[i] = Option{Value: value, Selected: value == selected}
	}
	return out
}
