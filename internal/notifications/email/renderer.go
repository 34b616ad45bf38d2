// Package email renders and dispatches the pipeline's alert emails. The
// renderer applies a severity-specific visual treatment to an embedded HTML
// template; the channel performs the single-attempt provider send.
package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"tripgenie/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// RenderedEmail holds the pre-rendered email content ready for transmission.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
}

// severityStyle controls the visual treatment of the alert email.
type severityStyle struct {
	Color        string
	Banner       string
	Label        string
	SubjectLabel string
}

// severityStyles maps alert severities to their treatment. Severities
// without an entry (info, future producers) fall back to the warning style;
// the subject then uses a neutral label.
var severityStyles = map[types.Severity]severityStyle{
	types.SeverityCritical: {
		Color:        "#ef4444",
		Banner:       "#7f1d1d",
		Label:        "Critical Alert",
		SubjectLabel: "Critical Travel Alert",
	},
	types.SeverityWarning: {
		Color:        "#eab308",
		Banner:       "#713f12",
		Label:        "Weather Warning",
		SubjectLabel: "Weather Warning",
	},
}

const fallbackSubjectLabel = "Travel Alert"

// templateData is the struct passed into the alert template for rendering.
type templateData struct {
	UserName     string
	Destination  string
	Message      string
	Label        string
	Color        string
	Banner       string
	HasReplan    bool
	DashboardURL string
	Year         int
}

// Renderer performs alert email rendering using Go's html/template with an
// embedded template file.
type Renderer struct {
	tmpl         *template.Template
	dashboardURL string
}

// NewRenderer parses the embedded alert template and returns a Renderer.
// dashboardURL is the public frontend URL used for the call-to-action link.
func NewRenderer(dashboardURL string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/alert.html")
	if err != nil {
		return nil, fmt.Errorf("parsing alert template: %w", err)
	}
	return &Renderer{
		tmpl:         tmpl,
		dashboardURL: dashboardURL,
	}, nil
}

// Render produces the subject and HTML body for a notification. An empty
// user name renders as "Traveller".
func (r *Renderer) Render(userName string, n *types.Notification) (*RenderedEmail, error) {
	style, ok := severityStyles[n.Severity]
	subjectLabel := style.SubjectLabel
	if !ok {
		style = severityStyles[types.SeverityWarning]
		subjectLabel = fallbackSubjectLabel
	}

	if userName == "" {
		userName = "Traveller"
	}

	data := templateData{
		UserName:     userName,
		Destination:  n.Destination,
		Message:      n.Message,
		Label:        style.Label,
		Color:        style.Color,
		Banner:       style.Banner,
		HasReplan:    n.ReplannedItinerary != "",
		DashboardURL: r.dashboardURL,
		Year:         time.Now().Year(),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering alert email: %w", err)
	}

	return &RenderedEmail{
		Subject:  fmt.Sprintf("%s: %s", subjectLabel, n.Destination),
		BodyHTML: buf.String(),
	}, nil
}
