// Package render formats plan envelopes for the terminal.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/timvw/plan-relay/internal/model"
)

// maxRawLines bounds how much raw model output a failure shows.
const maxRawLines = 20

// Renderer formats envelopes with a fixed theme.
type Renderer struct {
	st styles
}

// New returns a Renderer for theme.
func New(theme Theme) *Renderer {
	return &Renderer{st: newStyles(theme)}
}

// Envelope renders a successful envelope as a plan and a failed one as an
// error report.
func (r *Renderer) Envelope(env model.Envelope) string {
	if !env.OK {
		return r.Failure(env)
	}
	plan, err := model.PlanFromValue(env.Data)
	if err != nil || len(plan.Days) == 0 {
		// Valid JSON that is not plan-shaped is shown as-is.
		return JSON(env.Data)
	}
	return r.Plan(plan)
}

// Plan renders a plan as a titled list of days and tasks.
func (r *Renderer) Plan(p *model.Plan) string {
	var b strings.Builder

	title := p.Topic
	if title == "" {
		title = "Study plan"
	}
	b.WriteString(r.st.title.Render(title))
	b.WriteString(r.st.dim.Render(fmt.Sprintf("  (%d days)", len(p.Days))))
	b.WriteString("\n")
	b.WriteString(r.st.divider.Render(strings.Repeat("─", 40)))
	b.WriteString("\n")

	for _, d := range p.Days {
		heading := fmt.Sprintf("Day %d", d.Day)
		if d.Title != "" {
			heading += ": " + d.Title
		}
		b.WriteString(r.st.day.Render(heading))
		b.WriteString("\n")
		for _, task := range d.Tasks {
			b.WriteString("  ")
			b.WriteString(r.st.bullet.Render("•"))
			b.WriteString(" ")
			b.WriteString(r.st.text.Render(task))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Failure renders a failed envelope with its debug context and a
// truncated view of the raw output.
func (r *Renderer) Failure(env model.Envelope) string {
	var b strings.Builder

	b.WriteString(r.st.err.Render("✗ " + env.Error))
	b.WriteString("\n")
	if env.Debug.Reason != "" {
		b.WriteString(r.st.reason.Render("reason: " + env.Debug.Reason))
		b.WriteString("\n")
	}

	var ctx []string
	if env.Debug.Provider != "" {
		ctx = append(ctx, "provider="+env.Debug.Provider)
	}
	if env.Debug.Model != "" {
		ctx = append(ctx, "model="+env.Debug.Model)
	}
	if env.Debug.URL != "" {
		ctx = append(ctx, "url="+env.Debug.URL)
	}
	if len(env.Debug.BackendKeys) > 0 {
		ctx = append(ctx, "backend_keys="+strings.Join(env.Debug.BackendKeys, ","))
	}
	if len(ctx) > 0 {
		b.WriteString(r.st.dim.Render(strings.Join(ctx, "  ")))
		b.WriteString("\n")
	}

	if env.Raw != "" {
		b.WriteString(r.st.rawBox.Render(truncateLines(env.Raw, maxRawLines)))
		b.WriteString("\n")
	}
	return b.String()
}

// JSON returns v as indented JSON.
func JSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func truncateLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:n], "\n") + fmt.Sprintf("\n… %d more lines", len(lines)-n)
}
