// Package prompt builds the instruction sent to the inference backend.
package prompt

import (
	_ "embed"
	"strings"
	"text/template"
)

// PlanTemplate is the study-plan instruction template.
// Loaded from prompts/plan.tmpl at compile time.
//
//go:embed prompts/plan.tmpl
var PlanTemplate string

var planTmpl = template.Must(template.New("plan").Parse(PlanTemplate))

// Build returns the instruction asking the backend for a JSON study plan
// on topic spanning days days. topic and days are embedded verbatim;
// callers validate them first.
func Build(topic string, days int) string {
	var b strings.Builder
	// strings.Builder never returns a write error.
	_ = planTmpl.Execute(&b, struct {
		Topic string
		Days  int
	}{topic, days})
	return b.String()
}
