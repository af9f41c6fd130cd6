package agent

import (
	"bytes"
	"strings"
	"text/template"
	"time"
)

// systemPromptSource substitutes {name, purpose, notes, current_date} into
// a fixed preamble (spec.md §4.7), grounded on original_source/prompts/
// AgentPrompt.py's system_template (Tyler's original Python prompt), with
// purpose/notes rendered as the teacher's gateway.buildSystemPrompt renders
// its optional identity/notes sections — only when non-empty.
const systemPromptSource = `Your name is {{.Name}}. You are an LLM agent that can converse with users, answer questions, and when necessary, create plans to perform tasks.
Current date: {{.CurrentDate}}
{{- if .Purpose}}

Your purpose: {{.Purpose}}
{{- end}}
{{- if .Notes}}

{{.Notes}}
{{- end}}`

var systemPromptTmpl = template.Must(template.New("system_prompt").Parse(systemPromptSource))

type systemPromptData struct {
	Name        string
	Purpose     string
	Notes       string
	CurrentDate string
}

// renderSystemPrompt fills the template from cfg, using now for
// CurrentDate; tests pass a fixed time for deterministic output.
func renderSystemPrompt(cfg Config, now time.Time) string {
	name := cfg.Name
	if name == "" {
		name = "Tyler"
	}
	data := systemPromptData{
		Name:        name,
		Purpose:     strings.TrimSpace(cfg.Purpose),
		Notes:       strings.TrimSpace(cfg.Notes),
		CurrentDate: now.Format("2006-01-02 Monday"),
	}
	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, data); err != nil {
		// The template is a package-level constant parsed once at init; a
		// render failure here would mean the template itself is broken.
		return "Your name is " + name + "."
	}
	return buf.String()
}
