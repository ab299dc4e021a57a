package ai

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

const (
	rewriteTemplate = "rewrite.tmpl"
	analyzeTemplate = "analyze.tmpl"
)

// render fills the named instruction template with the user's prompt text.
func render(name, prompt string) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, struct{ Prompt string }{prompt}); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
