// Package report renders digest reports and ad-hoc messages from embedded HTML templates.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"

	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

// Template names
const (
	SummaryTemplate = "summary_report.html"
	MessageTemplate = "email_template.html"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"paragraphs": func(s string) []string {
		var out []string
		for _, p := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	},
}

// Renderer executes named templates. It holds no mutable state once built.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses the embedded templates
func NewRenderer() (*Renderer, error) {
	return NewRendererFS(templateFS, "templates")
}

// NewRendererFS parses every *.html file under dir in fsys
func NewRendererFS(fsys fs.FS, dir string) (*Renderer, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	r := &Renderer{templates: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		base := path.Base(name)
		t, err := template.New(base).Funcs(funcs).ParseFS(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", apperrors.ErrTemplate, base, err)
		}
		r.templates[base] = t
	}
	return r, nil
}

// Render produces the digest report document
func (r *Renderer) Render(data models.ReportData) (string, error) {
	return r.RenderTemplate(SummaryTemplate, data)
}

// RenderTemplate executes the named template. Output is only returned when
// execution completes.
func (r *Renderer) RenderTemplate(name string, data interface{}) (string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: template %q not found", apperrors.ErrTemplate, name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: executing %s: %v", apperrors.ErrTemplate, name, err)
	}
	return buf.String(), nil
}

// Has reports whether a template with the given name is loaded
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}
