// Package render implements HTML template rendering for runtime modules.
// Templates are optional: modules carry inline fallback markup, so a missing
// template directory or a missing template is not an error.
package render

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/campus-hub/courseware-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATE RENDERER
// ══════════════════════════════════════════════════════════════════════════════

// TemplateRenderer renders named templates loaded from a directory. It
// implements runtime.TemplateRenderer: a name with no matching template
// returns ("", nil) so the module falls back to its inline markup.
type TemplateRenderer struct {
	mu        sync.RWMutex
	templates *template.Template
	log       *logger.Logger
}

// NewTemplateRenderer loads all *.html templates from dir. An empty dir or a
// directory with no templates yields a renderer that always falls through.
func NewTemplateRenderer(dir string, log *logger.Logger) (*TemplateRenderer, error) {
	if log == nil {
		log = logger.Default()
	}

	r := &TemplateRenderer{log: log}
	if dir == "" {
		return r, nil
	}

	if err := r.load(dir); err != nil {
		return nil, err
	}
	return r, nil
}

// load parses the template directory, replacing the current set.
func (r *TemplateRenderer) load(dir string) error {
	pattern := filepath.Join(dir, "*.html")

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("render: glob templates: %w", err)
	}
	if len(matches) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("render: template directory: %w", err)
		}
		r.log.Warn("no templates found", logger.String("dir", dir))
		return nil
	}

	tmpl, err := template.ParseFiles(matches...)
	if err != nil {
		return fmt.Errorf("render: parse templates: %w", err)
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	r.log.Info("templates loaded",
		logger.String("dir", dir),
		logger.Int("count", len(matches)),
	)
	return nil
}

// Render implements runtime.TemplateRenderer.
func (r *TemplateRenderer) Render(name string, data map[string]interface{}) (string, error) {
	r.mu.RLock()
	tmpl := r.templates
	r.mu.RUnlock()

	if tmpl == nil {
		return "", nil
	}

	target := tmpl.Lookup(name)
	if target == nil {
		return "", nil
	}

	var sb strings.Builder
	if err := target.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render: execute %s: %w", name, err)
	}

	return sb.String(), nil
}
