package xmodule

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
)

// ContainerModule is the runtime for structural categories (course, chapter):
// it renders a navigation list of its display children. Containers keep no
// per-student state; the student's position inside a sequence is sequence
// state, not container state.
type ContainerModule struct {
	Base
}

// NewContainerModule is the Factory for course and chapter modules.
func NewContainerModule(sys *System, desc *content.Descriptor, _, _ json.RawMessage) (Module, error) {
	return &ContainerModule{Base: NewBase(sys, desc)}, nil
}

// RenderHTML renders the container's navigation. When a template renderer is
// wired in, the "container.html" template is used; otherwise a plain list is
// produced.
func (m *ContainerModule) RenderHTML(ctx context.Context) (string, error) {
	items := m.desc.DisplayItems()

	children := make([]map[string]interface{}, 0, len(items))
	for _, child := range items {
		children = append(children, map[string]interface{}{
			"name":     child.Name(),
			"category": child.Category,
			"location": child.Location.String(),
			"url":      child.Location.URLSegment(),
		})
	}

	rendered, err := m.sys.RenderTemplate("container.html", map[string]interface{}{
		"display_name": m.desc.Name(),
		"category":     m.desc.Category,
		"children":     children,
	})
	if err != nil {
		return "", err
	}
	if rendered != "" {
		return m.sys.ReplaceStaticURLs(rendered), nil
	}

	// No template configured; emit a minimal list.
	var sb strings.Builder
	fmt.Fprintf(&sb, "<nav class=\"%s\"><h2>%s</h2><ul>", m.desc.Category, html.EscapeString(m.desc.Name()))
	for _, child := range items {
		fmt.Fprintf(&sb, "<li><a href=\"%s\">%s</a></li>",
			html.EscapeString(child.Location.URLSegment()), html.EscapeString(child.Name()))
	}
	sb.WriteString("</ul></nav>")
	return m.sys.ReplaceStaticURLs(sb.String()), nil
}
