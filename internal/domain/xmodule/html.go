package xmodule

import (
	"context"
	"encoding/json"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
)

// HTMLModule renders static authored markup. It keeps no state and handles no
// commands; it also serves as the registry fallback for unknown categories.
type HTMLModule struct {
	Base
}

// NewHTMLModule is the Factory for html modules.
func NewHTMLModule(sys *System, desc *content.Descriptor, _, _ json.RawMessage) (Module, error) {
	return &HTMLModule{Base: NewBase(sys, desc)}, nil
}

// RenderHTML returns the authored markup with static URLs rewritten.
func (m *HTMLModule) RenderHTML(ctx context.Context) (string, error) {
	return m.sys.ReplaceStaticURLs(m.desc.Data), nil
}
