package xmodule

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

// ErrNoNestedModules is returned by the default System.GetModule when no
// loader is wired in.
var ErrNoNestedModules = errors.New("xmodule: nested module loading not available")

// Score is the points a student earned on a module.
type Score struct {
	// Earned is the points achieved.
	Earned float64

	// Possible is the maximum achievable points.
	Possible float64
}

// Module is one runtime courseware module bound to a student's state for the
// duration of a request. Implementations are constructed by a Factory from a
// content descriptor plus the student's persisted state blobs.
type Module interface {
	// Location identifies the module.
	Location() content.Location

	// Category returns the module category.
	Category() string

	// Descriptor returns the content descriptor the module was built from.
	Descriptor() *content.Descriptor

	// HandleRequest processes a client callback command with a form payload
	// and returns an opaque response body for the client.
	// Returns shared.ErrUnknownCommand for commands the module does not
	// handle.
	HandleRequest(ctx context.Context, command string, payload url.Values) ([]byte, error)

	// RenderHTML renders the module for display.
	RenderHTML(ctx context.Context) (string, error)

	// InstanceState snapshots the module's private state for persistence.
	InstanceState() json.RawMessage

	// SharedState snapshots the state shared under the descriptor's
	// shared-state key; nil when the module does not share state.
	SharedState() json.RawMessage

	// Score returns the current score, false when the module has none yet.
	Score() (Score, bool)

	// MaxScore returns the maximum achievable score, false when the module
	// is not scorable.
	MaxScore() (float64, bool)
}

// Factory constructs a runtime module from a descriptor and state blobs.
// Either state may be nil (no persisted record yet).
type Factory func(sys *System, desc *content.Descriptor, instanceState, sharedState json.RawMessage) (Module, error)

// Registry maps module categories to factories. Unknown categories fall back
// to the static HTML module so courses keep rendering when they contain
// categories this deployment does not know.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	fallback  Factory
}

// NewRegistry creates an empty registry with the HTML module as fallback.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		fallback:  NewHTMLModule,
	}
}

// DefaultRegistry returns a registry with all built-in categories registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(content.CategoryCourse, NewContainerModule)
	r.Register(content.CategoryChapter, NewContainerModule)
	r.Register(content.CategorySequence, NewSequenceModule)
	r.Register(content.CategoryHTML, NewHTMLModule)
	r.Register(content.CategoryProblem, NewProblemModule)
	r.Register(content.CategoryVideo, NewVideoModule)
	return r
}

// Register binds a factory to a category, replacing any previous binding.
func (r *Registry) Register(category string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[category] = factory
}

// SetFallback replaces the fallback factory. A nil fallback makes unknown
// categories an error.
func (r *Registry) SetFallback(factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = factory
}

// Categories lists the registered categories.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for c := range r.factories {
		out = append(out, c)
	}
	return out
}

// New constructs a module for the descriptor's category.
func (r *Registry) New(sys *System, desc *content.Descriptor, instanceState, sharedState json.RawMessage) (Module, error) {
	r.mu.RLock()
	factory, ok := r.factories[desc.Category]
	fallback := r.fallback
	r.mu.RUnlock()

	if !ok {
		if fallback == nil {
			return nil, shared.ErrUnknownCategory
		}
		factory = fallback
	}

	return factory(sys, desc, instanceState, sharedState)
}

// Base provides the shared plumbing of built-in modules: descriptor access
// and no-op defaults for state, score, and request handling.
type Base struct {
	sys  *System
	desc *content.Descriptor
}

// NewBase wraps a descriptor for embedding in concrete modules.
func NewBase(sys *System, desc *content.Descriptor) Base {
	return Base{sys: sys, desc: desc}
}

// System returns the runtime system the module was constructed with.
func (b *Base) System() *System {
	return b.sys
}

// Location implements Module.
func (b *Base) Location() content.Location {
	return b.desc.Location
}

// Category implements Module.
func (b *Base) Category() string {
	return b.desc.Category
}

// Descriptor implements Module.
func (b *Base) Descriptor() *content.Descriptor {
	return b.desc
}

// HandleRequest implements Module; the base handles no commands.
func (b *Base) HandleRequest(ctx context.Context, command string, payload url.Values) ([]byte, error) {
	return nil, shared.ErrUnknownCommand
}

// InstanceState implements Module; the base is stateless.
func (b *Base) InstanceState() json.RawMessage {
	return nil
}

// SharedState implements Module; the base shares nothing.
func (b *Base) SharedState() json.RawMessage {
	return nil
}

// Score implements Module; the base is not scorable.
func (b *Base) Score() (Score, bool) {
	return Score{}, false
}

// MaxScore implements Module; the base is not scorable.
func (b *Base) MaxScore() (float64, bool) {
	return 0, false
}
