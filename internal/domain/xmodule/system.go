// Package xmodule contains the runtime module domain: the per-request System
// wrapper that exposes platform services to modules, the Module contract, the
// category registry, and the built-in module implementations.
//
// A System is an abstraction such that modules can function independent of the
// courseware host - the same module code runs under the LMS, a preview
// sandbox, or tests. System values are closures over one request: URLs, the
// requesting user's seed, tracking, rendering.
package xmodule

import (
	"context"
	"sync"
)

// TrackFunc records a tracking event emitted by a module.
type TrackFunc func(eventType, page string, data map[string]interface{})

// GetModuleFunc resolves a nested module by location within the same request.
type GetModuleFunc func(ctx context.Context, locationKey string) (Module, error)

// RenderFunc renders a named template with the given context.
type RenderFunc func(name string, data map[string]interface{}) (string, error)

// ReplaceURLsFunc rewrites static asset URLs in rendered markup.
type ReplaceURLsFunc func(html string) string

// QueueSubmitFunc submits a payload to the external grading queue.
type QueueSubmitFunc func(ctx context.Context, sub QueueSubmission) error

// QueueSubmission is a grading job handed to the external queue. The grader
// posts its result back to CallbackURL carrying QueueKey.
type QueueSubmission struct {
	// QueueName selects the grader queue.
	QueueName string

	// QueueKey correlates the callback with the pending submission.
	QueueKey string

	// CallbackURL is where the grader posts the result.
	CallbackURL string

	// Body is the opaque grading payload.
	Body map[string]string
}

// System provides platform services to one module instance for one request.
type System struct {
	// AjaxURL is the URL where client callbacks to this module go.
	AjaxURL string

	// QueueCallbackURL is where the external grading queue posts results
	// for this module and student.
	QueueCallbackURL string

	// Track records tracking events. Never nil after NewSystem.
	Track TrackFunc

	// GetModule loads a nested module within the same request, sharing the
	// request state cache. Never nil after NewSystem.
	GetModule GetModuleFunc

	// RenderTemplate renders a named template. Never nil after NewSystem.
	RenderTemplate RenderFunc

	// ReplaceStaticURLs rewrites /static/ URLs with the course prefix so
	// modules can fix up markup they produce in callback results too.
	// Never nil after NewSystem.
	ReplaceStaticURLs ReplaceURLsFunc

	// SubmitToQueue hands grading jobs to the external queue. Nil when no
	// queue client is configured; modules must treat that as "grading
	// unavailable".
	SubmitToQueue QueueSubmitFunc

	// Seed is the per-student randomization seed (0 for anonymous).
	Seed int64

	// Debug mirrors the application debug flag.
	Debug bool

	// Position is the user-specified position hint from the URL, 0 if none.
	Position int

	mu    sync.RWMutex
	extra map[string]interface{}
}

// Options configures a new System. Nil function fields get no-op defaults.
type Options struct {
	AjaxURL           string
	QueueCallbackURL  string
	Track             TrackFunc
	GetModule         GetModuleFunc
	RenderTemplate    RenderFunc
	ReplaceStaticURLs ReplaceURLsFunc
	SubmitToQueue     QueueSubmitFunc
	Seed              int64
	Debug             bool
	Position          int
}

// NewSystem builds a System, substituting safe defaults for nil services.
func NewSystem(opts Options) *System {
	sys := &System{
		AjaxURL:           opts.AjaxURL,
		QueueCallbackURL:  opts.QueueCallbackURL,
		Track:             opts.Track,
		GetModule:         opts.GetModule,
		RenderTemplate:    opts.RenderTemplate,
		ReplaceStaticURLs: opts.ReplaceStaticURLs,
		SubmitToQueue:     opts.SubmitToQueue,
		Seed:              opts.Seed,
		Debug:             opts.Debug,
		Position:          opts.Position,
		extra:             make(map[string]interface{}),
	}

	if sys.Track == nil {
		sys.Track = func(string, string, map[string]interface{}) {}
	}
	if sys.GetModule == nil {
		sys.GetModule = func(context.Context, string) (Module, error) {
			return nil, ErrNoNestedModules
		}
	}
	if sys.RenderTemplate == nil {
		sys.RenderTemplate = func(string, map[string]interface{}) (string, error) {
			return "", nil
		}
	}
	if sys.ReplaceStaticURLs == nil {
		sys.ReplaceStaticURLs = func(html string) string { return html }
	}

	return sys
}

// Get provides uniform access to environment-specific attributes.
func (s *System) Get(attr string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.extra[attr]
	return v, ok
}

// Set provides uniform access to environment-specific attributes.
func (s *System) Set(attr string, val interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra[attr] = val
}
