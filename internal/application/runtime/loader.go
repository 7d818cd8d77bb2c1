package runtime

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
	"github.com/campus-hub/courseware-hub/internal/domain/studentstate"
	"github.com/campus-hub/courseware-hub/internal/domain/xmodule"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE CONTRACTS
// The loader talks to rendering, tracking, and the grading queue through these
// interfaces; implementations live in infrastructure.
// ══════════════════════════════════════════════════════════════════════════════

// TemplateRenderer renders named templates for modules. An empty result with a
// nil error means "no such template"; modules fall back to inline markup.
type TemplateRenderer interface {
	Render(name string, data map[string]interface{}) (string, error)
}

// Tracker records tracking events on behalf of a (possibly anonymous) user.
type Tracker interface {
	Track(ctx context.Context, user *student.Student, eventType, page string, data map[string]interface{})
}

// QueueClient hands grading jobs to the external grading queue.
type QueueClient interface {
	Submit(ctx context.Context, sub xmodule.QueueSubmission) error
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADER
// Builds runtime modules: descriptor + student state + a request-scoped System.
// ══════════════════════════════════════════════════════════════════════════════

// Options configures a Loader.
type Options struct {
	// RootURL is the externally visible base URL, without trailing slash.
	RootURL string

	// CacheDepth is the prefetch depth for state caches built by LoadCourse.
	CacheDepth int

	// Debug mirrors the application debug flag into module systems.
	Debug bool

	// StaffDebug appends grade histograms and edit links to rendered modules
	// for staff users.
	StaffDebug bool

	// Renderer renders module templates. Optional.
	Renderer TemplateRenderer

	// Tracker records module tracking events. Optional.
	Tracker Tracker

	// Queue submits grading jobs. Optional; without it external grading is
	// unavailable.
	Queue QueueClient
}

// Loader constructs runtime modules bound to a student's state.
type Loader struct {
	store    content.Store
	registry *xmodule.Registry
	states   studentstate.Repository
	opts     Options
}

// NewLoader creates a Loader.
func NewLoader(
	store content.Store,
	registry *xmodule.Registry,
	states studentstate.Repository,
	opts Options,
) *Loader {
	if opts.CacheDepth <= 0 {
		opts.CacheDepth = DefaultCacheDepth
	}
	opts.RootURL = strings.TrimRight(opts.RootURL, "/")
	return &Loader{
		store:    store,
		registry: registry,
		states:   states,
		opts:     opts,
	}
}

// Store returns the content store the loader reads from.
func (l *Loader) Store() content.Store {
	return l.store
}

// States returns the state repository the loader persists through.
func (l *Loader) States() studentstate.Repository {
	return l.states
}

// LoadedModule is a module instance plus the persistence records backing it
// for the current request. Instance and Shared are nil for anonymous users
// (and Shared also when the module does not share state).
type LoadedModule struct {
	Module     xmodule.Module
	Descriptor *content.Descriptor
	System     *xmodule.System

	// Instance is the record under the module's usage key.
	Instance *studentstate.StudentModule

	// Shared is the record under the descriptor's shared-state key.
	Shared *studentstate.StudentModule

	loader     *Loader
	staffDebug bool
}

// LoadCourse fetches a course, builds a prefetched state cache for it, and
// returns the loaded course module with the cache for loading further modules
// in the same request.
func (l *Loader) LoadCourse(ctx context.Context, user *student.Student, courseID string) (*LoadedModule, *StateCache, error) {
	course, err := l.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}

	cache, err := PrefetchStateCache(ctx, l.states, user, course, l.opts.CacheDepth)
	if err != nil {
		return nil, nil, err
	}

	loaded, err := l.GetModule(ctx, user, course.Location, cache, 0)
	if err != nil {
		return nil, nil, err
	}
	return loaded, cache, nil
}

// GetModule builds the runtime module at a location for a user. State records
// are taken from the cache when present, fetched when not, and lazily created
// for authenticated users on first access. position is a navigation hint for
// sequences (0 for none).
func (l *Loader) GetModule(
	ctx context.Context,
	user *student.Student,
	loc content.Location,
	cache *StateCache,
	position int,
) (*LoadedModule, error) {
	desc, err := l.store.GetItem(ctx, loc)
	if err != nil {
		return nil, err
	}

	course, err := l.store.GetCourse(ctx, loc.Course)
	if err != nil {
		return nil, err
	}
	dataDir := course.Meta(content.MetaDataDir, "")

	sys := l.buildSystem(user, desc, cache, dataDir, position)

	instRec, err := l.resolveRecord(ctx, user, cache, desc.Location.UsageKey())
	if err != nil {
		return nil, err
	}

	var sharedRec *studentstate.StudentModule
	if desc.SharedStateKey != "" {
		sharedRec, err = l.resolveRecord(ctx, user, cache, desc.SharedStateKey)
		if err != nil {
			return nil, err
		}
	}

	mod, err := l.registry.New(sys, desc, recordState(instRec), recordState(sharedRec))
	if err != nil {
		return nil, err
	}

	// First authenticated access creates the backing records, seeded with the
	// module's initial state.
	if user.IsAuthenticated() {
		if instRec == nil {
			instRec, err = l.createRecord(ctx, user, cache, desc.Category,
				desc.Location.UsageKey(), mod.InstanceState(), maxGradeOf(mod))
			if err != nil {
				return nil, err
			}
		}
		if desc.SharedStateKey != "" && sharedRec == nil {
			sharedRec, err = l.createRecord(ctx, user, cache, desc.Category,
				desc.SharedStateKey, mod.SharedState(), nil)
			if err != nil {
				return nil, err
			}
		}
	}

	return &LoadedModule{
		Module:     mod,
		Descriptor: desc,
		System:     sys,
		Instance:   instRec,
		Shared:     sharedRec,
		loader:     l,
		staffDebug: l.opts.StaffDebug && user != nil && user.IsStaff,
	}, nil
}

// buildSystem assembles the per-request System for one module.
func (l *Loader) buildSystem(
	user *student.Student,
	desc *content.Descriptor,
	cache *StateCache,
	dataDir string,
	position int,
) *xmodule.System {
	loc := desc.Location

	opts := xmodule.Options{
		AjaxURL: fmt.Sprintf("%s/courses/%s/modules/%s/handler/",
			l.opts.RootURL, loc.Course, loc.URLSegment()),
		ReplaceStaticURLs: func(markup string) string {
			return content.ReplaceStaticURLs(markup, dataDir)
		},
		Seed:     student.SeedFor(user),
		Debug:    l.opts.Debug,
		Position: position,
	}

	if user.IsAuthenticated() {
		opts.QueueCallbackURL = fmt.Sprintf("%s/courses/%s/queue-callback/%s/%s/%s",
			l.opts.RootURL, loc.Course, user.ID, loc.URLSegment(), xmodule.CommandScoreUpdate)
	}

	if l.opts.Renderer != nil {
		opts.RenderTemplate = l.opts.Renderer.Render
	}
	if l.opts.Tracker != nil {
		opts.Track = func(eventType, page string, data map[string]interface{}) {
			l.opts.Tracker.Track(context.Background(), user, eventType, page, data)
		}
	}
	if l.opts.Queue != nil {
		opts.SubmitToQueue = l.opts.Queue.Submit
	}

	// Nested loads share this request's cache, so a sequence rendering its
	// current child reuses the prefetched records.
	opts.GetModule = func(ctx context.Context, locationKey string) (xmodule.Module, error) {
		childLoc, err := content.ParseLocation(locationKey)
		if err != nil {
			return nil, err
		}
		loaded, err := l.GetModule(ctx, user, childLoc, cache, 0)
		if err != nil {
			return nil, err
		}
		return loaded.Module, nil
	}

	return xmodule.NewSystem(opts)
}

// resolveRecord finds the student's record for a key: cache first, then the
// repository. Returns nil (no error) when the user is anonymous or no record
// exists yet.
func (l *Loader) resolveRecord(
	ctx context.Context,
	user *student.Student,
	cache *StateCache,
	key string,
) (*studentstate.StudentModule, error) {
	if cache != nil {
		if rec, ok := cache.Lookup(key); ok {
			return rec, nil
		}
	}
	if !user.IsAuthenticated() {
		return nil, nil
	}

	rec, err := l.states.Get(ctx, user.ID, key)
	if errors.Is(err, shared.ErrStateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if cache != nil {
		cache.Append(rec)
	}
	return rec, nil
}

// createRecord persists a fresh record and appends it to the cache. A
// concurrent create by another request is tolerated by re-reading.
func (l *Loader) createRecord(
	ctx context.Context,
	user *student.Student,
	cache *StateCache,
	moduleType, key string,
	state []byte,
	maxGrade *float64,
) (*studentstate.StudentModule, error) {
	rec := studentstate.New(user.ID, moduleType, key, state, maxGrade)

	err := l.states.Create(ctx, rec)
	if errors.Is(err, shared.ErrStateAlreadyExists) {
		rec, err = l.states.Get(ctx, user.ID, key)
	}
	if err != nil {
		return nil, err
	}

	if cache != nil {
		cache.Append(rec)
	}
	return rec, nil
}

// recordState returns a record's state blob, nil for a nil record.
func recordState(rec *studentstate.StudentModule) []byte {
	if rec == nil {
		return nil
	}
	return rec.State
}

// maxGradeOf returns the module's max score as a grade pointer, nil when the
// module is not scorable.
func maxGradeOf(mod xmodule.Module) *float64 {
	if max, ok := mod.MaxScore(); ok {
		return &max
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADED MODULE
// ══════════════════════════════════════════════════════════════════════════════

// RenderHTML renders the module, appending the staff debug panel when enabled.
func (lm *LoadedModule) RenderHTML(ctx context.Context) (string, error) {
	rendered, err := lm.Module.RenderHTML(ctx)
	if err != nil {
		return "", err
	}
	if !lm.staffDebug {
		return rendered, nil
	}

	panel, err := lm.staffDebugPanel(ctx)
	if err != nil {
		// Debug output must never break rendering for staff.
		return rendered, nil
	}
	return rendered + panel, nil
}

// ApplyModuleState copies the module's current state and score back into the
// persistence records. Callers compare against an earlier snapshot to decide
// whether a save is needed.
func (lm *LoadedModule) ApplyModuleState() {
	if lm.Instance != nil {
		lm.Instance.State = lm.Module.InstanceState()
		if score, ok := lm.Module.Score(); ok {
			lm.Instance.SetGrade(shared.NewGrade(score.Earned))
			lm.Instance.MaxGrade = &score.Possible
		}
	}
	if lm.Shared != nil {
		if sharedState := lm.Module.SharedState(); sharedState != nil {
			lm.Shared.State = sharedState
		}
	}
}

// staffDebugPanel renders the grade histogram and edit link shown to staff
// under each module.
func (lm *LoadedModule) staffDebugPanel(ctx context.Context) (string, error) {
	usageKey := lm.Descriptor.Location.UsageKey()

	buckets, err := lm.loader.states.GradeDistribution(ctx, usageKey)
	if err != nil {
		return "", err
	}
	// A single all-NULL bucket means nobody has been graded yet.
	if len(buckets) == 1 && buckets[0].Grade == nil {
		buckets = nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<div class=\"staff-debug\" id=\"debug-%s\">", lm.Descriptor.Location.HTMLID())
	fmt.Fprintf(&sb, "<h4>%s</h4>", html.EscapeString(usageKey))

	if editURL := lm.Descriptor.Meta(content.MetaEditURL, ""); editURL != "" {
		fmt.Fprintf(&sb, "<a href=\"%s\">Edit</a>", html.EscapeString(editURL))
	}

	if len(buckets) > 0 {
		sb.WriteString("<table class=\"grade-histogram\"><tr><th>Grade</th><th>Students</th></tr>")
		for _, b := range buckets {
			grade := "-"
			if b.Grade != nil {
				grade = fmt.Sprintf("%g", *b.Grade)
			}
			fmt.Fprintf(&sb, "<tr><td>%s</td><td>%d</td></tr>", grade, b.Count)
		}
		sb.WriteString("</table>")
	}

	sb.WriteString("</div>")
	return sb.String(), nil
}
