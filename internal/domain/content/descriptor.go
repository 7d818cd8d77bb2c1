package content

import (
	"strings"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

// Well-known module categories.
const (
	CategoryCourse   = "course"
	CategoryChapter  = "chapter"
	CategorySequence = "sequence"
	CategoryHTML     = "html"
	CategoryProblem  = "problem"
	CategoryVideo    = "video"
)

// Metadata keys read by the runtime and the table of contents.
const (
	// MetaFormat is the grading format of a section ("Homework", "Exam", ...).
	MetaFormat = "format"

	// MetaDue is the section due date in timeutil.DueDateLayout.
	MetaDue = "due"

	// MetaDataDir is the per-course static asset directory prefix.
	MetaDataDir = "data_dir"

	// MetaEditURL is an optional authoring link shown to staff in debug output.
	MetaEditURL = "edit_url"

	// MetaGraded marks a module that contributes to the course grade.
	MetaGraded = "graded"
)

// HiddenName marks chapters excluded from the table of contents.
const HiddenName = "hidden"

// Descriptor is one node of a course content tree: what a module is, before
// any student state is attached. Descriptors are immutable after loading;
// runtime modules are constructed from them per request.
type Descriptor struct {
	// Location identifies this module.
	Location Location

	// Category is the module category; mirrors Location.Category.
	Category string

	// DisplayName is the human-readable name shown in navigation.
	DisplayName string

	// Metadata holds authoring metadata (format, due, data_dir, ...).
	Metadata map[string]string

	// Data is the module content payload. Interpretation depends on the
	// category: markup for html modules, a problem definition JSON for
	// problem modules.
	Data string

	// SharedStateKey, when non-empty, makes instances of this module share
	// one state record per student under this key instead of keeping state
	// private to the usage key.
	SharedStateKey string

	// Children are the ordered child descriptors.
	Children []*Descriptor
}

// Validate checks the descriptor and its subtree.
func (d *Descriptor) Validate() error {
	if d == nil {
		return shared.ErrInvalidDescriptor
	}
	if err := d.Location.Validate(); err != nil {
		return err
	}
	if d.Category == "" || d.Category != d.Location.Category {
		return shared.NewDomainError("content", "Validate", shared.ErrInvalidEntity,
			"descriptor category must match location category")
	}
	for _, child := range d.Children {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Meta returns a metadata value, or the fallback when absent.
func (d *Descriptor) Meta(key, fallback string) string {
	if v, ok := d.Metadata[key]; ok {
		return v
	}
	return fallback
}

// Name returns the display name, falling back to the location name.
func (d *Descriptor) Name() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Location.Name
}

// IsHidden reports whether the module is excluded from navigation.
func (d *Descriptor) IsHidden() bool {
	return strings.EqualFold(d.Name(), HiddenName)
}

// DisplayItems returns children that appear in navigation (hidden ones are
// skipped).
func (d *Descriptor) DisplayItems() []*Descriptor {
	items := make([]*Descriptor, 0, len(d.Children))
	for _, child := range d.Children {
		if child.IsHidden() {
			continue
		}
		items = append(items, child)
	}
	return items
}

// ChildByDisplayName finds a direct child by display name with a linear
// search. Returns nil when no child matches.
func (d *Descriptor) ChildByDisplayName(name string) *Descriptor {
	for _, child := range d.Children {
		if child.Name() == name {
			return child
		}
	}
	return nil
}

// Find locates a descriptor in the subtree by location. Returns nil when the
// location is not in the subtree.
func (d *Descriptor) Find(loc Location) *Descriptor {
	if d.Location == loc {
		return d
	}
	for _, child := range d.Children {
		if found := child.Find(loc); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits the descriptor and its subtree depth-first. Walking stops when
// fn returns false.
func (d *Descriptor) Walk(fn func(*Descriptor) bool) bool {
	if !fn(d) {
		return false
	}
	for _, child := range d.Children {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// UsageKeys collects the usage keys and shared-state keys of the subtree down
// to the given depth (0 = just this node). Used to prefetch student state for
// a request.
func (d *Descriptor) UsageKeys(depth int) []string {
	seen := make(map[string]struct{})
	var keys []string

	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	var collect func(node *Descriptor, remaining int)
	collect = func(node *Descriptor, remaining int) {
		add(node.Location.UsageKey())
		if node.SharedStateKey != "" {
			add(node.SharedStateKey)
		}
		if remaining == 0 {
			return
		}
		for _, child := range node.Children {
			collect(child, remaining-1)
		}
	}

	collect(d, depth)
	return keys
}
