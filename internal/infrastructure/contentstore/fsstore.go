// Package contentstore implements the content.Store contract on top of
// JSON course files: one file per course, holding the full descriptor tree.
package contentstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE FILE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// fileNode is one descriptor node as authored in a course file. Data accepts
// either a string (markup) or a JSON object (problem definitions); objects are
// kept as their raw JSON text.
type fileNode struct {
	Category       string            `json:"category"`
	Name           string            `json:"name"`
	DisplayName    string            `json:"display_name,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Data           json.RawMessage   `json:"data,omitempty"`
	SharedStateKey string            `json:"shared_state_key,omitempty"`
	Children       []fileNode        `json:"children,omitempty"`
}

// courseFile is the top-level structure of one course JSON file.
type courseFile struct {
	// Course is the course ID; every node in the tree belongs to it.
	Course string `json:"course"`

	// Root is the course root node; its category must be "course".
	Root fileNode `json:"root"`
}

// ══════════════════════════════════════════════════════════════════════════════
// FILESYSTEM STORE
// ══════════════════════════════════════════════════════════════════════════════

// FSStore loads course trees from a directory of JSON files and serves
// descriptor lookups from memory. Reload swaps the whole index atomically, so
// readers never see a half-loaded course.
type FSStore struct {
	dir string
	log *logger.Logger

	mu      sync.RWMutex
	courses map[string]*content.Descriptor // by course ID
	items   map[string]*content.Descriptor // by usage key
}

// NewFSStore creates a store over a directory and loads every course in it.
func NewFSStore(dir string, log *logger.Logger) (*FSStore, error) {
	if log == nil {
		log = logger.Default()
	}
	s := &FSStore{dir: dir, log: log}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads every course file in the directory.
func (s *FSStore) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("contentstore: reading %s: %w", s.dir, err)
	}

	courses := make(map[string]*content.Descriptor)
	items := make(map[string]*content.Descriptor)

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(s.dir, name)
		course, err := loadCourseFile(path)
		if err != nil {
			return err
		}

		courseID := course.Location.Course
		if _, dup := courses[courseID]; dup {
			return fmt.Errorf("contentstore: duplicate course %q in %s", courseID, name)
		}
		courses[courseID] = course

		course.Walk(func(d *content.Descriptor) bool {
			items[d.Location.UsageKey()] = d
			return true
		})

		s.log.Info("course loaded",
			logger.CourseID(courseID),
			logger.String("file", name),
		)
	}

	s.mu.Lock()
	s.courses = courses
	s.items = items
	s.mu.Unlock()

	return nil
}

// GetItem implements content.Store.
func (s *FSStore) GetItem(ctx context.Context, loc content.Location) (*content.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	desc, ok := s.items[loc.UsageKey()]
	if !ok {
		return nil, shared.WrapError("contentstore", "GetItem", shared.ErrItemNotFound,
			"no item at "+loc.UsageKey(), nil)
	}
	return desc, nil
}

// GetCourse implements content.Store.
func (s *FSStore) GetCourse(ctx context.Context, courseID string) (*content.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	course, ok := s.courses[courseID]
	if !ok {
		return nil, shared.WrapError("contentstore", "GetCourse", shared.ErrCourseNotFound,
			"no course "+courseID, nil)
	}
	return course, nil
}

// Courses implements content.Store. Results are ordered by course ID.
func (s *FSStore) Courses(ctx context.Context) ([]*content.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.courses))
	for id := range s.courses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*content.Descriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.courses[id])
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADING
// ══════════════════════════════════════════════════════════════════════════════

// loadCourseFile parses and validates one course file.
func loadCourseFile(path string) (*content.Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("contentstore: reading %s: %w", path, err)
	}

	var file courseFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("contentstore: parsing %s: %w", path, err)
	}

	if file.Course == "" {
		return nil, fmt.Errorf("contentstore: %s: missing course ID", path)
	}
	if file.Root.Category != content.CategoryCourse {
		return nil, fmt.Errorf("contentstore: %s: root category must be %q, got %q",
			path, content.CategoryCourse, file.Root.Category)
	}

	course, err := buildDescriptor(file.Course, file.Root)
	if err != nil {
		return nil, fmt.Errorf("contentstore: %s: %w", path, err)
	}
	if err := course.Validate(); err != nil {
		return nil, fmt.Errorf("contentstore: %s: %w", path, err)
	}
	return course, nil
}

// buildDescriptor converts a file node and its subtree to descriptors.
func buildDescriptor(courseID string, node fileNode) (*content.Descriptor, error) {
	loc, err := content.NewLocation(courseID, node.Category, node.Name)
	if err != nil {
		return nil, err
	}

	desc := &content.Descriptor{
		Location:       loc,
		Category:       node.Category,
		DisplayName:    node.DisplayName,
		Metadata:       node.Metadata,
		Data:           decodeData(node.Data),
		SharedStateKey: node.SharedStateKey,
	}

	for _, child := range node.Children {
		built, err := buildDescriptor(courseID, child)
		if err != nil {
			return nil, err
		}
		desc.Children = append(desc.Children, built)
	}

	return desc, nil
}

// decodeData turns the raw data field into the descriptor payload: JSON
// strings are unquoted, objects stay as raw JSON text.
func decodeData(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
