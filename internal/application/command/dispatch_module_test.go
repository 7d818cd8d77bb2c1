package command

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/courseware-hub/internal/application/runtime"
	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
	"github.com/campus-hub/courseware-hub/internal/domain/studentstate"
	"github.com/campus-hub/courseware-hub/internal/domain/xmodule"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes shared by the command tests
// ─────────────────────────────────────────────────────────────────────────────

type fakeStore struct {
	courses map[string]*content.Descriptor
}

func (s *fakeStore) GetCourse(_ context.Context, courseID string) (*content.Descriptor, error) {
	course, ok := s.courses[courseID]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	return course, nil
}

func (s *fakeStore) GetItem(_ context.Context, loc content.Location) (*content.Descriptor, error) {
	course, ok := s.courses[loc.Course]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	if found := course.Find(loc); found != nil {
		return found, nil
	}
	return nil, shared.ErrItemNotFound
}

func (s *fakeStore) Courses(_ context.Context) ([]*content.Descriptor, error) {
	out := make([]*content.Descriptor, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c)
	}
	return out, nil
}

type fakeStateRepo struct {
	mu      sync.Mutex
	records map[string]*studentstate.StudentModule
	saves   int
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{records: make(map[string]*studentstate.StudentModule)}
}

func stateKey(studentID, key string) string { return studentID + "\x00" + key }

func (r *fakeStateRepo) Create(_ context.Context, rec *studentstate.StudentModule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := stateKey(rec.StudentID, rec.ModuleStateKey)
	if _, ok := r.records[k]; ok {
		return shared.ErrStateAlreadyExists
	}
	cp := *rec
	r.records[k] = &cp
	return nil
}

func (r *fakeStateRepo) Get(_ context.Context, studentID, key string) (*studentstate.StudentModule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[stateKey(studentID, key)]
	if !ok {
		return nil, shared.ErrStateNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeStateRepo) GetForStudent(_ context.Context, studentID string, keys []string) ([]*studentstate.StudentModule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*studentstate.StudentModule
	for _, key := range keys {
		if rec, ok := r.records[stateKey(studentID, key)]; ok {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeStateRepo) Save(_ context.Context, rec *studentstate.StudentModule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := stateKey(rec.StudentID, rec.ModuleStateKey)
	if _, ok := r.records[k]; !ok {
		return shared.ErrStateNotFound
	}
	cp := *rec
	r.records[k] = &cp
	r.saves++
	return nil
}

func (r *fakeStateRepo) CountForModule(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (r *fakeStateRepo) GradeDistribution(_ context.Context, _ string) ([]studentstate.GradeBucket, error) {
	return nil, nil
}

type fakeStudentRepo struct {
	mu       sync.Mutex
	students map[string]*student.Student
}

func newFakeStudentRepo(seed ...*student.Student) *fakeStudentRepo {
	r := &fakeStudentRepo{students: make(map[string]*student.Student)}
	for _, s := range seed {
		r.students[s.ID] = s
	}
	return r
}

func (r *fakeStudentRepo) Create(_ context.Context, s *student.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.students {
		if existing.Email == s.Email {
			return shared.ErrStudentAlreadyExists
		}
	}
	r.students[s.ID] = s
	return nil
}

func (r *fakeStudentRepo) GetByID(_ context.Context, id string) (*student.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return s, nil
}

func (r *fakeStudentRepo) GetByEmail(_ context.Context, email string) (*student.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.students {
		if s.Email.String() == email {
			return s, nil
		}
	}
	return nil, shared.ErrStudentNotFound
}

func (r *fakeStudentRepo) Update(_ context.Context, s *student.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[s.ID]; !ok {
		return shared.ErrStudentNotFound
	}
	r.students[s.ID] = s
	return nil
}

func (r *fakeStudentRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.students), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

const testStudentID = "0b0e7d4e-2f1a-4c3b-9d8e-1a2b3c4d5e6f"

func testStudent() *student.Student {
	return &student.Student{ID: testStudentID, DisplayName: "Ada", Active: true}
}

func testCourse() *content.Descriptor {
	problem := &content.Descriptor{
		Location:       content.Location{Course: "c1", Category: content.CategoryProblem, Name: "p1"},
		Category:       content.CategoryProblem,
		Data:           `{"answers":{"q1":"42"},"max_score":5}`,
		SharedStateKey: "scratchpad-1",
	}
	external := &content.Descriptor{
		Location: content.Location{Course: "c1", Category: content.CategoryProblem, Name: "ext"},
		Category: content.CategoryProblem,
		Data:     `{"grader":"external","queue_name":"circuits","max_score":10}`,
	}
	return &content.Descriptor{
		Location: content.Location{Course: "c1", Category: content.CategoryCourse, Name: "c1"},
		Category: content.CategoryCourse,
		Children: []*content.Descriptor{problem, external},
	}
}

type commandEnv struct {
	repo      *fakeStateRepo
	students  *fakeStudentRepo
	publisher *recordingPublisher
	loader    *runtime.Loader
}

func newCommandEnv() *commandEnv {
	repo := newFakeStateRepo()
	store := &fakeStore{courses: map[string]*content.Descriptor{"c1": testCourse()}}
	return &commandEnv{
		repo:      repo,
		students:  newFakeStudentRepo(testStudent()),
		publisher: &recordingPublisher{},
		loader: runtime.NewLoader(store, xmodule.DefaultRegistry(), repo,
			runtime.Options{RootURL: "http://lms"}),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestDispatchCommand_StripsQuerySuffix(t *testing.T) {
	cmd := DispatchModuleCommand{RawCommand: "problem_check?dispatch=problem_check"}
	assert.Equal(t, "problem_check", cmd.Command())

	cmd.RawCommand = "goto_position"
	assert.Equal(t, "goto_position", cmd.Command())
}

func TestDispatch_ProblemCheck(t *testing.T) {
	env := newCommandEnv()
	handler := NewDispatchModuleHandler(env.loader, env.publisher, nil)

	result, err := handler.Handle(context.Background(), DispatchModuleCommand{
		User:          testStudent(),
		CourseID:      "c1",
		ModuleSegment: "problem@p1",
		RawCommand:    "problem_check?dispatch=problem_check",
		Payload:       url.Values{"input_q1": {"42"}},
	})
	require.NoError(t, err)

	assert.Contains(t, string(result.Response), `"success":"correct"`)
	assert.True(t, result.GradeChanged)
	assert.True(t, result.StateChanged)

	// The instance record got the grade; the untouched scratchpad did not save.
	rec, err := env.repo.Get(context.Background(), testStudentID, "block://c1/problem/p1")
	require.NoError(t, err)
	require.NotNil(t, rec.Grade)
	assert.Equal(t, 5.0, *rec.Grade)
	assert.Equal(t, 1, env.repo.saves)

	saved := env.publisher.ofType(shared.EventStateSaved)
	require.Len(t, saved, 1)
	event := saved[0].(shared.StateSavedEvent)
	assert.True(t, event.GradeChanged)
	assert.Equal(t, "block://c1/problem/p1", event.AggregateID())

	dispatched := env.publisher.ofType(shared.EventModuleDispatched)
	require.Len(t, dispatched, 1)
	assert.Equal(t, "problem_check", dispatched[0].(shared.ModuleEvent).Command)
}

func TestDispatch_SharedStateSavedSeparately(t *testing.T) {
	env := newCommandEnv()
	handler := NewDispatchModuleHandler(env.loader, env.publisher, nil)

	_, err := handler.Handle(context.Background(), DispatchModuleCommand{
		User:          testStudent(),
		CourseID:      "c1",
		ModuleSegment: "problem@p1",
		RawCommand:    "save_scratchpad",
		Payload:       url.Values{"scratchpad": {"notes"}},
	})
	require.NoError(t, err)

	rec, err := env.repo.Get(context.Background(), testStudentID, "scratchpad-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"scratchpad":"notes"}`, string(rec.State))

	// Only the shared record changed.
	assert.Equal(t, 1, env.repo.saves)
	saved := env.publisher.ofType(shared.EventStateSaved)
	require.Len(t, saved, 1)
	assert.Equal(t, "scratchpad-1", saved[0].AggregateID())
}

func TestDispatch_AnonymousRejected(t *testing.T) {
	env := newCommandEnv()
	handler := NewDispatchModuleHandler(env.loader, env.publisher, nil)

	_, err := handler.Handle(context.Background(), DispatchModuleCommand{
		User:          nil,
		CourseID:      "c1",
		ModuleSegment: "problem@p1",
		RawCommand:    "problem_check",
		Payload:       url.Values{},
	})
	assert.ErrorIs(t, err, shared.ErrStateNotFound)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	env := newCommandEnv()
	handler := NewDispatchModuleHandler(env.loader, env.publisher, nil)

	_, err := handler.Handle(context.Background(), DispatchModuleCommand{
		User:          testStudent(),
		CourseID:      "c1",
		ModuleSegment: "problem@p1",
		RawCommand:    "no_such_command",
		Payload:       url.Values{},
	})
	assert.ErrorIs(t, err, shared.ErrUnknownCommand)
	assert.Equal(t, 0, env.repo.saves)
}

func TestDispatch_NoSaveWhenNothingChanged(t *testing.T) {
	env := newCommandEnv()
	handler := NewDispatchModuleHandler(env.loader, env.publisher, nil)

	// goto_position on a problem is unknown; use show on an undone problem to
	// exercise the error path, then reset on a fresh problem for the no-change
	// path: resetting untouched state leaves the record byte-identical.
	result, err := handler.Handle(context.Background(), DispatchModuleCommand{
		User:          testStudent(),
		CourseID:      "c1",
		ModuleSegment: "problem@p1",
		RawCommand:    "problem_reset",
		Payload:       url.Values{},
	})
	require.NoError(t, err)

	assert.False(t, result.GradeChanged)
	assert.False(t, result.StateChanged)
	assert.Equal(t, 0, env.repo.saves)
	assert.Empty(t, env.publisher.ofType(shared.EventStateSaved))
}

func TestDispatch_ValidatesInput(t *testing.T) {
	env := newCommandEnv()
	handler := NewDispatchModuleHandler(env.loader, env.publisher, nil)

	_, err := handler.Handle(context.Background(), DispatchModuleCommand{
		User:          testStudent(),
		CourseID:      "",
		ModuleSegment: "problem@p1",
		RawCommand:    "problem_check",
	})
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = handler.Handle(context.Background(), DispatchModuleCommand{
		User:          testStudent(),
		CourseID:      "c1",
		ModuleSegment: "problem@p1",
		RawCommand:    "",
	})
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestDispatch_UnknownModule(t *testing.T) {
	env := newCommandEnv()
	handler := NewDispatchModuleHandler(env.loader, env.publisher, nil)

	_, err := handler.Handle(context.Background(), DispatchModuleCommand{
		User:          testStudent(),
		CourseID:      "c1",
		ModuleSegment: "problem@missing",
		RawCommand:    "problem_check",
	})
	assert.ErrorIs(t, err, shared.ErrItemNotFound)
}
