package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/courseware-hub/internal/application/command"
	"github.com/campus-hub/courseware-hub/internal/application/query"
	"github.com/campus-hub/courseware-hub/internal/application/runtime"
	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
	"github.com/campus-hub/courseware-hub/internal/domain/studentstate"
	"github.com/campus-hub/courseware-hub/internal/domain/xmodule"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
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
	return nil
}

func (r *fakeStateRepo) CountForModule(_ context.Context, _ string) (int, error) { return 0, nil }

func (r *fakeStateRepo) GradeDistribution(_ context.Context, _ string) ([]studentstate.GradeBucket, error) {
	return nil, nil
}

type fakeStudentRepo struct {
	mu       sync.Mutex
	students map[string]*student.Student
}

func newFakeStudentRepo() *fakeStudentRepo {
	return &fakeStudentRepo{students: make(map[string]*student.Student)}
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
	r.students[s.ID] = s
	return nil
}

func (r *fakeStudentRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.students), nil
}

type fakeSessionStore struct {
	mu     sync.Mutex
	tokens map[string]string
	next   int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{tokens: make(map[string]string)}
}

func (s *fakeSessionStore) Create(_ context.Context, studentID string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	token := "token-" + string(rune('a'+s.next))
	s.tokens[token] = studentID
	return token, nil
}

func (s *fakeSessionStore) Resolve(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return "", shared.ErrSessionNotFound
	}
	return id, nil
}

func (s *fakeSessionStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

type fakeHealth struct{ err error }

func (h fakeHealth) Ping(_ context.Context) error { return h.err }

// ─────────────────────────────────────────────────────────────────────────────
// Test server assembly
// ─────────────────────────────────────────────────────────────────────────────

func testCourse() *content.Descriptor {
	problem := &content.Descriptor{
		Location: content.Location{Course: "c1", Category: content.CategoryProblem, Name: "p1"},
		Category: content.CategoryProblem,
		Data:     `{"answers":{"q1":"42"},"max_score":5}`,
	}
	seq := &content.Descriptor{
		Location:    content.Location{Course: "c1", Category: content.CategorySequence, Name: "seq-1"},
		Category:    content.CategorySequence,
		DisplayName: "Problems",
		Children:    []*content.Descriptor{problem},
	}
	chapter := &content.Descriptor{
		Location:    content.Location{Course: "c1", Category: content.CategoryChapter, Name: "week-1"},
		Category:    content.CategoryChapter,
		DisplayName: "Week 1",
		Children:    []*content.Descriptor{seq},
	}
	return &content.Descriptor{
		Location:    content.Location{Course: "c1", Category: content.CategoryCourse, Name: "c1"},
		Category:    content.CategoryCourse,
		DisplayName: "Course One",
		Children:    []*content.Descriptor{chapter},
	}
}

type testEnv struct {
	server   *Server
	students *fakeStudentRepo
	sessions *fakeSessionStore
	states   *fakeStateRepo
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	states := newFakeStateRepo()
	students := newFakeStudentRepo()
	sessions := newFakeSessionStore()
	store := &fakeStore{courses: map[string]*content.Descriptor{"c1": testCourse()}}
	loader := runtime.NewLoader(store, xmodule.DefaultRegistry(), states,
		runtime.Options{RootURL: "http://lms"})

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.EnableCORS = false

	server := NewServer(cfg, Dependencies{
		DispatchHandler:       command.NewDispatchModuleHandler(loader, nil, nil),
		QueueCallbackHandler:  command.NewQueueCallbackHandler(loader, students, nil, nil),
		RegisterHandler:       command.NewRegisterStudentHandler(students, nil, nil),
		LoginHandler:          command.NewLoginStudentHandler(students, sessions, nil, 0, nil),
		ListCoursesHandler:    query.NewListCoursesHandler(store),
		GetTOCHandler:         query.NewGetTOCHandler(loader, nil),
		GetSectionHandler:     query.NewGetSectionHandler(loader),
		RenderModuleHandler:   query.NewRenderModuleHandler(loader, nil),
		GradeHistogramHandler: query.NewGradeHistogramHandler(states),
		Sessions:              sessions,
		Students:              students,
	})

	return &testEnv{server: server, students: students, sessions: sessions, states: states}
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.server.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

// loggedIn seeds an account and a session, bypassing the endpoints.
func (env *testEnv) loggedIn(t *testing.T, staff bool) (string, *student.Student) {
	t.Helper()
	stud, err := student.New(student.NewParams{
		Email:       "ada@example.com",
		DisplayName: "Ada",
		Password:    "correct horse",
		IsStaff:     staff,
	})
	require.NoError(t, err)
	require.NoError(t, env.students.Create(context.Background(), stud))

	token, err := env.sessions.Create(context.Background(), stud.ID, time.Hour)
	require.NoError(t, err)
	return token, stud
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{shared.ErrItemNotFound, http.StatusNotFound, "not_found"},
		{shared.ErrCourseNotFound, http.StatusNotFound, "not_found"},
		{shared.ErrStateNotFound, http.StatusNotFound, "not_found"},
		{shared.ErrStaffOnly, http.StatusForbidden, "forbidden"},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{shared.ErrSessionNotFound, http.StatusUnauthorized, "unauthorized"},
		{shared.ErrStudentAlreadyExists, http.StatusConflict, "conflict"},
		{shared.ErrUnknownCommand, http.StatusBadRequest, "invalid_request"},
		{shared.ErrBadQueueHeader, http.StatusBadRequest, "invalid_request"},
		{shared.ErrQueueKeyMismatch, http.StatusBadRequest, "invalid_request"},
		{shared.ErrQueueUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_server_error"},
	}
	for _, tc := range cases {
		status, code := statusForError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", bearerToken(req))

	req.Header.Set("Authorization", "bearer abc123")
	assert.Equal(t, "abc123", bearerToken(req))

	req.Header.Set("Authorization", "Basic abc123")
	assert.Empty(t, bearerToken(req))
}

func TestListCourses(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Contains(t, rec.Body.String(), "Course One")
}

func TestGetTOC(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(httptest.NewRequest(http.MethodGet,
		"/api/v1/courses/c1/toc?chapter=Week+1&section=Problems", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"display_name":"Week 1"`)
	assert.Contains(t, rec.Body.String(), `"active":true`)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/courses/nope/toc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	env := newTestServer(t)

	// Register.
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"email":"ada@example.com","display_name":"Ada","password":"correct horse"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate registration conflicts.
	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"email":"ada@example.com","password":"correct horse"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Login.
	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"ada@example.com","password":"correct horse"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var loginResp struct {
		Data struct {
			Token string `json:"Token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	require.NotEmpty(t, loginResp.Data.Token)

	// Wrong password.
	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"ada@example.com","password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout revokes the token.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.Data.Token)
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := env.sessions.Resolve(context.Background(), loginResp.Data.Token)
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)
}

func TestDispatch_RequiresAuthentication(t *testing.T) {
	env := newTestServer(t)

	form := url.Values{"input_q1": {"42"}}
	req := httptest.NewRequest(http.MethodPost,
		"/courses/c1/modules/problem@p1/handler/problem_check",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := env.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispatch_ModuleCallback(t *testing.T) {
	env := newTestServer(t)
	token, stud := env.loggedIn(t, false)

	form := url.Values{"input_q1": {"42"}}
	req := httptest.NewRequest(http.MethodPost,
		"/courses/c1/modules/problem@p1/handler/problem_check",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The module's raw response goes back without the JSON envelope.
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "correct", result["success"])

	rec2, err := env.states.Get(context.Background(), stud.ID, "block://c1/problem/p1")
	require.NoError(t, err)
	require.NotNil(t, rec2.Grade)
	assert.Equal(t, 5.0, *rec2.Grade)
}

func TestDispatch_StaleTokenIsAnonymous(t *testing.T) {
	env := newTestServer(t)

	form := url.Values{"input_q1": {"42"}}
	req := httptest.NewRequest(http.MethodPost,
		"/courses/c1/modules/problem@p1/handler/problem_check",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer expired-token")

	rec := env.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQueueCallback(t *testing.T) {
	env := newTestServer(t)
	_, stud := env.loggedIn(t, false)

	// A pending external submission for this student.
	rec := studentstate.New(stud.ID, content.CategoryProblem,
		"block://c1/problem/p1", []byte(`{"attempts":1,"queue_key":"key-1"}`), nil)
	require.NoError(t, env.states.Create(context.Background(), rec))

	form := url.Values{
		"xqueue_header": {`{"queuekey":"key-1"}`},
		"score":         {"3"},
	}
	req := httptest.NewRequest(http.MethodPost,
		"/courses/c1/queue-callback/"+stud.ID+"/problem@p1/score_update",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp := env.do(req)
	require.Equal(t, http.StatusOK, resp.Code)

	saved, err := env.states.Get(context.Background(), stud.ID, "block://c1/problem/p1")
	require.NoError(t, err)
	require.NotNil(t, saved.Grade)
	assert.Equal(t, 3.0, *saved.Grade)
}

func TestQueueCallback_BadHeader(t *testing.T) {
	env := newTestServer(t)
	_, stud := env.loggedIn(t, false)

	form := url.Values{"score": {"3"}}
	req := httptest.NewRequest(http.MethodPost,
		"/courses/c1/queue-callback/"+stud.ID+"/problem@p1/score_update",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGradeHistogram_StaffGate(t *testing.T) {
	env := newTestServer(t)
	token, _ := env.loggedIn(t, false)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/courses/c1/modules/problem@p1/histogram", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGradeHistogram_Staff(t *testing.T) {
	env := newTestServer(t)
	token, _ := env.loggedIn(t, true)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/courses/c1/modules/problem@p1/histogram", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "block://c1/problem/p1")
}

func TestRenderModule(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(httptest.NewRequest(http.MethodGet,
		"/api/v1/courses/c1/modules/sequence@seq-1?position=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "block://c1/sequence/seq-1")
}

func TestHealth(t *testing.T) {
	env := newTestServer(t)
	env.server.deps.Database = fakeHealth{}
	env.server.deps.Cache = fakeHealth{err: errors.New("down")}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cache":"down"`)
	assert.Contains(t, rec.Body.String(), `"database":"up"`)
}

func TestRootUnknownPath(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/definitely-not-here", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
