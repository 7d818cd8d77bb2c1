package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/campus-hub/courseware-hub/internal/application/command"
	"github.com/campus-hub/courseware-hub/internal/application/query"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot handles the root endpoint.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "The requested resource was not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "courseware-hub",
		"status":  "running",
		"uptime":  s.Uptime().String(),
	})
}

// handleHealth reports overall health including backing services.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if s.deps.Database != nil {
		if err := s.deps.Database.Ping(ctx); err != nil {
			checks["database"] = "down"
			healthy = false
		} else {
			checks["database"] = "up"
		}
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Ping(ctx); err != nil {
			checks["cache"] = "down"
			healthy = false
		} else {
			checks["cache"] = "up"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"healthy": healthy,
		"checks":  checks,
	})
}

// handleReady reports readiness to receive traffic.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.IsRunning() {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", "Server is not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive reports liveness.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// handleRegister creates a student account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	result, err := s.deps.RegisterHandler.Handle(r.Context(), command.RegisterStudentCommand{
		Email:         req.Email,
		DisplayName:   req.DisplayName,
		Password:      req.Password,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin opens a session and returns a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	result, err := s.deps.LoginHandler.Handle(r.Context(), command.LoginStudentCommand{
		Email:         req.Email,
		Password:      req.Password,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleLogout revokes the presented session token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "A bearer token is required")
		return
	}

	if s.deps.Sessions != nil {
		if err := s.deps.Sessions.Revoke(r.Context(), token); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSEWARE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListCourses lists the loaded courses.
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.deps.ListCoursesHandler.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// handleGetTOC returns the course's table of contents. The active chapter and
// section names come from query parameters so the client can highlight where
// the student is.
func (s *Server) handleGetTOC(w http.ResponseWriter, r *http.Request) {
	chapters, err := s.deps.GetTOCHandler.Handle(r.Context(), query.GetTOCQuery{
		User:          currentStudent(r.Context()),
		CourseID:      r.PathValue("course"),
		ActiveChapter: r.URL.Query().Get("chapter"),
		ActiveSection: r.URL.Query().Get("section"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chapters)
}

// handleGetSection renders one section addressed by navigation names.
func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	section, err := s.deps.GetSectionHandler.Handle(r.Context(), query.GetSectionQuery{
		User:        currentStudent(r.Context()),
		CourseID:    r.PathValue("course"),
		ChapterName: r.PathValue("chapter"),
		SectionName: r.PathValue("section"),
		Position:    getQueryParamInt(r, "position", 0),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, section)
}

// handleRenderModule renders one module addressed by its URL segment.
func (s *Server) handleRenderModule(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.RenderModuleHandler.Handle(r.Context(), query.RenderModuleQuery{
		User:          currentStudent(r.Context()),
		CourseID:      r.PathValue("course"),
		ModuleSegment: r.PathValue("module"),
		Position:      getQueryParamInt(r, "position", 0),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleGradeHistogram returns a module's grade distribution. Staff only;
// the query handler enforces it.
func (s *Server) handleGradeHistogram(w http.ResponseWriter, r *http.Request) {
	histogram, err := s.deps.GradeHistogramHandler.Handle(r.Context(), query.GradeHistogramQuery{
		User:          currentStudent(r.Context()),
		CourseID:      r.PathValue("course"),
		ModuleSegment: r.PathValue("module"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, histogram)
}

// ══════════════════════════════════════════════════════════════════════════════
// MODULE CALLBACK HANDLERS
// These do not use the JSON envelope: the response body belongs to the module
// and goes back to the client verbatim.
// ══════════════════════════════════════════════════════════════════════════════

// handleDispatch delivers a client callback to a module.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	user := currentStudent(r.Context())
	if !user.IsAuthenticated() {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Module callbacks require a logged-in student")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed form body")
		return
	}

	result, err := s.deps.DispatchHandler.Handle(r.Context(), command.DispatchModuleCommand{
		User:          user,
		CourseID:      r.PathValue("course"),
		ModuleSegment: r.PathValue("module"),
		RawCommand:    r.PathValue("command"),
		Payload:       r.PostForm,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Response)
}

// handleQueueCallback delivers a grader result. The grader authenticates
// nothing; the queue key inside the payload is the shared secret.
func (s *Server) handleQueueCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed form body")
		return
	}

	err := s.deps.QueueCallbackHandler.Handle(r.Context(), command.QueueCallbackCommand{
		CourseID:      r.PathValue("course"),
		StudentID:     r.PathValue("student"),
		ModuleSegment: r.PathValue("module"),
		Command:       r.PathValue("command"),
		Payload:       r.PostForm,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps a domain error onto an HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
	}

	writeJSONError(w, status, code, err.Error())
}

// statusForError maps domain error kinds to HTTP statuses.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, shared.ErrAlreadyExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrEmptyValue),
		errors.Is(err, shared.ErrInvalidFormat),
		errors.Is(err, shared.ErrInvalidEntity),
		errors.Is(err, shared.ErrInvalidState):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, shared.ErrServiceUnavailable),
		errors.Is(err, shared.ErrTimeout):
		return http.StatusServiceUnavailable, "service_unavailable"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}
