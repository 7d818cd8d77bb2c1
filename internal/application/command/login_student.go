package command

import (
	"context"
	"errors"
	"time"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
	"github.com/campus-hub/courseware-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DefaultSessionTTL is how long a login session lives without configuration.
const DefaultSessionTTL = 24 * time.Hour

// LoginStudentCommand carries a login attempt.
type LoginStudentCommand struct {
	Email    string
	Password string

	// CorrelationID for tracing.
	CorrelationID string
}

// LoginStudentResult is the created session.
type LoginStudentResult struct {
	Token       string
	StudentID   string
	DisplayName string
	IsStaff     bool
	ExpiresAt   time.Time
}

// LoginStudentHandler handles LoginStudentCommand.
type LoginStudentHandler struct {
	students   student.Repository
	sessions   student.SessionStore
	publisher  shared.EventPublisher
	sessionTTL time.Duration
	log        *logger.Logger
}

// NewLoginStudentHandler creates a LoginStudentHandler.
func NewLoginStudentHandler(
	students student.Repository,
	sessions student.SessionStore,
	publisher shared.EventPublisher,
	sessionTTL time.Duration,
	log *logger.Logger,
) *LoginStudentHandler {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if log == nil {
		log = logger.Default()
	}
	return &LoginStudentHandler{
		students:   students,
		sessions:   sessions,
		publisher:  publisher,
		sessionTTL: sessionTTL,
		log:        log,
	}
}

// Handle verifies the credentials and opens a session. Unknown emails and
// wrong passwords both come back as ErrInvalidCredentials so login responses
// do not leak which accounts exist.
func (h *LoginStudentHandler) Handle(ctx context.Context, cmd LoginStudentCommand) (*LoginStudentResult, error) {
	stud, err := h.students.GetByEmail(ctx, cmd.Email)
	if errors.Is(err, shared.ErrStudentNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !stud.Active || !stud.CheckPassword(cmd.Password) {
		return nil, shared.ErrInvalidCredentials
	}

	token, err := h.sessions.Create(ctx, stud.ID, h.sessionTTL)
	if err != nil {
		return nil, err
	}

	if h.publisher != nil {
		event := shared.NewStudentEvent(shared.EventStudentLoggedIn,
			stud.ID, stud.Email.String(), stud.DisplayName)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		_ = h.publisher.Publish(event)
	}

	h.log.Info("student logged in", logger.StudentID(stud.ID))

	return &LoginStudentResult{
		Token:       token,
		StudentID:   stud.ID,
		DisplayName: stud.DisplayName,
		IsStaff:     stud.IsStaff,
		ExpiresAt:   time.Now().UTC().Add(h.sessionTTL),
	}, nil
}
