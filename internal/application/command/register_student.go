package command

import (
	"context"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
	"github.com/campus-hub/courseware-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RegisterStudentCommand carries a registration request.
type RegisterStudentCommand struct {
	Email       string
	DisplayName string
	Password    string

	// CorrelationID for tracing.
	CorrelationID string
}

// RegisterStudentResult is the registered account.
type RegisterStudentResult struct {
	StudentID   string
	Email       string
	DisplayName string
}

// RegisterStudentHandler handles RegisterStudentCommand.
type RegisterStudentHandler struct {
	students  student.Repository
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewRegisterStudentHandler creates a RegisterStudentHandler.
func NewRegisterStudentHandler(
	students student.Repository,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *RegisterStudentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RegisterStudentHandler{students: students, publisher: publisher, log: log}
}

// Handle registers the student. Registration never grants staff; staff
// accounts are provisioned out of band.
func (h *RegisterStudentHandler) Handle(ctx context.Context, cmd RegisterStudentCommand) (*RegisterStudentResult, error) {
	stud, err := student.New(student.NewParams{
		Email:       cmd.Email,
		DisplayName: cmd.DisplayName,
		Password:    cmd.Password,
	})
	if err != nil {
		return nil, err
	}

	if err := h.students.Create(ctx, stud); err != nil {
		return nil, err
	}

	if h.publisher != nil {
		event := shared.NewStudentEvent(shared.EventStudentRegistered,
			stud.ID, stud.Email.String(), stud.DisplayName)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		_ = h.publisher.Publish(event)
	}

	h.log.Info("student registered",
		logger.StudentID(stud.ID),
		logger.Email(stud.Email.String()),
	)

	return &RegisterStudentResult{
		StudentID:   stud.ID,
		Email:       stud.Email.String(),
		DisplayName: stud.DisplayName,
	}, nil
}
