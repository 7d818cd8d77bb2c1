package command

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/campus-hub/courseware-hub/internal/application/runtime"
	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
	"github.com/campus-hub/courseware-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUEUE CALLBACK COMMAND
// The external grading queue posts results back here. The callback travels the
// same module dispatch path as a client callback, with the queue key from the
// header merged into the payload so the module can verify it matches the
// pending submission.
// ══════════════════════════════════════════════════════════════════════════════

// QueueHeaderField is the form field carrying the queue header JSON.
const QueueHeaderField = "xqueue_header"

// QueueBodyField is the form field carrying the grader's body.
const QueueBodyField = "xqueue_body"

// queueHeader is the parsed xqueue_header payload.
type queueHeader struct {
	QueueKey string `json:"queuekey"`
}

// QueueCallbackCommand carries one grader callback.
type QueueCallbackCommand struct {
	// CourseID is the course from the callback URL.
	CourseID string

	// StudentID is the student the submission belongs to, from the URL. The
	// grader acts on the student's behalf; there is no session.
	StudentID string

	// ModuleSegment is the module URL segment ("problem@circuits-1").
	ModuleSegment string

	// Command is the module command to deliver the result to.
	Command string

	// Payload is the posted form data, including the queue header.
	Payload url.Values

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c QueueCallbackCommand) Validate() error {
	if c.CourseID == "" || c.StudentID == "" || c.ModuleSegment == "" || c.Command == "" {
		return shared.NewDomainError("command", "QueueCallback", shared.ErrEmptyValue,
			"course, student, module, and command are all required")
	}
	return nil
}

// QueueCallbackHandler handles QueueCallbackCommand.
type QueueCallbackHandler struct {
	loader    *runtime.Loader
	students  student.Repository
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewQueueCallbackHandler creates a QueueCallbackHandler.
func NewQueueCallbackHandler(
	loader *runtime.Loader,
	students student.Repository,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *QueueCallbackHandler {
	if log == nil {
		log = logger.Default()
	}
	return &QueueCallbackHandler{
		loader:    loader,
		students:  students,
		publisher: publisher,
		log:       log,
	}
}

// Handle delivers a grader result to the module. The response body is empty;
// the grader only cares about the status.
func (h *QueueCallbackHandler) Handle(ctx context.Context, cmd QueueCallbackCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	header, err := parseQueueHeader(cmd.Payload.Get(QueueHeaderField))
	if err != nil {
		return err
	}

	stud, err := h.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return err
	}

	loc, err := content.ParseUsageSegment(cmd.CourseID, cmd.ModuleSegment)
	if err != nil {
		return err
	}

	cache := runtime.NewStateCache(stud.ID)
	loaded, err := h.loader.GetModule(ctx, stud, loc, cache, 0)
	if err != nil {
		return err
	}
	if loaded.Instance == nil {
		return shared.ErrStateNotFound
	}

	// The module verifies the key against its pending submission.
	payload := clonePayload(cmd.Payload)
	payload.Set("queuekey", header.QueueKey)

	snap := loaded.Instance.TakeSnapshot()

	if _, err := loaded.Module.HandleRequest(ctx, cmd.Command, payload); err != nil {
		h.publishQueueEvent(shared.EventQueueCallbackRejected, cmd, loc, header.QueueKey, err)
		return err
	}

	loaded.ApplyModuleState()

	// Grader results update instance state only; shared state is owned by
	// interactive dispatch.
	gradeChanged, stateChanged := loaded.Instance.ChangedSince(snap)
	if gradeChanged || stateChanged {
		if err := h.loader.States().Save(ctx, loaded.Instance); err != nil {
			return err
		}
	}

	h.publishQueueEvent(shared.EventQueueCallbackReceived, cmd, loc, header.QueueKey, nil)

	h.log.Info("queue callback applied",
		logger.StudentID(stud.ID),
		logger.ModuleKey(loc.UsageKey()),
		logger.Command(cmd.Command),
		logger.Bool("grade_changed", gradeChanged),
	)

	return nil
}

// parseQueueHeader decodes the xqueue header and extracts the queue key.
func parseQueueHeader(raw string) (queueHeader, error) {
	var header queueHeader
	if raw == "" {
		return header, shared.ErrBadQueueHeader
	}
	if err := json.Unmarshal([]byte(raw), &header); err != nil {
		return header, shared.WrapError("command", "QueueCallback", shared.ErrBadQueueHeader,
			"queue header is not valid JSON", err)
	}
	if header.QueueKey == "" {
		return header, shared.ErrBadQueueHeader
	}
	return header, nil
}

// clonePayload copies form values so the original request data stays intact.
func clonePayload(in url.Values) url.Values {
	out := make(url.Values, len(in))
	for k, vs := range in {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// publishQueueEvent emits a queue lifecycle event.
func (h *QueueCallbackHandler) publishQueueEvent(eventType shared.EventType, cmd QueueCallbackCommand, loc content.Location, queueKey string, cause error) {
	if h.publisher == nil {
		return
	}
	event := shared.NewQueueEvent(eventType, loc.UsageKey(), cmd.StudentID, queueKey)
	if cause != nil {
		event.Reason = cause.Error()
	}
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.publisher.Publish(event)
}
