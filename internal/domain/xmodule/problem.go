package xmodule

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

// Problem commands.
const (
	CommandProblemCheck   = "problem_check"
	CommandProblemReset   = "problem_reset"
	CommandProblemShow    = "problem_show"
	CommandScoreUpdate    = "score_update"
	CommandSaveScratchpad = "save_scratchpad"
)

// Grader kinds in the problem definition.
const (
	GraderInternal = ""         // answers compared locally
	GraderExternal = "external" // submitted to the grading queue
)

// InputFieldPrefix prefixes answer fields in the check payload
// ("input_q1=42").
const InputFieldPrefix = "input_"

// problemDefinition is the authored problem, parsed from descriptor Data.
type problemDefinition struct {
	// Prompt is the problem markup shown to the student.
	Prompt string `json:"prompt"`

	// MaxAttempts limits checks; 0 means unlimited.
	MaxAttempts int `json:"max_attempts"`

	// MaxScore is the achievable score; defaults to 1.
	MaxScore float64 `json:"max_score"`

	// Answers maps input IDs to expected answers for internal grading.
	Answers map[string]string `json:"answers"`

	// Grader selects internal or external grading.
	Grader string `json:"grader"`

	// QueueName selects the external grader queue.
	QueueName string `json:"queue_name"`
}

// problemState is the persisted per-student state of a problem.
type problemState struct {
	Attempts       int               `json:"attempts"`
	StudentAnswers map[string]string `json:"student_answers,omitempty"`
	Score          *float64          `json:"score,omitempty"`
	Done           bool              `json:"done"`
	QueueKey       string            `json:"queue_key,omitempty"`
}

// scratchpadState is the optional state shared across problems that declare a
// common shared-state key: a free-form scratchpad the student carries between
// related problems.
type scratchpadState struct {
	Scratchpad string `json:"scratchpad"`
}

// ProblemModule grades student answers, either locally against authored
// answers or through the external grading queue, and accrues per-student
// attempt and score state.
type ProblemModule struct {
	Base
	def    problemDefinition
	state  problemState
	shared *scratchpadState
}

// NewProblemModule is the Factory for problem modules.
func NewProblemModule(sys *System, desc *content.Descriptor, instanceState, sharedState json.RawMessage) (Module, error) {
	m := &ProblemModule{Base: NewBase(sys, desc)}

	if err := json.Unmarshal([]byte(desc.Data), &m.def); err != nil {
		return nil, shared.WrapError("xmodule", "NewProblem", shared.ErrInvalidEntity,
			fmt.Sprintf("corrupt problem definition at %s", desc.Location), err)
	}
	if m.def.MaxScore <= 0 {
		m.def.MaxScore = 1
	}

	if len(instanceState) > 0 {
		if err := json.Unmarshal(instanceState, &m.state); err != nil {
			return nil, shared.WrapError("xmodule", "NewProblem", shared.ErrInvalidState,
				"corrupt problem state", err)
		}
	}

	if desc.SharedStateKey != "" {
		m.shared = &scratchpadState{}
		if len(sharedState) > 0 {
			if err := json.Unmarshal(sharedState, m.shared); err != nil {
				return nil, shared.WrapError("xmodule", "NewProblem", shared.ErrInvalidState,
					"corrupt shared scratchpad state", err)
			}
		}
	}

	return m, nil
}

// HandleRequest dispatches problem commands.
func (m *ProblemModule) HandleRequest(ctx context.Context, command string, payload url.Values) ([]byte, error) {
	switch command {
	case CommandProblemCheck:
		return m.handleCheck(ctx, payload)
	case CommandProblemReset:
		return m.handleReset()
	case CommandProblemShow:
		return m.handleShow()
	case CommandScoreUpdate:
		return m.handleScoreUpdate(payload)
	case CommandSaveScratchpad:
		return m.handleSaveScratchpad(payload)
	default:
		return nil, shared.ErrUnknownCommand
	}
}

// handleCheck grades a submission or queues it for external grading.
func (m *ProblemModule) handleCheck(ctx context.Context, payload url.Values) ([]byte, error) {
	if m.def.MaxAttempts > 0 && m.state.Attempts >= m.def.MaxAttempts {
		return json.Marshal(map[string]interface{}{
			"success": "attempts_exhausted",
			"error":   "no attempts remaining",
		})
	}

	answers := make(map[string]string)
	for field := range payload {
		if id, ok := strings.CutPrefix(field, InputFieldPrefix); ok {
			answers[id] = payload.Get(field)
		}
	}

	m.state.Attempts++
	m.state.StudentAnswers = answers

	if m.def.Grader == GraderExternal {
		return m.queueForGrading(ctx, answers)
	}

	correct := 0
	for id, expected := range m.def.Answers {
		if strings.TrimSpace(answers[id]) == expected {
			correct++
		}
	}

	score := 0.0
	if len(m.def.Answers) > 0 {
		score = float64(correct) / float64(len(m.def.Answers)) * m.def.MaxScore
	}
	m.state.Score = &score
	m.state.Done = true

	success := "incorrect"
	if correct == len(m.def.Answers) {
		success = "correct"
	}

	m.sys.Track("problem_check", "x_module", map[string]interface{}{
		"id":       m.desc.Location.String(),
		"attempts": m.state.Attempts,
		"score":    score,
		"success":  success,
	})

	return json.Marshal(map[string]interface{}{
		"success":  success,
		"score":    score,
		"max":      m.def.MaxScore,
		"attempts": m.state.Attempts,
	})
}

// queueForGrading submits the answers to the external queue and parks the
// problem until score_update arrives on the callback path.
func (m *ProblemModule) queueForGrading(ctx context.Context, answers map[string]string) ([]byte, error) {
	if m.sys.SubmitToQueue == nil {
		return nil, shared.ErrQueueUnavailable
	}

	queueKey := uuid.NewString()
	body := make(map[string]string, len(answers))
	for id, answer := range answers {
		body[id] = answer
	}

	err := m.sys.SubmitToQueue(ctx, QueueSubmission{
		QueueName:   m.def.QueueName,
		QueueKey:    queueKey,
		CallbackURL: m.sys.QueueCallbackURL,
		Body:        body,
	})
	if err != nil {
		// The attempt still counts; the student can resubmit.
		return nil, shared.WrapError("xmodule", "HandleRequest", shared.ErrServiceUnavailable,
			"grading queue submission failed", err)
	}

	m.state.QueueKey = queueKey
	m.state.Done = false

	m.sys.Track("problem_queued", "x_module", map[string]interface{}{
		"id":        m.desc.Location.String(),
		"queue_key": queueKey,
	})

	return json.Marshal(map[string]interface{}{
		"success":  "incomplete",
		"queued":   true,
		"attempts": m.state.Attempts,
	})
}

// handleScoreUpdate applies an external grader result. The queue key in the
// payload must match the pending submission.
func (m *ProblemModule) handleScoreUpdate(payload url.Values) ([]byte, error) {
	queueKey := payload.Get("queuekey")
	if queueKey == "" || queueKey != m.state.QueueKey {
		return nil, shared.ErrQueueKeyMismatch
	}

	score, err := strconv.ParseFloat(payload.Get("score"), 64)
	if err != nil || score < 0 || score > m.def.MaxScore {
		return nil, shared.NewDomainError("xmodule", "HandleRequest", shared.ErrInvalidInput,
			"score missing or out of range")
	}

	m.state.Score = &score
	m.state.Done = true
	m.state.QueueKey = ""

	m.sys.Track("problem_graded", "x_module", map[string]interface{}{
		"id":    m.desc.Location.String(),
		"score": score,
	})

	return []byte{}, nil
}

// handleReset clears answers and score; attempts are kept.
func (m *ProblemModule) handleReset() ([]byte, error) {
	m.state.StudentAnswers = nil
	m.state.Score = nil
	m.state.Done = false
	m.state.QueueKey = ""

	m.sys.Track("problem_reset", "x_module", map[string]interface{}{
		"id": m.desc.Location.String(),
	})

	return json.Marshal(map[string]interface{}{"success": true})
}

// handleShow reveals the answers once the problem is done or attempts ran out.
func (m *ProblemModule) handleShow() ([]byte, error) {
	exhausted := m.def.MaxAttempts > 0 && m.state.Attempts >= m.def.MaxAttempts
	if !m.state.Done && !exhausted {
		return nil, shared.NewDomainError("xmodule", "HandleRequest", shared.ErrForbidden,
			"answers not available yet")
	}
	return json.Marshal(map[string]interface{}{"answers": m.def.Answers})
}

// handleSaveScratchpad saves the shared scratchpad, if this problem shares
// state.
func (m *ProblemModule) handleSaveScratchpad(payload url.Values) ([]byte, error) {
	if m.shared == nil {
		return nil, shared.ErrUnknownCommand
	}
	m.shared.Scratchpad = payload.Get("scratchpad")
	return json.Marshal(map[string]interface{}{"success": true})
}

// RenderHTML renders the problem prompt and status.
func (m *ProblemModule) RenderHTML(ctx context.Context) (string, error) {
	prompt := m.sys.ReplaceStaticURLs(m.def.Prompt)

	data := map[string]interface{}{
		"display_name": m.desc.Name(),
		"prompt":       prompt,
		"attempts":     m.state.Attempts,
		"max_attempts": m.def.MaxAttempts,
		"done":         m.state.Done,
		"ajax_url":     m.sys.AjaxURL,
	}
	if m.state.Score != nil {
		data["score"] = *m.state.Score
		data["max_score"] = m.def.MaxScore
	}
	if m.shared != nil {
		data["scratchpad"] = m.shared.Scratchpad
	}

	rendered, err := m.sys.RenderTemplate("problem.html", data)
	if err != nil {
		return "", err
	}
	if rendered != "" {
		return rendered, nil
	}

	return fmt.Sprintf("<div class=\"problem\" data-ajax-url=\"%s\" data-attempts=\"%d\">%s</div>",
		html.EscapeString(m.sys.AjaxURL), m.state.Attempts, prompt), nil
}

// InstanceState snapshots attempts, answers, and score.
func (m *ProblemModule) InstanceState() json.RawMessage {
	data, _ := json.Marshal(m.state)
	return data
}

// SharedState snapshots the scratchpad when this problem shares state.
func (m *ProblemModule) SharedState() json.RawMessage {
	if m.shared == nil {
		return nil
	}
	data, _ := json.Marshal(m.shared)
	return data
}

// Score returns the current score when graded.
func (m *ProblemModule) Score() (Score, bool) {
	if m.state.Score == nil {
		return Score{}, false
	}
	return Score{Earned: *m.state.Score, Possible: m.def.MaxScore}, true
}

// MaxScore returns the achievable score.
func (m *ProblemModule) MaxScore() (float64, bool) {
	return m.def.MaxScore, true
}
