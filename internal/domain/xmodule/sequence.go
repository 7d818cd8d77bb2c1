package xmodule

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

// Sequence commands.
const (
	CommandGotoPosition = "goto_position"
)

// sequenceState is the persisted per-student state of a sequence.
type sequenceState struct {
	// Position is the 1-based index of the child the student last viewed.
	Position int `json:"position"`
}

// SequenceModule steps a student through its children one at a time,
// remembering the last viewed position per student.
type SequenceModule struct {
	Base
	state sequenceState
}

// NewSequenceModule is the Factory for sequence modules.
func NewSequenceModule(sys *System, desc *content.Descriptor, instanceState, _ json.RawMessage) (Module, error) {
	m := &SequenceModule{Base: NewBase(sys, desc)}

	if len(instanceState) > 0 {
		if err := json.Unmarshal(instanceState, &m.state); err != nil {
			return nil, shared.WrapError("xmodule", "NewSequence", shared.ErrInvalidState,
				"corrupt sequence state", err)
		}
	}

	// A position hint from the URL overrides persisted position.
	if sys.Position > 0 {
		m.state.Position = sys.Position
	}
	m.clampPosition()

	return m, nil
}

// clampPosition keeps the position within the children range.
func (m *SequenceModule) clampPosition() {
	n := len(m.desc.Children)
	if n == 0 {
		m.state.Position = 0
		return
	}
	if m.state.Position < 1 {
		m.state.Position = 1
	}
	if m.state.Position > n {
		m.state.Position = n
	}
}

// Position returns the current 1-based position (0 when the sequence is empty).
func (m *SequenceModule) Position() int {
	return m.state.Position
}

// HandleRequest handles sequence navigation commands.
func (m *SequenceModule) HandleRequest(ctx context.Context, command string, payload url.Values) ([]byte, error) {
	switch command {
	case CommandGotoPosition:
		pos, err := strconv.Atoi(payload.Get("position"))
		if err != nil {
			return nil, shared.WrapError("xmodule", "HandleRequest", shared.ErrInvalidInput,
				"position must be an integer", err)
		}
		m.state.Position = pos
		m.clampPosition()
		m.sys.Track("seq_goto", "x_module", map[string]interface{}{
			"id":  m.desc.Location.String(),
			"new": m.state.Position,
		})
		return json.Marshal(map[string]interface{}{"position": m.state.Position})
	default:
		return nil, shared.ErrUnknownCommand
	}
}

// RenderHTML renders the child at the current position inside sequence
// navigation.
func (m *SequenceModule) RenderHTML(ctx context.Context) (string, error) {
	if len(m.desc.Children) == 0 {
		return "", nil
	}

	current := m.desc.Children[m.state.Position-1]
	child, err := m.sys.GetModule(ctx, current.Location.String())
	if err != nil {
		return "", fmt.Errorf("sequence: loading child %s: %w", current.Location, err)
	}

	inner, err := child.RenderHTML(ctx)
	if err != nil {
		return "", err
	}

	rendered, err := m.sys.RenderTemplate("sequence.html", map[string]interface{}{
		"display_name": m.desc.Name(),
		"position":     m.state.Position,
		"count":        len(m.desc.Children),
		"content":      inner,
	})
	if err != nil {
		return "", err
	}
	if rendered != "" {
		return rendered, nil
	}

	return fmt.Sprintf("<div class=\"sequence\" data-position=\"%d\" data-count=\"%d\">%s</div>",
		m.state.Position, len(m.desc.Children), inner), nil
}

// InstanceState snapshots the position.
func (m *SequenceModule) InstanceState() json.RawMessage {
	data, _ := json.Marshal(m.state)
	return data
}
