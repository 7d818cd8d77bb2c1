package xmodule

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strconv"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

// Video commands.
const (
	CommandSavePosition = "save_position"
)

// videoState is the persisted playback state of a video module.
type videoState struct {
	// PositionSeconds is where playback last stopped.
	PositionSeconds float64 `json:"position_seconds"`
}

// VideoModule renders an authored video source and remembers playback
// position per student. The descriptor Data is the video source URL.
type VideoModule struct {
	Base
	state videoState
}

// NewVideoModule is the Factory for video modules.
func NewVideoModule(sys *System, desc *content.Descriptor, instanceState, _ json.RawMessage) (Module, error) {
	m := &VideoModule{Base: NewBase(sys, desc)}

	if len(instanceState) > 0 {
		if err := json.Unmarshal(instanceState, &m.state); err != nil {
			return nil, shared.WrapError("xmodule", "NewVideo", shared.ErrInvalidState,
				"corrupt video state", err)
		}
	}

	return m, nil
}

// HandleRequest handles playback position saves.
func (m *VideoModule) HandleRequest(ctx context.Context, command string, payload url.Values) ([]byte, error) {
	switch command {
	case CommandSavePosition:
		pos, err := strconv.ParseFloat(payload.Get("position"), 64)
		if err != nil || pos < 0 {
			return nil, shared.NewDomainError("xmodule", "HandleRequest", shared.ErrInvalidInput,
				"position must be a non-negative number")
		}
		m.state.PositionSeconds = pos
		return json.Marshal(map[string]interface{}{"position_seconds": m.state.PositionSeconds})
	default:
		return nil, shared.ErrUnknownCommand
	}
}

// RenderHTML renders the video element.
func (m *VideoModule) RenderHTML(ctx context.Context) (string, error) {
	src := m.sys.ReplaceStaticURLs(m.desc.Data)

	rendered, err := m.sys.RenderTemplate("video.html", map[string]interface{}{
		"display_name": m.desc.Name(),
		"src":          src,
		"position":     m.state.PositionSeconds,
	})
	if err != nil {
		return "", err
	}
	if rendered != "" {
		return rendered, nil
	}

	return fmt.Sprintf("<video class=\"courseware-video\" src=\"%s\" data-position=\"%g\" controls></video>",
		html.EscapeString(src), m.state.PositionSeconds), nil
}

// InstanceState snapshots the playback position.
func (m *VideoModule) InstanceState() json.RawMessage {
	data, _ := json.Marshal(m.state)
	return data
}
