package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

func TestRenderModule_HTML(t *testing.T) {
	handler := NewRenderModuleHandler(newQueryLoader(newFakeStateRepo()), nil)

	view, err := handler.Handle(context.Background(), RenderModuleQuery{
		CourseID:      "c1",
		ModuleSegment: "html@intro",
	})
	require.NoError(t, err)

	assert.Equal(t, "block://c1/html/intro", view.Location)
	assert.Equal(t, "html", view.Category)
	assert.Contains(t, view.HTML, "<p>welcome</p>")
	assert.Equal(t, "http://lms/courses/c1/modules/html@intro/handler/", view.AjaxURL)
}

func TestRenderModule_SequenceRendersCurrentChild(t *testing.T) {
	handler := NewRenderModuleHandler(newQueryLoader(newFakeStateRepo()), nil)

	view, err := handler.Handle(context.Background(), RenderModuleQuery{
		CourseID:      "c1",
		ModuleSegment: "sequence@welcome-week",
		Position:      1,
	})
	require.NoError(t, err)
	assert.Contains(t, view.HTML, "<p>welcome</p>")
}

func TestRenderModule_PublishesForAuthenticated(t *testing.T) {
	publisher := &recordingPublisher{}
	handler := NewRenderModuleHandler(newQueryLoader(newFakeStateRepo()), publisher)

	_, err := handler.Handle(context.Background(), RenderModuleQuery{
		User:          testStudent(false),
		CourseID:      "c1",
		ModuleSegment: "html@intro",
	})
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventModuleRendered, publisher.events[0].EventType())

	// Anonymous renders are not tracked.
	_, err = handler.Handle(context.Background(), RenderModuleQuery{
		CourseID:      "c1",
		ModuleSegment: "html@intro",
	})
	require.NoError(t, err)
	assert.Len(t, publisher.events, 1)
}

func TestRenderModule_UnknownModule(t *testing.T) {
	handler := NewRenderModuleHandler(newQueryLoader(newFakeStateRepo()), nil)

	_, err := handler.Handle(context.Background(), RenderModuleQuery{
		CourseID:      "c1",
		ModuleSegment: "html@missing",
	})
	assert.ErrorIs(t, err, shared.ErrItemNotFound)
}
