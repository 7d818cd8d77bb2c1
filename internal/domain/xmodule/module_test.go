package xmodule

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

func TestRegistry_FallsBackToHTML(t *testing.T) {
	reg := DefaultRegistry()
	desc := &content.Descriptor{
		Location: content.Location{Course: "c1", Category: "discussion", Name: "forum-1"},
		Category: "discussion",
		Data:     "<p>forum placeholder</p>",
	}

	mod, err := reg.New(NewSystem(Options{}), desc, nil, nil)
	require.NoError(t, err)

	out, err := mod.RenderHTML(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<p>forum placeholder</p>", out)
}

func TestRegistry_NoFallback(t *testing.T) {
	reg := NewRegistry()
	reg.SetFallback(nil)

	desc := &content.Descriptor{
		Location: content.Location{Course: "c1", Category: "discussion", Name: "forum-1"},
		Category: "discussion",
	}

	_, err := reg.New(NewSystem(Options{}), desc, nil, nil)
	assert.ErrorIs(t, err, shared.ErrUnknownCategory)
}

func TestHTMLModule_RewritesStaticURLs(t *testing.T) {
	sys := NewSystem(Options{
		ReplaceStaticURLs: func(markup string) string {
			return markup + "<!-- rewritten -->"
		},
	})
	desc := &content.Descriptor{
		Location: content.Location{Course: "c1", Category: content.CategoryHTML, Name: "intro"},
		Category: content.CategoryHTML,
		Data:     "<h1>Intro</h1>",
	}

	mod, err := NewHTMLModule(sys, desc, nil, nil)
	require.NoError(t, err)

	out, err := mod.RenderHTML(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<h1>Intro</h1><!-- rewritten -->", out)
}

func TestVideoModule_SavePosition(t *testing.T) {
	desc := &content.Descriptor{
		Location: content.Location{Course: "c1", Category: content.CategoryVideo, Name: "lecture-1"},
		Category: content.CategoryVideo,
		Data:     "/static/lecture-1.mp4",
	}

	mod, err := NewVideoModule(NewSystem(Options{}), desc, nil, nil)
	require.NoError(t, err)

	_, err = mod.HandleRequest(context.Background(), CommandSavePosition,
		url.Values{"position": {"73.5"}})
	require.NoError(t, err)

	var state map[string]float64
	require.NoError(t, json.Unmarshal(mod.InstanceState(), &state))
	assert.Equal(t, 73.5, state["position_seconds"])

	_, err = mod.HandleRequest(context.Background(), CommandSavePosition,
		url.Values{"position": {"-1"}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestSystem_NilServiceDefaults(t *testing.T) {
	sys := NewSystem(Options{})

	// Track is a no-op, not nil.
	assert.NotPanics(t, func() {
		sys.Track("event", "page", nil)
	})

	_, err := sys.GetModule(context.Background(), "block://c1/html/x")
	assert.ErrorIs(t, err, ErrNoNestedModules)

	out, err := sys.RenderTemplate("anything.html", nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	assert.Equal(t, "markup", sys.ReplaceStaticURLs("markup"))
}
