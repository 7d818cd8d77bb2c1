package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("block://mit-6002x/problem/circuits-1")
	require.NoError(t, err)
	assert.Equal(t, "mit-6002x", loc.Course)
	assert.Equal(t, "problem", loc.Category)
	assert.Equal(t, "circuits-1", loc.Name)
}

func TestParseLocation_RoundTrip(t *testing.T) {
	loc, err := NewLocation("mit-6002x", "sequence", "week-1")
	require.NoError(t, err)

	parsed, err := ParseLocation(loc.String())
	require.NoError(t, err)
	assert.Equal(t, loc, parsed)
}

func TestParseLocation_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing prefix", "mit-6002x/problem/circuits-1"},
		{"too few parts", "block://mit-6002x/problem"},
		{"too many parts", "block://a/b/c/d"},
		{"empty part", "block://mit-6002x//circuits-1"},
		{"bad characters", "block://mit-6002x/problem/circuits 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLocation(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestParseUsageSegment(t *testing.T) {
	loc, err := ParseUsageSegment("mit-6002x", "problem@circuits-1")
	require.NoError(t, err)
	assert.Equal(t, "problem", loc.Category)
	assert.Equal(t, "circuits-1", loc.Name)
	assert.Equal(t, "problem@circuits-1", loc.URLSegment())
}

func TestParseUsageSegment_NoSeparator(t *testing.T) {
	_, err := ParseUsageSegment("mit-6002x", "circuits-1")
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestLocation_UsageKey(t *testing.T) {
	loc := Location{Course: "c1", Category: "html", Name: "intro"}
	assert.Equal(t, "block://c1/html/intro", loc.UsageKey())
}

func TestLocation_HTMLID(t *testing.T) {
	loc := Location{Course: "c.1", Category: "html", Name: "intro.page"}
	assert.NotContains(t, loc.HTMLID(), ".")
	assert.NotContains(t, loc.HTMLID(), "/")
}

func TestReplaceStaticURLs(t *testing.T) {
	markup := `<img src="/static/circuit.png"> and <a href='/static/notes.pdf'>notes</a>`
	out := ReplaceStaticURLs(markup, "course-assets")
	assert.Contains(t, out, `src="/course-assets/circuit.png"`)
	assert.Contains(t, out, `href='/course-assets/notes.pdf'`)
}

func TestReplaceStaticURLs_NoDataDir(t *testing.T) {
	markup := `<img src="/static/circuit.png">`
	assert.Equal(t, markup, ReplaceStaticURLs(markup, ""))
}

func TestReplaceStaticURLs_LeavesFreeText(t *testing.T) {
	markup := `Files live under /static/ on the old server.`
	assert.Equal(t, markup, ReplaceStaticURLs(markup, "assets"))
}
