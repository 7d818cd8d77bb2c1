package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func desc(course, category, name string, children ...*Descriptor) *Descriptor {
	return &Descriptor{
		Location: Location{Course: course, Category: category, Name: name},
		Category: category,
		Children: children,
	}
}

func TestDescriptor_DisplayItems_SkipsHidden(t *testing.T) {
	hidden := desc("c1", CategoryChapter, "staff-only")
	hidden.DisplayName = "hidden"

	course := desc("c1", CategoryCourse, "c1",
		desc("c1", CategoryChapter, "week-1"),
		hidden,
		desc("c1", CategoryChapter, "week-2"),
	)

	items := course.DisplayItems()
	require.Len(t, items, 2)
	assert.Equal(t, "week-1", items[0].Name())
	assert.Equal(t, "week-2", items[1].Name())
}

func TestDescriptor_IsHidden_CaseInsensitive(t *testing.T) {
	d := desc("c1", CategoryChapter, "x")
	d.DisplayName = "Hidden"
	assert.True(t, d.IsHidden())
}

func TestDescriptor_Find(t *testing.T) {
	leaf := desc("c1", CategoryProblem, "p1")
	course := desc("c1", CategoryCourse, "c1",
		desc("c1", CategoryChapter, "week-1",
			desc("c1", CategorySequence, "seq-1", leaf),
		),
	)

	found := course.Find(leaf.Location)
	require.NotNil(t, found)
	assert.Same(t, leaf, found)

	assert.Nil(t, course.Find(Location{Course: "c1", Category: "problem", Name: "nope"}))
}

func TestDescriptor_UsageKeys_Depth(t *testing.T) {
	course := desc("c1", CategoryCourse, "c1",
		desc("c1", CategoryChapter, "week-1",
			desc("c1", CategorySequence, "seq-1",
				desc("c1", CategoryProblem, "p1"),
			),
		),
	)

	// Depth 0: only the root.
	assert.Equal(t, []string{"block://c1/course/c1"}, course.UsageKeys(0))

	// Depth 2 reaches the sequence but not the problem.
	keys := course.UsageKeys(2)
	assert.Contains(t, keys, "block://c1/sequence/seq-1")
	assert.NotContains(t, keys, "block://c1/problem/p1")
}

func TestDescriptor_UsageKeys_IncludesSharedKeys(t *testing.T) {
	p1 := desc("c1", CategoryProblem, "p1")
	p1.SharedStateKey = "scratchpad-1"
	p2 := desc("c1", CategoryProblem, "p2")
	p2.SharedStateKey = "scratchpad-1"

	seq := desc("c1", CategorySequence, "seq-1", p1, p2)

	keys := seq.UsageKeys(1)
	assert.Contains(t, keys, "scratchpad-1")

	// The shared key appears once despite two declaring modules.
	count := 0
	for _, k := range keys {
		if k == "scratchpad-1" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDescriptor_Validate_CategoryMismatch(t *testing.T) {
	d := desc("c1", CategoryProblem, "p1")
	d.Category = CategoryHTML
	assert.Error(t, d.Validate())
}

func TestDescriptor_Meta(t *testing.T) {
	d := desc("c1", CategorySequence, "hw-1")
	d.Metadata = map[string]string{MetaFormat: "Homework"}

	assert.Equal(t, "Homework", d.Meta(MetaFormat, ""))
	assert.Equal(t, "fallback", d.Meta(MetaDue, "fallback"))
}
