package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrl-q/ctrlq/taskgraph"
)

func TestDetectCycles_SimpleCycle(t *testing.T) {
	g := taskgraph.New()
	g.AddTask(taskgraph.Task{ID: "A", Name: "A"})
	g.AddTask(taskgraph.Task{ID: "B", Name: "B"})
	g.AddCompositeEvent(taskgraph.CompositeEvent{ID: "e1", DownstreamTask: "B", Rules: []taskgraph.CompositeRule{{UpstreamRef: "A"}}})
	g.AddCompositeEvent(taskgraph.CompositeEvent{ID: "e2", DownstreamTask: "A", Rules: []taskgraph.CompositeRule{{UpstreamRef: "B"}}})

	pairs := DetectCycles(g)
	require.Len(t, pairs, 1)
	assert.Equal(t, unorderedKey("A", "B"), unorderedKey(pairs[0].FromTask, pairs[0].ToTask))
}

func TestDetectCycles_Acyclic(t *testing.T) {
	g := taskgraph.New()
	g.AddTask(taskgraph.Task{ID: "A", Name: "A"})
	g.AddTask(taskgraph.Task{ID: "B", Name: "B"})
	g.AddCompositeEvent(taskgraph.CompositeEvent{ID: "e1", DownstreamTask: "B", Rules: []taskgraph.CompositeRule{{UpstreamRef: "A"}}})

	assert.Empty(t, DetectCycles(g))
}

func TestDetectDuplicateEdges(t *testing.T) {
	g := taskgraph.New()
	g.AddTask(taskgraph.Task{ID: "A", Name: "A"})
	g.AddTask(taskgraph.Task{ID: "B", Name: "B"})
	g.AddCompositeEvent(taskgraph.CompositeEvent{ID: "e1", DownstreamTask: "B", Rules: []taskgraph.CompositeRule{{UpstreamRef: "A", RuleState: taskgraph.TaskSuccessful}}})
	g.AddCompositeEvent(taskgraph.CompositeEvent{ID: "e2", DownstreamTask: "B", Rules: []taskgraph.CompositeRule{{UpstreamRef: "A", RuleState: taskgraph.TaskSuccessful}}})

	dups := DetectDuplicateEdges(g)
	require.Len(t, dups, 1)
	assert.Equal(t, 2, dups[0].Count)
}

func TestRenderTree_SameDownstreamAppearsMultipleTimes(t *testing.T) {
	g := taskgraph.New()
	g.AddTask(taskgraph.Task{ID: "R1", Name: "R1"})
	g.AddTask(taskgraph.Task{ID: "R2", Name: "R2"})
	g.AddTask(taskgraph.Task{ID: "Shared", Name: "Shared"})
	g.AddCompositeEvent(taskgraph.CompositeEvent{ID: "e1", DownstreamTask: "Shared", Rules: []taskgraph.CompositeRule{{UpstreamRef: "R1"}}})
	g.AddCompositeEvent(taskgraph.CompositeEvent{ID: "e2", DownstreamTask: "Shared", Rules: []taskgraph.CompositeRule{{UpstreamRef: "R2"}}})

	forest := RenderTree(g, []string{"R1", "R2"}, -1)
	require.Len(t, forest, 2)
	assert.Equal(t, "Shared", forest[0].Children[0].TaskID)
	assert.Equal(t, "Shared", forest[1].Children[0].TaskID)
}

func TestRenderTree_ScheduledSuperRoot(t *testing.T) {
	g := taskgraph.New()
	g.AddTask(taskgraph.Task{ID: "S1", Name: "S1", ScheduleTriggers: []taskgraph.ScheduleTrigger{{Name: "daily"}}})

	forest := RenderTree(g, nil, -1)
	require.Len(t, forest, 1)
	assert.Equal(t, scheduledSuperRootID, forest[0].TaskID)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, "S1", forest[0].Children[0].TaskID)
}

func TestRenderTree_CycleMarksRepeatWithoutInfiniteRecursion(t *testing.T) {
	g := taskgraph.New()
	g.AddTask(taskgraph.Task{ID: "A", Name: "A"})
	g.AddTask(taskgraph.Task{ID: "B", Name: "B"})
	g.AddCompositeEvent(taskgraph.CompositeEvent{ID: "e1", DownstreamTask: "B", Rules: []taskgraph.CompositeRule{{UpstreamRef: "A"}}})
	g.AddCompositeEvent(taskgraph.CompositeEvent{ID: "e2", DownstreamTask: "A", Rules: []taskgraph.CompositeRule{{UpstreamRef: "B"}}})

	forest := RenderTree(g, []string{"A"}, -1)
	require.Len(t, forest, 1)
	require.Len(t, forest[0].Children, 1)
	b := forest[0].Children[0]
	assert.Equal(t, "B", b.TaskID)
	require.Len(t, b.Children, 1)
	assert.True(t, b.Children[0].IsCycle)
}
