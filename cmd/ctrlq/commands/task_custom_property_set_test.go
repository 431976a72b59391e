package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ctrl-q/ctrlq/taskgraph"
)

func TestMergedPropertyValues_AppendKeepsExisting(t *testing.T) {
	existing := map[string]string{"Owner": "alice"}
	merged := mergedPropertyValues(existing, "Environment", "prod", modeAppend)
	assert.Equal(t, "alice", merged["Owner"])
	assert.Equal(t, "prod", merged["Environment"])
}

func TestMergedPropertyValues_ReplaceDropsExisting(t *testing.T) {
	existing := map[string]string{"Owner": "alice"}
	merged := mergedPropertyValues(existing, "Environment", "prod", modeReplace)
	_, hasOwner := merged["Owner"]
	assert.False(t, hasOwner)
	assert.Equal(t, "prod", merged["Environment"])
}

func TestMatchingTaskIDs_UnionsIDsAndTags(t *testing.T) {
	g := taskgraph.New()
	g.AddTask(taskgraph.Task{ID: "a", Name: "A", Tags: []string{"nightly"}})
	g.AddTask(taskgraph.Task{ID: "b", Name: "B", Tags: []string{"weekly"}})
	g.AddTask(taskgraph.Task{ID: "c", Name: "C"})

	ids, err := matchingTaskIDs(g, []string{"c"}, []string{"nightly"})
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"c", "a"}, ids)
}

func TestHasAnyTag(t *testing.T) {
	assert.True(t, hasAnyTag([]string{"a", "b"}, []string{"b"}))
	assert.False(t, hasAnyTag([]string{"a"}, []string{"z"}))
}
