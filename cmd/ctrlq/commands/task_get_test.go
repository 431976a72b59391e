package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrl-q/ctrlq/taskgraph"
)

func TestBuildTableRows_CommonBlockOnly(t *testing.T) {
	g := taskgraph.New()
	g.AddTask(taskgraph.Task{ID: "a", Name: "Nightly load", Kind: taskgraph.Reload, Enabled: true})

	header, rows, err := buildTableRows(context.Background(), nil, g, []string{"a"}, []string{"common"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Task id", "Task name", "Task type", "Task enabled"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a", "Nightly load", "Reload", "1"}, rows[0])
}

func TestBuildTableRows_TagAndCustomPropertyBlocks(t *testing.T) {
	g := taskgraph.New()
	g.AddTask(taskgraph.Task{
		ID: "a", Name: "Task A", Kind: taskgraph.ExternalProgram, Enabled: false,
		Tags:                 []string{"nightly"},
		CustomPropertyValues: map[string]string{"Owner": "alice"},
	})

	header, rows, err := buildTableRows(context.Background(), nil, g, []string{"a"}, []string{"common", "tag", "customproperty"})
	require.NoError(t, err)
	assert.Contains(t, header, "Tags")
	assert.Contains(t, header, "Custom properties")
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0], "nightly")
	assert.Contains(t, rows[0], "Owner=alice")
}

func TestTaskKindLabel(t *testing.T) {
	assert.Equal(t, "Reload", taskKindLabel(taskgraph.Reload))
	assert.Equal(t, "External program", taskKindLabel(taskgraph.ExternalProgram))
}

func TestDefaultExtension(t *testing.T) {
	assert.Equal(t, "xlsx", defaultExtension(fileFormatExcel))
	assert.Equal(t, "json", defaultExtension(fileFormatJSON))
	assert.Equal(t, "csv", defaultExtension(fileFormatCSV))
}
