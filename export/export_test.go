package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrl-q/ctrlq/parse"
	"github.com/ctrl-q/ctrlq/taskgraph"
)

func TestRows_SingleTaskHasHeaderAndOneRow(t *testing.T) {
	g := taskgraph.New()
	g.AddTask(taskgraph.Task{ID: "guid-1", Kind: taskgraph.Reload, Name: "T1", Enabled: true, AppID: "app-1"})

	rows := Rows(g)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "T1", rows[1][2])
	assert.Equal(t, "guid-1", rows[1][3])
	assert.Equal(t, "1", rows[1][4])
}

func TestRows_RoundTripsThroughParser(t *testing.T) {
	g := taskgraph.New()
	g.AddTask(taskgraph.Task{ID: "guid-up", Kind: taskgraph.Reload, Name: "Upstream", AppID: "app-1"})
	g.AddTask(taskgraph.Task{ID: "guid-down", Kind: taskgraph.Reload, Name: "Downstream", AppID: "app-1"})
	g.AddCompositeEvent(taskgraph.CompositeEvent{
		ID:             "evt-1",
		Name:           "dep",
		Enabled:        true,
		DownstreamTask: "guid-down",
		Rules:          []taskgraph.CompositeRule{{UpstreamRef: "guid-up", RuleState: taskgraph.TaskSuccessful}},
	})

	rows := Rows(g)

	resolver, err := parse.NewColumnResolver(rows[0], parse.ByName, nil)
	require.NoError(t, err)

	records, err := parse.ParseTasks(rows, resolver, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byName := map[string]parse.TaskRecord{}
	for _, r := range records {
		byName[r.Name] = r
	}

	downstream, ok := byName["Downstream"]
	require.True(t, ok)
	require.Len(t, downstream.CompositeEvents, 1)
	ce := downstream.CompositeEvents[0]
	require.Len(t, ce.Rules, 1)
	assert.Equal(t, taskgraph.TaskSuccessful, ce.Rules[0].RuleState)
	assert.Equal(t, "guid-up", ce.Rules[0].TaskID)
}
