package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrl-q/ctrlq/taskgraph"
)

var taskColumnOrder = []Column{
	ColTaskCounter, ColTaskType, ColTaskName, ColTaskID, ColTaskEnabled, ColTaskTimeout, ColTaskRetries,
	ColAppID, ColPartialReload, ColManuallyTriggered, ColTags, ColCustomProperties,
	ColEventCounter, ColEventType, ColEventName, ColEventEnabled,
	ColSchemaIncrementOption, ColSchemaIncrementDescription, ColDaylightSavingTime, ColSchemaStart, ColSchemaExpiration, ColSchemaFilterDescription, ColSchemaTimeZone,
	ColTimeConstraintSeconds, ColTimeConstraintMinutes, ColTimeConstraintHours, ColTimeConstraintDays,
	ColRuleCounter, ColRuleState, ColRuleTaskName, ColRuleTaskID,
}

// buildRows assembles a header + data rows from sparse per-row maps,
// avoiding hand-counted CSV literals.
func buildRows(dataRows []map[Column]string) [][]string {
	header := make([]string, len(taskColumnOrder))
	for i, col := range taskColumnOrder {
		header[i] = headerNames[col]
	}
	rows := [][]string{header}
	for _, dr := range dataRows {
		row := make([]string, len(taskColumnOrder))
		for i, col := range taskColumnOrder {
			row[i] = dr[col]
		}
		rows = append(rows, row)
	}
	return rows
}

func mustResolver(t *testing.T, header []string) *ColumnResolver {
	t.Helper()
	r, err := NewColumnResolver(header, ByName, nil)
	require.NoError(t, err)
	return r
}

func TestParseTasks_SingleTaskNoTriggers(t *testing.T) {
	rows := buildRows([]map[Column]string{
		{ColTaskCounter: "1", ColTaskType: "Reload", ColTaskName: "T1", ColTaskID: "task-1",
			ColTaskEnabled: "1", ColTaskTimeout: "60", ColTaskRetries: "0", ColAppID: "app-guid-1"},
	})
	resolver := mustResolver(t, rows[0])
	records, err := ParseTasks(rows, resolver, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "T1", records[0].Name)
	assert.Equal(t, taskgraph.Reload, records[0].Kind)
	assert.Empty(t, records[0].ScheduleEvents)
	assert.Empty(t, records[0].CompositeEvents)
}

func TestParseTasks_ChainWithCompositeRule(t *testing.T) {
	rows := buildRows([]map[Column]string{
		{ColTaskCounter: "1", ColTaskType: "Reload", ColTaskName: "T1", ColTaskID: "1",
			ColTaskEnabled: "1", ColTaskTimeout: "60", ColTaskRetries: "0", ColAppID: "app-guid-1"},
		{ColTaskCounter: "2", ColTaskType: "Reload", ColTaskName: "T2", ColTaskID: "2",
			ColTaskEnabled: "1", ColTaskTimeout: "60", ColTaskRetries: "0", ColAppID: "app-guid-1",
			ColEventCounter: "1", ColEventType: "Composite", ColEventName: "dep", ColEventEnabled: "1",
			ColRuleCounter: "1", ColRuleState: "TaskSuccessful", ColRuleTaskName: "T1", ColRuleTaskID: "1"},
	})
	resolver := mustResolver(t, rows[0])
	records, err := ParseTasks(rows, resolver, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	t2 := records[1]
	require.Len(t, t2.CompositeEvents, 1)
	require.Len(t, t2.CompositeEvents[0].Rules, 1)
	assert.Equal(t, "1", t2.CompositeEvents[0].Rules[0].TaskID)
	assert.Equal(t, taskgraph.TaskSuccessful, t2.CompositeEvents[0].Rules[0].RuleState)
}

func TestParseTasks_LimitImportCount(t *testing.T) {
	rows := buildRows([]map[Column]string{
		{ColTaskCounter: "1", ColTaskType: "Reload", ColTaskName: "T1", ColTaskID: "1",
			ColTaskEnabled: "1", ColTaskTimeout: "60", ColTaskRetries: "0", ColAppID: "app-guid-1"},
		{ColTaskCounter: "2", ColTaskType: "Reload", ColTaskName: "T2", ColTaskID: "2",
			ColTaskEnabled: "1", ColTaskTimeout: "60", ColTaskRetries: "0", ColAppID: "app-guid-1"},
	})
	resolver := mustResolver(t, rows[0])
	records, err := ParseTasks(rows, resolver, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "T1", records[0].Name)
}

func TestParseTasks_BadBoolIsRejected(t *testing.T) {
	rows := buildRows([]map[Column]string{
		{ColTaskCounter: "1", ColTaskType: "Reload", ColTaskName: "T1", ColTaskID: "1",
			ColTaskEnabled: "maybe", ColTaskTimeout: "60", ColTaskRetries: "0", ColAppID: "app-guid-1"},
	})
	resolver := mustResolver(t, rows[0])
	_, err := ParseTasks(rows, resolver, 0)
	assert.Error(t, err)
}

func TestParseTasks_CompositeEventWithZeroRulesRejected(t *testing.T) {
	rows := buildRows([]map[Column]string{
		{ColTaskCounter: "1", ColTaskType: "Reload", ColTaskName: "T1", ColTaskID: "1",
			ColTaskEnabled: "1", ColTaskTimeout: "60", ColTaskRetries: "0", ColAppID: "app-guid-1",
			ColEventCounter: "1", ColEventType: "Composite", ColEventName: "dep", ColEventEnabled: "1"},
	})
	resolver := mustResolver(t, rows[0])
	_, err := ParseTasks(rows, resolver, 0)
	assert.Error(t, err)
}

func TestParseTasks_RowOrderWithinGroupDoesNotMatter(t *testing.T) {
	rowA := buildRows([]map[Column]string{
		{ColTaskCounter: "1", ColTaskType: "Reload", ColTaskName: "T1", ColTaskID: "1",
			ColTaskEnabled: "1", ColTaskTimeout: "60", ColTaskRetries: "0", ColAppID: "app-guid-1",
			ColEventCounter: "1", ColEventType: "Schema", ColEventName: "s1", ColEventEnabled: "1", ColSchemaIncrementOption: "daily"},
		{ColTaskCounter: "1", ColTaskType: "Reload", ColTaskName: "T1", ColTaskID: "1",
			ColTaskEnabled: "1", ColTaskTimeout: "60", ColTaskRetries: "0", ColAppID: "app-guid-1",
			ColEventCounter: "2", ColEventType: "Schema", ColEventName: "s2", ColEventEnabled: "1", ColSchemaIncrementOption: "hourly"},
	})
	rowB := buildRows([]map[Column]string{
		{ColTaskCounter: "1", ColTaskType: "Reload", ColTaskName: "T1", ColTaskID: "1",
			ColTaskEnabled: "1", ColTaskTimeout: "60", ColTaskRetries: "0", ColAppID: "app-guid-1",
			ColEventCounter: "2", ColEventType: "Schema", ColEventName: "s2", ColEventEnabled: "1", ColSchemaIncrementOption: "hourly"},
		{ColTaskCounter: "1", ColTaskType: "Reload", ColTaskName: "T1", ColTaskID: "1",
			ColTaskEnabled: "1", ColTaskTimeout: "60", ColTaskRetries: "0", ColAppID: "app-guid-1",
			ColEventCounter: "1", ColEventType: "Schema", ColEventName: "s1", ColEventEnabled: "1", ColSchemaIncrementOption: "daily"},
	})

	recA, err := ParseTasks(rowA, mustResolver(t, rowA[0]), 0)
	require.NoError(t, err)
	recB, err := ParseTasks(rowB, mustResolver(t, rowB[0]), 0)
	require.NoError(t, err)

	require.Len(t, recA[0].ScheduleEvents, 2)
	require.Len(t, recB[0].ScheduleEvents, 2)
	namesA := []string{recA[0].ScheduleEvents[0].Name, recA[0].ScheduleEvents[1].Name}
	namesB := []string{recB[0].ScheduleEvents[0].Name, recB[0].ScheduleEvents[1].Name}
	assert.ElementsMatch(t, namesA, namesB)
}

func TestReadDelimited_QuotedFieldWithEmbeddedDelimiter(t *testing.T) {
	csvText := "Task counter,Task name\n1,\"Nightly, full\"\n"
	rows, err := ReadDelimited(strings.NewReader(csvText))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Nightly, full", rows[1][1])
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList("a / b / c"))
	assert.Nil(t, splitList(""))
}

func TestSplitCustomProperties(t *testing.T) {
	props, err := splitCustomProperties(1, ColCustomProperties, "env=prod / tier=gold")
	require.NoError(t, err)
	assert.Equal(t, "prod", props["env"])
	assert.Equal(t, "gold", props["tier"])
}

func TestSplitCustomProperties_MalformedEntry(t *testing.T) {
	_, err := splitCustomProperties(1, ColCustomProperties, "env")
	assert.Error(t, err)
}
