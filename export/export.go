// Package export implements the exporter (C8): projecting the task graph
// (C3) into the tabular row stream of §6, grammar-compatible with the
// import parser (C4) so export output round-trips.
package export

import (
	"strconv"
	"strings"

	"github.com/ctrl-q/ctrlq/parse"
	"github.com/ctrl-q/ctrlq/taskgraph"
)

// Header is the column order export rows use; it matches the parser's
// mandatory + optional column set so exported files re-import unchanged.
var Header = []string{
	"Task counter", "Task type", "Task name", "Task id", "Task enabled", "Task timeout", "Task retries",
	"App id", "Partial reload", "Manually triggered", "Tags", "Custom properties",
	"Event counter", "Event type", "Event name", "Event enabled",
	"Schema increment option", "Schema increment description", "Daylight savings time",
	"Schema start", "Schema expiration", "Schema filter description", "Schema time zone",
	"Time constraint seconds", "Time constraint minutes", "Time constraint hours", "Time constraint days",
	"Rule counter", "Rule state", "Rule task name", "Rule task id",
}

// Rows projects g into the tabular row stream of §6. Task counters are
// assigned in task-iteration order (stable per export, not per run, since
// Graph.Tasks has no ordering guarantee beyond the caller sorting
// upstream); GUIDs are carried verbatim in `Task id` so re-import can
// re-derive local counters only when the caller chooses to renumber them.
func Rows(g *taskgraph.Graph) [][]string {
	rows := [][]string{Header}

	taskCounter := 0
	g.Tasks(func(t taskgraph.Task) bool {
		taskCounter++
		rows = append(rows, taskRow(g, t, taskCounter)...)
		return true
	})
	return rows
}

func taskRow(g *taskgraph.Graph, t taskgraph.Task, taskCounter int) [][]string {
	base := make([]string, len(Header))
	base[0] = itoa(taskCounter)
	base[1] = taskKindName(t.Kind)
	base[2] = t.Name
	base[3] = t.ID
	base[4] = bool01(t.Enabled)
	base[5] = itoa(t.SessionTimeoutMinutes)
	base[6] = itoa(t.MaxRetries)
	base[7] = t.AppID
	base[8] = bool01(t.IsPartialReload)
	base[9] = bool01(t.IsManuallyTriggered)
	base[10] = joinList(t.Tags)
	base[11] = joinCustomProperties(t.CustomPropertyValues)

	rows := [][]string{base}

	eventCounter := 0
	for _, st := range t.ScheduleTriggers {
		eventCounter++
		row := append([]string(nil), base...)
		clearGroupOnlyFields(row)
		row[12] = itoa(eventCounter)
		row[13] = "Schema"
		row[14] = st.Name
		row[15] = bool01(st.Enabled)
		row[16] = incrementOptionName(st.IncrementOption)
		row[17] = incrementDescription(st)
		row[18] = daylightSavingName(st.DaylightSaving)
		row[19] = st.StartUTC.Format("2006-01-02T15:04:05.000Z")
		row[20] = st.ExpirationUTC.Format("2006-01-02T15:04:05.000Z")
		row[21] = st.FilterDescription
		row[22] = st.TimeZone
		rows = append(rows, row)
	}

	for _, eventID := range t.CompositeEventIDs {
		ce, ok := g.CompositeEvent(eventID)
		if !ok {
			continue
		}
		eventCounter++
		rows = append(rows, compositeEventRows(g, base, ce, eventCounter)...)
	}

	return rows
}

// compositeEventRows emits one row per rule of ce (every rule's row
// repeats the event-level fields), mirroring the source grammar's
// "rules nest under their owning event" convention (§4.4).
func compositeEventRows(g *taskgraph.Graph, base []string, ce taskgraph.CompositeEvent, eventCounter int) [][]string {
	var rows [][]string
	ruleCounter := 0
	for _, rule := range ce.Rules {
		ruleCounter++
		row := append([]string(nil), base...)
		clearGroupOnlyFields(row)
		row[12] = itoa(eventCounter)
		row[13] = "Composite"
		row[14] = ce.Name
		row[15] = bool01(ce.Enabled)
		row[23] = itoa(ce.TimeConstraint.Seconds)
		row[24] = itoa(ce.TimeConstraint.Minutes)
		row[25] = itoa(ce.TimeConstraint.Hours)
		row[26] = itoa(ce.TimeConstraint.Days)
		row[27] = itoa(ruleCounter)
		row[28] = ruleStateName(rule.RuleState)
		row[30] = rule.UpstreamRef
		if upstream, ok := g.Task(rule.UpstreamRef); ok {
			row[29] = upstream.Name
		}
		rows = append(rows, row)
	}
	return rows
}

func ruleStateName(s taskgraph.RuleState) string {
	if s == taskgraph.TaskFail {
		return "TaskFail"
	}
	return "TaskSuccessful"
}

// clearGroupOnlyFields blanks the task-level columns on trigger/rule rows
// so only the first row of a task group repeats the full task payload,
// matching the source grammar's "subsequent rows ... describe triggers
// and rules" convention (§4.4).
func clearGroupOnlyFields(row []string) {
	for i := 1; i < 12; i++ {
		row[i] = ""
	}
}

func taskKindName(k taskgraph.TaskKind) string {
	if k == taskgraph.ExternalProgram {
		return "External program"
	}
	return "Reload"
}

func incrementOptionName(o taskgraph.IncrementOption) string {
	switch o {
	case taskgraph.Once:
		return "once"
	case taskgraph.Hourly:
		return "hourly"
	case taskgraph.Daily:
		return "daily"
	case taskgraph.Weekly:
		return "weekly"
	case taskgraph.Monthly:
		return "monthly"
	default:
		return "custom"
	}
}

func daylightSavingName(m taskgraph.DaylightSavingMode) string {
	switch m {
	case taskgraph.PermanentStandard:
		return "permanentStandard"
	case taskgraph.PermanentDaylight:
		return "permanentDaylight"
	default:
		return "observe"
	}
}

func incrementDescription(st taskgraph.ScheduleTrigger) string {
	return strings.Join([]string{
		itoa(st.IncrementMinutes), itoa(st.IncrementHours), itoa(st.IncrementDays), itoa(st.IncrementWeeks),
	}, " ")
}

func bool01(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func joinList(items []string) string {
	return strings.Join(items, " / ")
}

func joinCustomProperties(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, 0, len(values))
	for k, v := range values {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " / ")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// ParseOptions returns the ColumnResolver-compatible positional order
// matching Header, for callers that want to re-import exported output
// ByPosition rather than ByName.
func ParseOptions() []parse.Column {
	return []parse.Column{
		parse.ColTaskCounter, parse.ColTaskType, parse.ColTaskName, parse.ColTaskID, parse.ColTaskEnabled, parse.ColTaskTimeout, parse.ColTaskRetries,
		parse.ColAppID, parse.ColPartialReload, parse.ColManuallyTriggered, parse.ColTags, parse.ColCustomProperties,
		parse.ColEventCounter, parse.ColEventType, parse.ColEventName, parse.ColEventEnabled,
		parse.ColSchemaIncrementOption, parse.ColSchemaIncrementDescription, parse.ColDaylightSavingTime,
		parse.ColSchemaStart, parse.ColSchemaExpiration, parse.ColSchemaFilterDescription, parse.ColSchemaTimeZone,
		parse.ColTimeConstraintSeconds, parse.ColTimeConstraintMinutes, parse.ColTimeConstraintHours, parse.ColTimeConstraintDays,
		parse.ColRuleCounter, parse.ColRuleState, parse.ColRuleTaskName, parse.ColRuleTaskID,
	}
}
