// Package parse implements the import source grammar (§4.4): delimited
// text or spreadsheet rows, grouped by taskCounter/eventCounter/ruleCounter
// into the task/trigger/rule records the resolver and importer consume.
package parse

import "github.com/ctrl-q/ctrlq/errors"

// Column is the typed enum of logical columns the source note in §9
// ("Dynamic column mapping") asks for, replacing stringly-typed header
// access in the hot path.
type Column int

const (
	ColTaskCounter Column = iota
	ColTaskType
	ColTaskName
	ColTaskID
	ColTaskEnabled
	ColTaskTimeout
	ColTaskRetries
	ColAppID
	ColPartialReload
	ColManuallyTriggered
	ColTags
	ColCustomProperties

	ColEventCounter
	ColEventType
	ColEventName
	ColEventEnabled

	ColSchemaIncrementOption
	ColSchemaIncrementDescription
	ColDaylightSavingTime
	ColSchemaStart
	ColSchemaExpiration
	ColSchemaFilterDescription
	ColSchemaTimeZone

	ColTimeConstraintSeconds
	ColTimeConstraintMinutes
	ColTimeConstraintHours
	ColTimeConstraintDays

	ColRuleCounter
	ColRuleState
	ColRuleTaskName
	ColRuleTaskID

	// App-import columns (§6, "Tabular grammar — app import").
	ColAppCounter
	ColAppName
	ColQVFDirectory
	ColQVFName
	ColExcludeDataConnections
	ColAppTags
	ColAppCustomProperties
	ColOwnerUserDirectory
	ColOwnerUserID
	ColPublishToStream
)

// headerNames is the canonical column name for each Column, used by
// name-based resolution and in diagnostics.
var headerNames = map[Column]string{
	ColTaskCounter:                "Task counter",
	ColTaskType:                   "Task type",
	ColTaskName:                   "Task name",
	ColTaskID:                     "Task id",
	ColTaskEnabled:                "Task enabled",
	ColTaskTimeout:                "Task timeout",
	ColTaskRetries:                "Task retries",
	ColAppID:                      "App id",
	ColPartialReload:              "Partial reload",
	ColManuallyTriggered:          "Manually triggered",
	ColTags:                       "Tags",
	ColCustomProperties:           "Custom properties",
	ColEventCounter:               "Event counter",
	ColEventType:                  "Event type",
	ColEventName:                  "Event name",
	ColEventEnabled:               "Event enabled",
	ColSchemaIncrementOption:      "Schema increment option",
	ColSchemaIncrementDescription: "Schema increment description",
	ColDaylightSavingTime:        "Daylight savings time",
	ColSchemaStart:                "Schema start",
	ColSchemaExpiration:           "Schema expiration",
	ColSchemaFilterDescription:    "Schema filter description",
	ColSchemaTimeZone:             "Schema time zone",
	ColTimeConstraintSeconds:      "Time constraint seconds",
	ColTimeConstraintMinutes:      "Time constraint minutes",
	ColTimeConstraintHours:        "Time constraint hours",
	ColTimeConstraintDays:         "Time constraint days",
	ColRuleCounter:                "Rule counter",
	ColRuleState:                  "Rule state",
	ColRuleTaskName:               "Rule task name",
	ColRuleTaskID:                 "Rule task id",
	ColAppCounter:                 "App counter",
	ColAppName:                    "App name",
	ColQVFDirectory:               "QVF directory",
	ColQVFName:                    "QVF name",
	ColExcludeDataConnections:     "Exclude data connections",
	ColAppTags:                    "App tags",
	ColAppCustomProperties:        "App custom properties",
	ColOwnerUserDirectory:         "Owner user directory",
	ColOwnerUserID:                "Owner user id",
	ColPublishToStream:            "Publish to stream",
}

// mandatoryTaskColumns is the minimum column set for a task-import file
// (§4.4, "A minimum column set (mandatory) must be present").
var mandatoryTaskColumns = []Column{
	ColTaskCounter, ColTaskType, ColTaskName, ColTaskID,
	ColTaskEnabled, ColTaskTimeout, ColTaskRetries,
}

// mandatoryAppColumns is the minimum column set for an app-import file.
var mandatoryAppColumns = []Column{
	ColAppCounter, ColAppName, ColQVFDirectory, ColQVFName,
}

// ColRefBy selects how the header maps to logical columns.
type ColRefBy int

const (
	ByName ColRefBy = iota
	ByPosition
)

// ColumnResolver maps a source header row to column indices, per §9's
// "Dynamic column mapping" design note.
type ColumnResolver struct {
	indices map[Column]int
}

// NewColumnResolver builds a resolver from a header row. ByName matches
// headerNames case-sensitively; ByPosition assigns every column listed in
// `order` to the position it has there (used when callers address columns
// positionally rather than by header text).
func NewColumnResolver(header []string, mode ColRefBy, order []Column) (*ColumnResolver, error) {
	r := &ColumnResolver{indices: map[Column]int{}}
	switch mode {
	case ByName:
		name2col := map[string]Column{}
		for col, name := range headerNames {
			name2col[name] = col
		}
		for i, h := range header {
			if col, ok := name2col[h]; ok {
				r.indices[col] = i
			}
		}
	case ByPosition:
		if len(order) > len(header) {
			return nil, errors.Newf("positional column mapping declares %d columns but header has only %d", len(order), len(header))
		}
		for i, col := range order {
			r.indices[col] = i
		}
	default:
		return nil, errors.Newf("unknown column reference mode %d", mode)
	}
	return r, nil
}

// Index returns the column's position in the row, or -1 if absent (an
// optional column the source omitted).
func (r *ColumnResolver) Index(col Column) int {
	if i, ok := r.indices[col]; ok {
		return i
	}
	return -1
}

// RequireColumns validates that every column in want is present, naming
// the first missing one in the error per §7's diagnostic requirement.
func (r *ColumnResolver) RequireColumns(want []Column) error {
	for _, col := range want {
		if _, ok := r.indices[col]; !ok {
			return errors.Newf("missing mandatory column %q", headerNames[col])
		}
	}
	return nil
}

// Get reads col from row, returning "" for an absent/optional column.
func (r *ColumnResolver) Get(row []string, col Column) string {
	i := r.Index(col)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
