package parse

import (
	"github.com/ctrl-q/ctrlq/taskgraph"
)

// ParseTasks groups and coerces rows (header at index 0) into TaskRecords
// per §4.4's grouping keys (taskCounter, eventCounter, ruleCounter).
// limitImportCount, when > 0, retains only rows whose taskCounter is <= N
// (§4.4, "Import limiting").
func ParseTasks(rows [][]string, resolver *ColumnResolver, limitImportCount int) ([]TaskRecord, error) {
	if err := resolver.RequireColumns(mandatoryTaskColumns); err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, nil
	}
	body := rows[1:]

	// groupOrder preserves first-seen order so task output is stable and
	// matches the parser property in §8 ("order of rows within a group
	// does not change the parsed task").
	var groupOrder []int
	groups := map[int][]int{} // taskCounter -> row indices, in source order

	for i, row := range body {
		tc, err := coerceRequiredInt(i+2, ColTaskCounter, resolver.Get(row, ColTaskCounter))
		if err != nil {
			return nil, err
		}
		if limitImportCount > 0 && tc > limitImportCount {
			continue
		}
		if _, ok := groups[tc]; !ok {
			groupOrder = append(groupOrder, tc)
		}
		groups[tc] = append(groups[tc], i)
	}

	records := make([]TaskRecord, 0, len(groupOrder))
	for _, tc := range groupOrder {
		rec, err := parseTaskGroup(body, groups[tc], resolver, tc)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseTaskGroup(body [][]string, rowIdx []int, resolver *ColumnResolver, taskCounter int) (TaskRecord, error) {
	head := body[rowIdx[0]]
	lineNo := rowIdx[0] + 2

	kind, err := coerceTaskKind(lineNo, resolver.Get(head, ColTaskType))
	if err != nil {
		return TaskRecord{}, err
	}
	enabled, err := coerceBool01(lineNo, ColTaskEnabled, resolver.Get(head, ColTaskEnabled))
	if err != nil {
		return TaskRecord{}, err
	}
	timeout, err := coerceRequiredInt(lineNo, ColTaskTimeout, resolver.Get(head, ColTaskTimeout))
	if err != nil {
		return TaskRecord{}, err
	}
	retries, err := coerceInt(lineNo, ColTaskRetries, resolver.Get(head, ColTaskRetries))
	if err != nil {
		return TaskRecord{}, err
	}
	partial, err := coerceBool01(lineNo, ColPartialReload, resolver.Get(head, ColPartialReload))
	if err != nil {
		return TaskRecord{}, err
	}
	manual, err := coerceBool01(lineNo, ColManuallyTriggered, resolver.Get(head, ColManuallyTriggered))
	if err != nil {
		return TaskRecord{}, err
	}
	customProps, err := splitCustomProperties(lineNo, ColCustomProperties, resolver.Get(head, ColCustomProperties))
	if err != nil {
		return TaskRecord{}, err
	}

	appRef := resolver.Get(head, ColAppID)
	if kind == taskgraph.ExternalProgram && appRef != "" {
		return TaskRecord{}, diag(lineNo, ColAppID, "App id is only meaningful for Reload tasks")
	}

	rec := TaskRecord{
		TaskCounter:          taskCounter,
		Kind:                 kind,
		Name:                 resolver.Get(head, ColTaskName),
		TaskID:               resolver.Get(head, ColTaskID),
		Enabled:              enabled,
		TimeoutMinutes:       timeout,
		Retries:              retries,
		AppRef:               appRef,
		IsPartialReload:      partial,
		IsManuallyTriggered:  manual,
		Tags:                 splitList(resolver.Get(head, ColTags)),
		CustomPropertyValues: customProps,
	}

	eventOrder, eventGroups := groupByCounter(body, rowIdx, resolver, ColEventCounter)
	for _, ec := range eventOrder {
		eventRows := eventGroups[ec]
		eventHead := body[eventRows[0]]
		eventLine := eventRows[0] + 2

		eventType, err := coerceEventType(eventLine, resolver.Get(eventHead, ColEventType))
		if err != nil {
			return TaskRecord{}, err
		}
		eventEnabled, err := coerceBool01(eventLine, ColEventEnabled, resolver.Get(eventHead, ColEventEnabled))
		if err != nil {
			return TaskRecord{}, err
		}

		switch eventType {
		case "Schema":
			se, err := parseScheduleEvent(eventHead, eventLine, resolver, ec, eventEnabled)
			if err != nil {
				return TaskRecord{}, err
			}
			rec.ScheduleEvents = append(rec.ScheduleEvents, se)
		case "Composite":
			ce, err := parseCompositeEvent(body, eventRows, resolver, ec, eventEnabled)
			if err != nil {
				return TaskRecord{}, err
			}
			rec.CompositeEvents = append(rec.CompositeEvents, ce)
		}
	}

	return rec, nil
}

func parseScheduleEvent(row []string, lineNo int, resolver *ColumnResolver, eventCounter int, enabled bool) (ScheduleEventRecord, error) {
	incOpt, err := coerceIncrementOption(lineNo, resolver.Get(row, ColSchemaIncrementOption))
	if err != nil {
		return ScheduleEventRecord{}, err
	}
	dst, err := coerceDaylightSaving(lineNo, resolver.Get(row, ColDaylightSavingTime))
	if err != nil {
		return ScheduleEventRecord{}, err
	}
	return ScheduleEventRecord{
		EventCounter:         eventCounter,
		Name:                 resolver.Get(row, ColEventName),
		Enabled:              enabled,
		IncrementOption:      incOpt,
		IncrementDescription: resolver.Get(row, ColSchemaIncrementDescription),
		DaylightSaving:       dst,
		Start:                resolver.Get(row, ColSchemaStart),
		Expiration:           resolver.Get(row, ColSchemaExpiration),
		FilterDescription:    resolver.Get(row, ColSchemaFilterDescription),
		TimeZone:             resolver.Get(row, ColSchemaTimeZone),
	}, nil
}

func parseCompositeEvent(body [][]string, eventRows []int, resolver *ColumnResolver, eventCounter int, enabled bool) (CompositeEventRecord, error) {
	head := body[eventRows[0]]
	lineNo := eventRows[0] + 2

	seconds, err := coerceInt(lineNo, ColTimeConstraintSeconds, resolver.Get(head, ColTimeConstraintSeconds))
	if err != nil {
		return CompositeEventRecord{}, err
	}
	minutes, err := coerceInt(lineNo, ColTimeConstraintMinutes, resolver.Get(head, ColTimeConstraintMinutes))
	if err != nil {
		return CompositeEventRecord{}, err
	}
	hours, err := coerceInt(lineNo, ColTimeConstraintHours, resolver.Get(head, ColTimeConstraintHours))
	if err != nil {
		return CompositeEventRecord{}, err
	}
	days, err := coerceInt(lineNo, ColTimeConstraintDays, resolver.Get(head, ColTimeConstraintDays))
	if err != nil {
		return CompositeEventRecord{}, err
	}

	ce := CompositeEventRecord{
		EventCounter: eventCounter,
		Name:         resolver.Get(head, ColEventName),
		Enabled:      enabled,
		TimeConstraint: taskgraph.TimeConstraint{
			Seconds: seconds, Minutes: minutes, Hours: hours, Days: days,
		},
	}

	ruleOrder, ruleGroups := groupByCounter(body, eventRows, resolver, ColRuleCounter)
	for _, rc := range ruleOrder {
		ruleRowIdx := ruleGroups[rc][0]
		ruleRow := body[ruleRowIdx]
		ruleLine := ruleRowIdx + 2

		state, err := coerceRuleState(ruleLine, resolver.Get(ruleRow, ColRuleState))
		if err != nil {
			return CompositeEventRecord{}, err
		}
		ce.Rules = append(ce.Rules, CompositeRuleRecord{
			RuleCounter: rc,
			RuleState:   state,
			TaskName:    resolver.Get(ruleRow, ColRuleTaskName),
			TaskID:      resolver.Get(ruleRow, ColRuleTaskID),
		})
	}

	if len(ce.Rules) == 0 {
		return CompositeEventRecord{}, diag(lineNo, ColRuleCounter, "composite event must declare at least one rule")
	}
	return ce, nil
}

// groupByCounter groups the rows in rowIdx (indices into body) by the
// value of counterCol, preserving first-seen order.
func groupByCounter(body [][]string, rowIdx []int, resolver *ColumnResolver, counterCol Column) ([]int, map[int][]int) {
	var order []int
	groups := map[int][]int{}
	for _, i := range rowIdx {
		raw := resolver.Get(body[i], counterCol)
		if raw == "" {
			continue
		}
		n, err := coerceInt(i+2, counterCol, raw)
		if err != nil {
			continue // non-numeric counter on an unrelated row; ignore rather than fail the whole task
		}
		if _, ok := groups[n]; !ok {
			order = append(order, n)
		}
		groups[n] = append(groups[n], i)
	}
	return order, groups
}

// ParseApps coerces each row into one AppRecord (§6, "Tabular grammar
// — app import"); rows are not grouped by App counter.
func ParseApps(rows [][]string, resolver *ColumnResolver) ([]AppRecord, error) {
	if err := resolver.RequireColumns(mandatoryAppColumns); err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, nil
	}
	body := rows[1:]

	records := make([]AppRecord, 0, len(body))
	for i, row := range body {
		lineNo := i + 2
		counter, err := coerceRequiredInt(lineNo, ColAppCounter, resolver.Get(row, ColAppCounter))
		if err != nil {
			return nil, err
		}
		exclude, err := coerceBool01(lineNo, ColExcludeDataConnections, resolver.Get(row, ColExcludeDataConnections))
		if err != nil {
			return nil, err
		}
		props, err := splitCustomProperties(lineNo, ColAppCustomProperties, resolver.Get(row, ColAppCustomProperties))
		if err != nil {
			return nil, err
		}
		records = append(records, AppRecord{
			AppCounter:             counter,
			Name:                   resolver.Get(row, ColAppName),
			QVFDirectory:           resolver.Get(row, ColQVFDirectory),
			QVFName:                resolver.Get(row, ColQVFName),
			ExcludeDataConnections: exclude,
			Tags:                   splitList(resolver.Get(row, ColAppTags)),
			CustomPropertyValues:   props,
			OwnerUserDirectory:     resolver.Get(row, ColOwnerUserDirectory),
			OwnerUserID:            resolver.Get(row, ColOwnerUserID),
			PublishToStream:        resolver.Get(row, ColPublishToStream),
		})
	}
	return records, nil
}
