// Package ingest builds a taskgraph.Graph from the Repository Client (C2),
// the Repository-side half of C3's "ingest raw task/trigger/event records
// from either the Repository or the parser" responsibility (spec.md §4.3).
package ingest

import (
	"context"
	"time"

	"github.com/ctrl-q/ctrlq/errors"
	"github.com/ctrl-q/ctrlq/qrs"
	"github.com/ctrl-q/ctrlq/taskgraph"
)

// timestampLayout is the wire format QSEoW uses for schema-event
// timestamps, including the sentinel values (spec.md §6).
const timestampLayout = "2006-01-02T15:04:05.000Z"

// LoadGraph fetches every reload task, external-program task, and
// composite event from the Repository and joins them into one Graph.
// Schema events are taken from each task's embedded SchemaEvents; no
// separate schema-event listing is fetched. The Graph is the starting point for task-get, task-custom-property-set, and
// the importer's rule-reference resolution against pre-existing tasks.
func LoadGraph(ctx context.Context, qr *qrs.Client) (*taskgraph.Graph, error) {
	reloadTasks, err := qr.ListReloadTasks(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "loading reload tasks")
	}
	externalTasks, err := qr.ListExternalProgramTasks(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "loading external-program tasks")
	}
	compositeEvents, err := qr.ListCompositeEvents(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading composite events")
	}

	g := taskgraph.New()
	for _, rt := range reloadTasks {
		g.AddTask(reloadTaskToGraph(rt))
	}
	for _, et := range externalTasks {
		g.AddTask(externalProgramTaskToGraph(et))
	}
	for _, ce := range compositeEvents {
		g.AddCompositeEvent(compositeEventToGraph(ce))
	}
	return g, nil
}

func reloadTaskToGraph(rt qrs.ReloadTask) taskgraph.Task {
	t := taskgraph.Task{
		ID:                    rt.ID,
		Kind:                  taskgraph.Reload,
		Name:                  rt.Name,
		Enabled:               rt.Enabled,
		SessionTimeoutMinutes: rt.TaskSessionTimeout,
		MaxRetries:            rt.MaxRetries,
		AppID:                 rt.AppID,
		IsPartialReload:       rt.IsPartialReload,
		IsManuallyTriggered:   rt.IsManuallyTriggered,
		Tags:                  tagNames(rt.Tags),
		CustomPropertyValues:  propertyValues(rt.CustomProperties),
		ScheduleTriggers:      scheduleTriggersFrom(rt.SchemaEvents),
	}
	return t
}

func externalProgramTaskToGraph(et qrs.ExternalProgramTask) taskgraph.Task {
	return taskgraph.Task{
		ID:                    et.ID,
		Kind:                  taskgraph.ExternalProgram,
		Name:                  et.Name,
		Enabled:               et.Enabled,
		SessionTimeoutMinutes: et.TaskSessionTimeout,
		MaxRetries:            et.MaxRetries,
		Path:                  et.Path,
		Parameters:            et.Parameters,
		Tags:                  tagNames(et.Tags),
		CustomPropertyValues:  propertyValues(et.CustomProperties),
		ScheduleTriggers:      scheduleTriggersFrom(et.SchemaEvents),
	}
}

func tagNames(tags []qrs.Tag) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Name
	}
	return out
}

func propertyValues(values []qrs.CustomPropertyValue) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		out[v.Definition.Name] = v.Value
	}
	return out
}

func scheduleTriggersFrom(events []qrs.SchemaEvent) []taskgraph.ScheduleTrigger {
	if len(events) == 0 {
		return nil
	}
	out := make([]taskgraph.ScheduleTrigger, len(events))
	for i, se := range events {
		out[i] = taskgraph.ScheduleTrigger{
			Name:              se.Name,
			Enabled:           se.Enabled,
			IncrementOption:   incrementOptionFromWire(se.IncrementOption),
			DaylightSaving:    daylightSavingFromWire(se.DaylightSavingTime),
			StartUTC:          parseTimestampOrSentinel(se.StartDate, taskgraph.NeverStarted),
			ExpirationUTC:     parseTimestampOrSentinel(se.ExpirationDate, taskgraph.NeverExpires),
			FilterDescription: se.FilterDescription,
			TimeZone:          se.TimeZone,
		}
	}
	return out
}

func parseTimestampOrSentinel(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return fallback
	}
	return t
}

func incrementOptionFromWire(raw string) taskgraph.IncrementOption {
	switch raw {
	case "once":
		return taskgraph.Once
	case "hourly":
		return taskgraph.Hourly
	case "daily":
		return taskgraph.Daily
	case "weekly":
		return taskgraph.Weekly
	case "monthly":
		return taskgraph.Monthly
	default:
		return taskgraph.Custom
	}
}

func daylightSavingFromWire(raw string) taskgraph.DaylightSavingMode {
	switch raw {
	case "permanentStandard":
		return taskgraph.PermanentStandard
	case "permanentDaylight":
		return taskgraph.PermanentDaylight
	default:
		return taskgraph.Observe
	}
}

func compositeEventToGraph(ce qrs.CompositeEvent) taskgraph.CompositeEvent {
	downstream := ce.ReloadTaskID
	if downstream == "" {
		downstream = ce.ExternalProgramTaskID
	}
	out := taskgraph.CompositeEvent{
		ID:             ce.ID,
		Name:           ce.Name,
		Enabled:        ce.Enabled,
		DownstreamTask: downstream,
		TimeConstraint: taskgraph.TimeConstraint{
			Seconds: ce.TimeConstraint.Seconds,
			Minutes: ce.TimeConstraint.Minutes,
			Hours:   ce.TimeConstraint.Hours,
			Days:    ce.TimeConstraint.Days,
		},
	}
	for _, rule := range ce.Rules {
		upstream := rule.ReloadTaskID
		if upstream == "" {
			upstream = rule.ExternalProgramTaskID
		}
		out.Rules = append(out.Rules, taskgraph.CompositeRule{
			UpstreamRef: upstream,
			RuleState:   taskgraph.RuleState(rule.RuleState),
		})
	}
	return out
}
