package importer

import (
	"time"

	"github.com/ctrl-q/ctrlq/parse"
	"github.com/ctrl-q/ctrlq/qrs"
	"github.com/ctrl-q/ctrlq/taskgraph"
)

// timestampLayout is the wire format QSEoW uses for schema-event
// timestamps, matching ingest's parseTimestampOrSentinel on the read side.
const timestampLayout = "2006-01-02T15:04:05.000Z"

func scheduleEventToQRS(se parse.ScheduleEventRecord) qrs.SchemaEvent {
	return qrs.SchemaEvent{
		Name:                 se.Name,
		Enabled:              se.Enabled,
		IncrementOption:      incrementOptionName(se.IncrementOption),
		IncrementDescription: se.IncrementDescription,
		DaylightSavingTime:   daylightSavingName(se.DaylightSaving),
		StartDate:            normalizeTimestamp(se.Start, taskgraph.NeverStarted),
		ExpirationDate:       normalizeTimestamp(se.Expiration, taskgraph.NeverExpires),
		FilterDescription:    se.FilterDescription,
		TimeZone:             se.TimeZone,
	}
}

// normalizeTimestamp passes an explicit timestamp through verbatim and
// defaults an empty one to sentinel (§6, "Sentinel values" — 1753-01-01
// means never-started, 9999-01-01 means never-expires).
func normalizeTimestamp(raw string, sentinel time.Time) string {
	if raw == "" {
		return sentinel.Format(timestampLayout)
	}
	return raw
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
