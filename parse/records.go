package parse

import "github.com/ctrl-q/ctrlq/taskgraph"

// TaskRecord is one parsed task group: the task row plus every trigger and
// rule row sharing its taskCounter (§4.4, "Row grouping").
type TaskRecord struct {
	TaskCounter int
	Kind        taskgraph.TaskKind
	Name        string
	TaskID      string // arbitrary or a local counter referenced by rules elsewhere
	Enabled     bool
	TimeoutMinutes int
	Retries     int

	AppRef              string // GUID or "newapp-<n>"; reload only
	IsPartialReload     bool
	IsManuallyTriggered bool

	Tags                 []string
	CustomPropertyValues map[string]string

	// ExternalProgram-only. ParseTasks does not fill them: no source column
	// maps to Path or Parameters. (An App id on an external-program row is
	// a validation error caught by the per-kind check.)
	Path       string
	Parameters string

	ScheduleEvents   []ScheduleEventRecord
	CompositeEvents  []CompositeEventRecord
}

// ScheduleEventRecord is one parsed schema-trigger row.
type ScheduleEventRecord struct {
	EventCounter         int
	Name                 string
	Enabled              bool
	IncrementOption      taskgraph.IncrementOption
	IncrementDescription string
	DaylightSaving       taskgraph.DaylightSavingMode
	Start                string
	Expiration           string
	FilterDescription    string
	TimeZone             string
}

// CompositeEventRecord is one parsed dependency-trigger group: the event
// row plus every rule row sharing its eventCounter.
type CompositeEventRecord struct {
	EventCounter   int
	Name           string
	Enabled        bool
	TimeConstraint taskgraph.TimeConstraint
	Rules          []CompositeRuleRecord
}

// CompositeRuleRecord is one parsed rule row.
type CompositeRuleRecord struct {
	RuleCounter int
	RuleState   taskgraph.RuleState
	TaskName    string
	TaskID      string // resolved against localToGuid or an existing GUID by C5
}

// AppRecord is one parsed app-import row (§6, "Tabular grammar — app
// import").
type AppRecord struct {
	AppCounter            int
	Name                  string
	QVFDirectory          string
	QVFName               string
	ExcludeDataConnections bool
	Tags                  []string
	CustomPropertyValues  map[string]string
	OwnerUserDirectory    string
	OwnerUserID           string
	PublishToStream       string
}

// Result is the full parsed source, after row grouping and limiting.
type Result struct {
	Tasks []TaskRecord
	Apps  []AppRecord
}
