// Package taskgraph is the single source of truth for the task graph
// during one Ctrl-Q run: it normalizes records from either the Repository
// client or the import parser into one in-memory model and answers the
// root/subtree queries the renderer and importer depend on.
package taskgraph

import "time"

// TaskKind distinguishes the two task payload shapes.
type TaskKind int

const (
	Reload TaskKind = iota
	ExternalProgram
)

func (k TaskKind) String() string {
	if k == ExternalProgram {
		return "ExternalProgram"
	}
	return "Reload"
}

// RuleState is the required outcome of an upstream task for a composite
// rule to be satisfied.
type RuleState int

const (
	TaskSuccessful RuleState = iota
	TaskFail
)

func (s RuleState) String() string {
	if s == TaskFail {
		return "TaskFail"
	}
	return "TaskSuccessful"
}

// IncrementOption is a schedule trigger's recurrence unit.
type IncrementOption int

const (
	Once IncrementOption = iota
	Hourly
	Daily
	Weekly
	Monthly
	Custom
)

// DaylightSavingMode controls how a schedule trigger handles DST
// transitions.
type DaylightSavingMode int

const (
	Observe DaylightSavingMode = iota
	PermanentStandard
	PermanentDaylight
)

// NeverExpires is the sentinel expiration timestamp meaning "no
// expiration" (§3).
var NeverExpires = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// NeverStarted is the sentinel meaning "never" for start-like timestamps
// the source may leave unset (§6, "Sentinel values").
var NeverStarted = time.Date(1753, 1, 1, 0, 0, 0, 0, time.UTC)

// Task is a unit of work scheduled by QSEoW (§3).
type Task struct {
	ID                    string // GUID once resolved; a local-counter string before Phase A completes
	Kind                  TaskKind
	Name                  string
	Enabled               bool
	SessionTimeoutMinutes int
	MaxRetries            int

	// Reload-only fields.
	AppID               string
	IsPartialReload     bool
	IsManuallyTriggered bool

	// ExternalProgram-only fields.
	Path       string
	Parameters string

	Tags                 []string
	CustomPropertyValues map[string]string

	ScheduleTriggers []ScheduleTrigger
	// CompositeEventIDs lists the composite events owned by (i.e.
	// attached as the downstream of) this task.
	CompositeEventIDs []string
}

// ScheduleTrigger is a time-based fire rule attached to exactly one task
// (§3).
type ScheduleTrigger struct {
	Name                 string
	Enabled              bool
	IncrementOption      IncrementOption
	IncrementMinutes     int
	IncrementHours       int
	IncrementDays        int
	IncrementWeeks       int
	DaylightSaving       DaylightSavingMode
	StartUTC             time.Time
	ExpirationUTC        time.Time
	FilterDescription    string
	TimeZone             string
}

// TimeConstraint is the sliding window in which every dependent task of a
// composite event must have fired (§3).
type TimeConstraint struct {
	Seconds int
	Minutes int
	Hours   int
	Days    int
}

// IsZero reports whether every field of the constraint is zero, the case
// whose Repository-observed semantics is left as an open question by the
// source material (§9) — Ctrl-Q defers to whatever QSEoW itself does and
// never interprets it client-side.
func (t TimeConstraint) IsZero() bool {
	return t.Seconds == 0 && t.Minutes == 0 && t.Hours == 0 && t.Days == 0
}

// CompositeEvent is a dependency-based fire rule attached to exactly one
// downstream task (§3).
type CompositeEvent struct {
	ID             string
	Name           string
	Enabled        bool
	DownstreamTask string // task ID (GUID or local counter) this event is attached to
	TimeConstraint TimeConstraint
	Rules          []CompositeRule
}

// CompositeRule is an edge from an upstream task to a composite event
// (§3).
type CompositeRule struct {
	UpstreamRef string // task ID (GUID or local counter)
	RuleState   RuleState
}

// nodeKind distinguishes real task nodes from the tombstones the graph
// also tracks (§3, "Graph representation").
type nodeKind int

const (
	nodeTask nodeKind = iota
	nodeTombstone
)

// Edge is one derived (upstream, downstream, event, ruleState) tuple
// (§4.3).
type Edge struct {
	Upstream   string
	Downstream string
	EventID    string
	RuleState  RuleState
}

// FilterSpec restricts getRootNodesFromFilter to tasks matching any of its
// terms (union); empty slices are ignored (§4.3).
type FilterSpec struct {
	TaskIDs  []string
	TaskTags []string
	AppIDs   []string
	AppTags  []string
}
