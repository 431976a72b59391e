// Package qrs is a typed wrapper over the QSEoW Repository (QRS) REST
// endpoints: tasks, triggers, tags, custom properties, streams, and apps.
// Every method decodes its response or returns a typed failure; none retain
// state beyond the per-run caches documented on Client.
package qrs

// Tag is a QRS tag resource.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CustomProperty is a QRS custom property definition, including its
// declared choice set (Resolver validates values against this).
type CustomProperty struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ValueType  string   `json:"valueType"`
	Choices    []string `json:"choiceValues"`
	ObjectTypes []string `json:"objectTypes"`
}

// Stream is a QRS stream resource (publication target).
type Stream struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SchemaEventFilterDescription mirrors QRS's seven-field scheduling window.
type SchemaEventFilterDescription struct {
	Raw string `json:"filterDescription"`
}

// SchemaEvent is a QRS schema (time-based) trigger.
type SchemaEvent struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Enabled              bool   `json:"enabled"`
	IncrementOption      string `json:"incrementOption"`
	IncrementDescription string `json:"incrementDescription"`
	DaylightSavingTime   string `json:"daylightSavingTime"`
	StartDate            string `json:"startDate"`
	ExpirationDate       string `json:"expirationDate"`
	FilterDescription    string `json:"schemaFilterDescription"`
	TimeZone             string `json:"timeZone"`
	ReloadTaskID         string `json:"reloadTaskId,omitempty"`
	ExternalProgramTaskID string `json:"externalProgramTaskId,omitempty"`
}

// CompositeRuleRef is an edge reference within a composite event, as stored
// by QRS (upstream task id + required outcome).
type CompositeRuleRef struct {
	ReloadTaskID          string `json:"reloadTaskId,omitempty"`
	ExternalProgramTaskID string `json:"externalProgramTaskId,omitempty"`
	RuleState             int    `json:"ruleState"`
}

// CompositeEvent is a QRS dependency-based trigger.
type CompositeEvent struct {
	ID                    string             `json:"id"`
	Name                  string             `json:"name"`
	Enabled               bool               `json:"enabled"`
	TimeConstraint        TimeConstraint     `json:"timeConstraint"`
	Rules                 []CompositeRuleRef `json:"compositeRules"`
	ReloadTaskID          string             `json:"reloadTaskId,omitempty"`
	ExternalProgramTaskID string             `json:"externalProgramTaskId,omitempty"`
}

// TimeConstraint is the sliding window in which all upstream rules of a
// composite event must have fired.
type TimeConstraint struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// ReloadTask is a QRS reload-task resource.
type ReloadTask struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	Enabled               bool             `json:"enabled"`
	TaskSessionTimeout    int              `json:"taskSessionTimeout"`
	MaxRetries            int              `json:"maxRetries"`
	AppID                 string           `json:"appId"`
	IsPartialReload       bool             `json:"isPartialReload"`
	IsManuallyTriggered   bool             `json:"isManuallyTriggered"`
	Tags                  []Tag            `json:"tags"`
	CustomProperties       []CustomPropertyValue `json:"customProperties"`
	SchemaEvents          []SchemaEvent    `json:"schemaPath,omitempty"`
}

// ExternalProgramTask is a QRS external-program-task resource.
type ExternalProgramTask struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Enabled            bool                   `json:"enabled"`
	TaskSessionTimeout int                    `json:"taskSessionTimeout"`
	MaxRetries         int                    `json:"maxRetries"`
	Path               string                 `json:"path"`
	Parameters         string                 `json:"parameters"`
	Tags               []Tag                  `json:"tags"`
	CustomProperties   []CustomPropertyValue  `json:"customProperties"`
	SchemaEvents       []SchemaEvent          `json:"schemaPath,omitempty"`
}

// CustomPropertyValue is one name=value pair attached to a resource.
type CustomPropertyValue struct {
	Definition CustomPropertyRef `json:"definition"`
	Value      string            `json:"value"`
}

// CustomPropertyRef references a CustomProperty by id/name pair, as QRS
// embeds it on resources.
type CustomPropertyRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExecutionResult is the last execution outcome of a task, used to decorate
// `--tree-details status` output.
type ExecutionResult struct {
	TaskID    string `json:"taskId"`
	Status    int    `json:"status"`
	StartTime string `json:"startTime"`
	StopTime  string `json:"stopTime"`
	Details   string `json:"scriptLogSummary,omitempty"`
}

// Filter is a QRS filter clause, passed verbatim as the `filter` query
// parameter (e.g. `name eq 'Nightly load'`).
type Filter string
