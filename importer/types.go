// Package importer implements the two-phase importer (C6): the central
// algorithm that turns a parsed source (parse.Result) into QSEoW objects,
// resolving symbolic references along the way (resolve.Resolver) and
// feeding the result back into the in-memory task graph (taskgraph.Graph).
package importer

import "github.com/ctrl-q/ctrlq/taskgraph"

// Options configures one importer run (§6, task-import flags).
type Options struct {
	DryRun           bool
	SleepAppUploadMs int // task-import passes 1000 by default; 0 disables the throttle
}

// TaskOutcome is the per-task result of Phase A. Errors in Phase A do not
// roll back previously created tasks (§4.6): each task is independent.
type TaskOutcome struct {
	TaskCounter int
	TaskID      string // the source's local counter/Task id column
	GUID        string // empty on failure
	Payload     interface{} // the payload that was (or would have been, in dry-run) posted
	Err         error
}

// EventOutcome is the per-composite-event result of Phase B.
type EventOutcome struct {
	TaskCounter  int
	EventCounter int
	GUID         string
	Payload      interface{}
	Err          error
}

// AppOutcome is the per-app result of Phase 0.
type AppOutcome struct {
	AppCounter int
	GUID       string
	Err        error
	Warnings   []string
}

// Result is the full outcome of one importer run.
type Result struct {
	Apps   []AppOutcome
	Tasks  []TaskOutcome
	Events []EventOutcome

	// LocalToGUID is the session-local table mapping each task's source
	// `Task id` to its newly created GUID (§4.6, Phase A step 3). Only
	// entries for tasks that succeeded are present.
	LocalToGUID map[string]string

	// LocalToKind parallels LocalToGUID, recording each local task's kind
	// so Phase B can tell a rule's upstream reference apart: a reload task
	// ref belongs in ReloadTaskID, an external-program one in
	// ExternalProgramTaskID.
	LocalToKind map[string]taskgraph.TaskKind
}

// Succeeded reports whether every app, task, and event outcome was error-free.
// A partial run is still reported with exit code non-zero (§6).
func (r *Result) Succeeded() bool {
	for _, t := range r.Tasks {
		if t.Err != nil {
			return false
		}
	}
	for _, e := range r.Events {
		if e.Err != nil {
			return false
		}
	}
	for _, a := range r.Apps {
		if a.Err != nil {
			return false
		}
	}
	return true
}

// MergeInto adds every successfully created task and composite event into
// g, so the analyzer/exporter can operate over the post-import graph.
func (r *Result) MergeInto(g *taskgraph.Graph, tasksByCounter map[int]taskgraph.Task, eventsByCounter map[int]taskgraph.CompositeEvent) {
	for _, t := range r.Tasks {
		if t.Err != nil {
			continue
		}
		if task, ok := tasksByCounter[t.TaskCounter]; ok {
			task.ID = t.GUID
			g.AddTask(task)
		}
	}
	for _, e := range r.Events {
		if e.Err != nil {
			continue
		}
		if evt, ok := eventsByCounter[e.EventCounter]; ok {
			evt.ID = e.GUID
			g.AddCompositeEvent(evt)
		}
	}
}
