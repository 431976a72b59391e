// Package resolve implements the reference resolver (C5): turning the
// symbolic references a parsed source carries (tag names, custom-property
// name=value pairs, app refs, rule task refs) into the concrete
// identifiers the importer needs.
package resolve

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ctrl-q/ctrlq/errors"
	"github.com/ctrl-q/ctrlq/logger"
	"github.com/ctrl-q/ctrlq/qrs"
	"github.com/ctrl-q/ctrlq/taskgraph"
)

// Resolver resolves symbolic references against the tag/custom-property
// caches fetched once per run and the task graph built from the
// Repository's current state.
type Resolver struct {
	qr  *qrs.Client
	kg  *taskgraph.Graph
	log *zap.SugaredLogger

	tagsByName  map[string]qrs.Tag
	propsByName map[string]qrs.CustomProperty

	// localAppGUIDs maps "App counter -> newly uploaded app GUID",
	// populated by C6's Phase 0 before any reference resolves it.
	localAppGUIDs map[int]string

	appExistenceCache map[string]bool
}

// New builds a Resolver. knownTasks is the graph of tasks already present
// in QSEoW at the start of the run (§4.5, "Rule task references").
func New(qr *qrs.Client, knownTasks *taskgraph.Graph, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = logger.ComponentLogger("resolve")
	}
	return &Resolver{
		qr:                qr,
		kg:                knownTasks,
		log:               log,
		localAppGUIDs:     map[int]string{},
		appExistenceCache: map[string]bool{},
	}
}

// Warm populates the tag and custom-property caches (§4.2, "cached per
// run"). Must be called once before any Resolve* method.
func (r *Resolver) Warm(ctx context.Context) error {
	tags, err := r.qr.ListTags(ctx)
	if err != nil {
		return errors.Wrap(err, "warming tag cache")
	}
	r.tagsByName = make(map[string]qrs.Tag, len(tags))
	for _, t := range tags {
		r.tagsByName[t.Name] = t
	}

	props, err := r.qr.ListCustomProperties(ctx)
	if err != nil {
		return errors.Wrap(err, "warming custom-property cache")
	}
	r.propsByName = make(map[string]qrs.CustomProperty, len(props))
	for _, p := range props {
		r.propsByName[p.Name] = p
	}
	return nil
}

// ResolveTag matches tagName case-sensitively against the tag cache.
// Unknown tags are an error; creating tags is out of scope (§4.5).
func (r *Resolver) ResolveTag(tagName string) (qrs.Tag, error) {
	tag, ok := r.tagsByName[tagName]
	if !ok {
		return qrs.Tag{}, errors.Newf("unknown tag %q", tagName)
	}
	return tag, nil
}

// ResolveCustomProperty validates that propertyName exists and, when the
// property declares choices, that value is one of them; a property with
// no declared choices accepts any value (§4.5).
func (r *Resolver) ResolveCustomProperty(propertyName, value string) (qrs.CustomPropertyValue, error) {
	prop, ok := r.propsByName[propertyName]
	if !ok {
		return qrs.CustomPropertyValue{}, errors.Newf("unknown custom property %q", propertyName)
	}
	if len(prop.Choices) > 0 && !containsString(prop.Choices, value) {
		return qrs.CustomPropertyValue{}, errors.Newf("value %q is not a declared choice of custom property %q", value, propertyName)
	}
	return qrs.CustomPropertyValue{
		Definition: qrs.CustomPropertyRef{ID: prop.ID, Name: prop.Name},
		Value:      value,
	}, nil
}

// RecordUploadedApp records the GUID produced by uploading App counter n,
// called by C6's Phase 0 as each app is created.
func (r *Resolver) RecordUploadedApp(appCounter int, guid string) {
	r.localAppGUIDs[appCounter] = guid
}

// ResolveAppRef resolves an appRef to a concrete GUID. A `newapp-<n>` ref
// resolves against apps uploaded earlier in the same run; anything else is
// treated as a literal GUID, existence-checked against the Repository
// (§4.5, "Apps"). Resolution is idempotent: resolving the same appRef
// twice in one run yields the same GUID (§8).
func (r *Resolver) ResolveAppRef(ctx context.Context, appRef string) (string, error) {
	if n, ok := parseNewAppRef(appRef); ok {
		guid, ok := r.localAppGUIDs[n]
		if !ok {
			return "", errors.Newf("appRef %q references app counter %d, which has not been uploaded in this run", appRef, n)
		}
		return guid, nil
	}

	if exists, cached := r.appExistenceCache[appRef]; cached {
		if !exists {
			return "", errors.Newf("app %q does not exist", appRef)
		}
		return appRef, nil
	}

	exists, err := r.qr.AppExists(ctx, appRef)
	if err != nil {
		return "", errors.Wrapf(err, "checking existence of app %q", appRef)
	}
	r.appExistenceCache[appRef] = exists
	if !exists {
		return "", errors.Newf("app %q does not exist", appRef)
	}
	return appRef, nil
}

func parseNewAppRef(ref string) (int, bool) {
	const prefix = "newapp-"
	if !strings.HasPrefix(ref, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(ref[len(prefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}

// StreamResolution is the outcome of resolving a stream reference: either
// a concrete stream, or a warning that cancels the publish step for this
// app only (§4.5, "Streams").
type StreamResolution struct {
	Stream  *qrs.Stream
	Warning string
}

// ResolveStream resolves ref (a GUID or, failing that, a case-sensitive
// name) against the Repository. Non-existence is reported as a warning,
// never an error: it only cancels the publish-to-stream step for the
// affected app.
func (r *Resolver) ResolveStream(ctx context.Context, ref string) StreamResolution {
	if stream, err := r.qr.GetStreamByID(ctx, ref); err == nil {
		return StreamResolution{Stream: stream}
	}
	stream, err := r.qr.GetStreamByName(ctx, ref)
	if err != nil {
		return StreamResolution{Warning: "stream " + strconv.Quote(ref) + " not found; skipping publish"}
	}
	return StreamResolution{Stream: stream}
}

// TaskRefResolution is the outcome of resolving a composite rule's
// upstream task reference.
type TaskRefResolution struct {
	GUID    string
	Kind    taskgraph.TaskKind // which of ReloadTaskID/ExternalProgramTaskID the caller must populate
	IsLocal bool               // true if resolved against localToGuid rather than an existing QSEoW task
}

// ResolveRuleTaskRef resolves a composite rule's upstreamRef: first
// against the known-tasks graph snapshot taken at run start, then against
// localToGuid (the not-yet-created task from the same import run, using
// localKinds for its task kind). Any other value is an error (§4.5, "Rule
// task references").
func (r *Resolver) ResolveRuleTaskRef(ref string, localToGuid map[string]string, localKinds map[string]taskgraph.TaskKind) (TaskRefResolution, error) {
	if task, ok := r.kg.Task(ref); ok {
		return TaskRefResolution{GUID: ref, Kind: task.Kind}, nil
	}
	if guid, ok := localToGuid[ref]; ok {
		return TaskRefResolution{GUID: guid, Kind: localKinds[ref], IsLocal: true}, nil
	}
	return TaskRefResolution{}, errors.Newf("rule task reference %q matches neither an existing task nor a task created earlier in this run", ref)
}

func containsString(list []string, v string) bool {
	for _, existing := range list {
		if existing == v {
			return true
		}
	}
	return false
}
