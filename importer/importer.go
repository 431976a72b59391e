package importer

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ctrl-q/ctrlq/errors"
	"github.com/ctrl-q/ctrlq/logger"
	"github.com/ctrl-q/ctrlq/parse"
	"github.com/ctrl-q/ctrlq/qrs"
	"github.com/ctrl-q/ctrlq/resolve"
	"github.com/ctrl-q/ctrlq/taskgraph"
	"github.com/ctrl-q/ctrlq/transport"
)

// Importer runs Phase 0 (app upload), Phase A (tasks + schedule triggers),
// and Phase B (composite triggers) in strict sequence (§4.6).
type Importer struct {
	qr       *qrs.Client
	resolver *resolve.Resolver
	log      *zap.SugaredLogger
	opts     Options
}

func New(qr *qrs.Client, resolver *resolve.Resolver, opts Options, log *zap.SugaredLogger) *Importer {
	if log == nil {
		log = logger.ComponentLogger("importer")
	}
	return &Importer{qr: qr, resolver: resolver, log: log, opts: opts}
}

// Run executes all applicable phases over parsed and returns every
// per-item outcome. It never returns an error for partial failures — a
// partial run is reported in Result (§4.6, §7).
func (im *Importer) Run(ctx context.Context, parsed *parse.Result) (*Result, error) {
	result := &Result{LocalToGUID: map[string]string{}, LocalToKind: map[string]taskgraph.TaskKind{}}

	if err := im.runPhase0(ctx, parsed.Apps, result); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	im.runPhaseA(ctx, parsed.Tasks, result)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	// Phase B starts only after Phase A has drained to a terminal state
	// for every task (§5, "Ordering guarantees" ii).
	im.runPhaseB(ctx, parsed.Tasks, result)

	return result, nil
}

func (im *Importer) runPhase0(ctx context.Context, apps []parse.AppRecord, result *Result) error {
	if len(apps) == 0 {
		return nil
	}

	interval := time.Duration(im.opts.SleepAppUploadMs) * time.Millisecond
	throttle := transport.NewUploadThrottle(interval)

	for i, app := range apps {
		if i > 0 {
			if err := throttle.Wait(ctx); err != nil {
				return errors.Wrap(err, "waiting for app-upload throttle")
			}
		}
		outcome := im.uploadOneApp(ctx, app)
		result.Apps = append(result.Apps, outcome)
		if outcome.Err == nil {
			im.resolver.RecordUploadedApp(app.AppCounter, outcome.GUID)
		}
	}
	return nil
}

func (im *Importer) uploadOneApp(ctx context.Context, app parse.AppRecord) AppOutcome {
	outcome := AppOutcome{AppCounter: app.AppCounter}

	if im.opts.DryRun {
		outcome.GUID = "dryrun-app-" + strconv.Itoa(app.AppCounter)
		return outcome
	}

	path := filepath.Join(app.QVFDirectory, app.QVFName)
	f, err := os.Open(path)
	if err != nil {
		outcome.Err = errors.Wrapf(err, "opening QVF %q for app counter %d", path, app.AppCounter)
		return outcome
	}
	defer f.Close()

	guid, err := im.qr.UploadApp(ctx, f, app.Name, app.ExcludeDataConnections)
	if err != nil {
		outcome.Err = errors.Wrapf(err, "uploading app %q (counter %d)", app.Name, app.AppCounter)
		return outcome
	}
	outcome.GUID = guid

	if len(app.Tags) > 0 {
		var tags []qrs.Tag
		for _, name := range app.Tags {
			tag, err := im.resolver.ResolveTag(name)
			if err != nil {
				outcome.Warnings = append(outcome.Warnings, err.Error())
				continue
			}
			tags = append(tags, tag)
		}
		if err := im.qr.UpdateAppTags(ctx, guid, tags); err != nil {
			outcome.Warnings = append(outcome.Warnings, "tagging app: "+err.Error())
		}
	}

	if len(app.CustomPropertyValues) > 0 {
		var props []qrs.CustomPropertyValue
		for name, value := range app.CustomPropertyValues {
			cp, err := im.resolver.ResolveCustomProperty(name, value)
			if err != nil {
				outcome.Warnings = append(outcome.Warnings, err.Error())
				continue
			}
			props = append(props, cp)
		}
		if err := im.qr.UpdateAppCustomProperties(ctx, guid, props); err != nil {
			outcome.Warnings = append(outcome.Warnings, "setting custom properties: "+err.Error())
		}
	}

	if app.OwnerUserDirectory != "" || app.OwnerUserID != "" {
		if err := im.qr.SetAppOwner(ctx, guid, app.OwnerUserDirectory, app.OwnerUserID); err != nil {
			outcome.Warnings = append(outcome.Warnings, "setting owner: "+err.Error())
		}
	}

	if app.PublishToStream != "" {
		res := im.resolver.ResolveStream(ctx, app.PublishToStream)
		if res.Warning != "" {
			outcome.Warnings = append(outcome.Warnings, res.Warning)
		} else if err := im.qr.PublishApp(ctx, guid, res.Stream.ID); err != nil {
			outcome.Warnings = append(outcome.Warnings, "publishing app: "+err.Error())
		}
	}

	return outcome
}

func (im *Importer) runPhaseA(ctx context.Context, tasks []parse.TaskRecord, result *Result) {
	for _, rec := range tasks {
		outcome := im.createOneTask(ctx, rec)
		result.Tasks = append(result.Tasks, outcome)
		if outcome.Err == nil && rec.TaskID != "" {
			result.LocalToGUID[rec.TaskID] = outcome.GUID
			result.LocalToKind[rec.TaskID] = rec.Kind
		}
	}
}

func (im *Importer) createOneTask(ctx context.Context, rec parse.TaskRecord) TaskOutcome {
	outcome := TaskOutcome{TaskCounter: rec.TaskCounter, TaskID: rec.TaskID}

	var tags []qrs.Tag
	for _, name := range rec.Tags {
		tag, err := im.resolver.ResolveTag(name)
		if err != nil {
			outcome.Err = errors.WithDetail(
				errors.Wrapf(err, "resolving tags for task counter %d", rec.TaskCounter),
				"taskCounter="+strconv.Itoa(rec.TaskCounter))
			return outcome
		}
		tags = append(tags, tag)
	}

	var props []qrs.CustomPropertyValue
	for name, value := range rec.CustomPropertyValues {
		cp, err := im.resolver.ResolveCustomProperty(name, value)
		if err != nil {
			outcome.Err = errors.WithDetail(
				errors.Wrapf(err, "resolving custom properties for task counter %d", rec.TaskCounter),
				"taskCounter="+strconv.Itoa(rec.TaskCounter))
			return outcome
		}
		props = append(props, cp)
	}

	var schemaEvents []qrs.SchemaEvent
	for _, se := range rec.ScheduleEvents {
		schemaEvents = append(schemaEvents, scheduleEventToQRS(se))
	}

	switch rec.Kind {
	case taskgraph.Reload:
		appGUID, err := im.resolver.ResolveAppRef(ctx, rec.AppRef)
		if err != nil {
			outcome.Err = errors.WithDetail(
				errors.Wrapf(err, "resolving app reference for task counter %d", rec.TaskCounter),
				"taskCounter="+strconv.Itoa(rec.TaskCounter))
			return outcome
		}
		spec := qrs.ReloadTask{
			Name:                rec.Name,
			Enabled:             rec.Enabled,
			TaskSessionTimeout:  rec.TimeoutMinutes,
			MaxRetries:          rec.Retries,
			AppID:               appGUID,
			IsPartialReload:     rec.IsPartialReload,
			IsManuallyTriggered: rec.IsManuallyTriggered,
			Tags:                tags,
			CustomProperties:    props,
			SchemaEvents:        schemaEvents,
		}
		outcome.Payload = spec
		if im.opts.DryRun {
			outcome.GUID = "dryrun-task-" + strconv.Itoa(rec.TaskCounter)
			return outcome
		}
		guid, err := im.qr.CreateReloadTask(ctx, spec)
		if err != nil {
			outcome.Err = errors.WithDetail(err, "taskCounter="+strconv.Itoa(rec.TaskCounter))
			return outcome
		}
		outcome.GUID = guid

	case taskgraph.ExternalProgram:
		spec := qrs.ExternalProgramTask{
			Name:               rec.Name,
			Enabled:            rec.Enabled,
			TaskSessionTimeout: rec.TimeoutMinutes,
			MaxRetries:         rec.Retries,
			Path:               rec.Path,
			Parameters:         rec.Parameters,
			Tags:               tags,
			CustomProperties:   props,
			SchemaEvents:       schemaEvents,
		}
		outcome.Payload = spec
		if im.opts.DryRun {
			outcome.GUID = "dryrun-task-" + strconv.Itoa(rec.TaskCounter)
			return outcome
		}
		guid, err := im.qr.CreateExternalProgramTask(ctx, spec)
		if err != nil {
			outcome.Err = errors.WithDetail(err, "taskCounter="+strconv.Itoa(rec.TaskCounter))
			return outcome
		}
		outcome.GUID = guid
	}

	return outcome
}

func (im *Importer) runPhaseB(ctx context.Context, tasks []parse.TaskRecord, result *Result) {
	for _, rec := range tasks {
		downstreamGUID, ok := result.LocalToGUID[rec.TaskID]
		for _, ce := range rec.CompositeEvents {
			outcome := EventOutcome{TaskCounter: rec.TaskCounter, EventCounter: ce.EventCounter}
			if !ok {
				outcome.Err = errors.Newf("composite event (task counter %d, event counter %d) skipped: owning task was not created", rec.TaskCounter, ce.EventCounter)
				result.Events = append(result.Events, outcome)
				continue
			}

			spec, err := im.buildCompositeEvent(downstreamGUID, rec.Kind, ce, result.LocalToGUID, result.LocalToKind)
			if err != nil {
				outcome.Err = errors.WithDetail(err,
					"taskCounter="+strconv.Itoa(rec.TaskCounter)+" eventCounter="+strconv.Itoa(ce.EventCounter))
				result.Events = append(result.Events, outcome)
				continue
			}
			outcome.Payload = spec

			if im.opts.DryRun {
				outcome.GUID = "dryrun-event-" + strconv.Itoa(ce.EventCounter)
				result.Events = append(result.Events, outcome)
				continue
			}

			guid, err := im.qr.CreateCompositeEvent(ctx, spec)
			if err != nil {
				outcome.Err = errors.WithDetail(err,
					"taskCounter="+strconv.Itoa(rec.TaskCounter)+" eventCounter="+strconv.Itoa(ce.EventCounter))
				result.Events = append(result.Events, outcome)
				continue
			}
			outcome.GUID = guid
			result.Events = append(result.Events, outcome)
		}
	}
}

func (im *Importer) buildCompositeEvent(downstreamGUID string, downstreamKind taskgraph.TaskKind, ce parse.CompositeEventRecord, localToGuid map[string]string, localToKind map[string]taskgraph.TaskKind) (qrs.CompositeEvent, error) {
	spec := qrs.CompositeEvent{
		Name:    ce.Name,
		Enabled: ce.Enabled,
		TimeConstraint: qrs.TimeConstraint{
			Seconds: ce.TimeConstraint.Seconds,
			Minutes: ce.TimeConstraint.Minutes,
			Hours:   ce.TimeConstraint.Hours,
			Days:    ce.TimeConstraint.Days,
		},
	}
	setTaskRef(&spec.ReloadTaskID, &spec.ExternalProgramTaskID, downstreamKind, downstreamGUID)

	for _, rule := range ce.Rules {
		ref, err := im.resolver.ResolveRuleTaskRef(rule.TaskID, localToGuid, localToKind)
		if err != nil {
			return qrs.CompositeEvent{}, errors.Wrapf(err, "rule counter %d", rule.RuleCounter)
		}
		ruleRef := qrs.CompositeRuleRef{RuleState: int(rule.RuleState)}
		setTaskRef(&ruleRef.ReloadTaskID, &ruleRef.ExternalProgramTaskID, ref.Kind, ref.GUID)
		spec.Rules = append(spec.Rules, ruleRef)
	}
	return spec, nil
}

// setTaskRef populates whichever of the two QRS task-reference fields
// matches kind, leaving the other empty.
func setTaskRef(reloadField, externalField *string, kind taskgraph.TaskKind, guid string) {
	if kind == taskgraph.ExternalProgram {
		*externalField = guid
		return
	}
	*reloadField = guid
}
