package qrs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/ctrl-q/ctrlq/errors"
	"github.com/ctrl-q/ctrlq/logger"
	"github.com/ctrl-q/ctrlq/transport"
)

// Client is the typed Repository wrapper consumed by C3/C5/C6. Tag and
// CustomProperty listings are cached for the lifetime of one run, matching
// §4.2's "full population; cached per run."
type Client struct {
	transport *transport.Client
	log       *zap.SugaredLogger

	mu          sync.Mutex
	tags        []Tag
	tagsLoaded  bool
	props       []CustomProperty
	propsLoaded bool
}

// New wraps an already-configured transport.Client.
func New(t *transport.Client, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = logger.ComponentLogger("qrs")
	}
	return &Client{transport: t, log: log}
}

func decode[T any](resp *transport.Response, out *T) error {
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return errors.Wrapf(err, "decoding QRS response (status %d)", resp.Status)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*transport.Response, error) {
	resp, err := c.transport.Do(ctx, transport.Request{
		Method:      http.MethodGet,
		Path:        path,
		Query:       query,
		Idempotency: transport.Idempotent,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status >= 400 {
		return nil, errors.WithDetail(
			errors.Newf("QRS GET %s failed: status %d", path, resp.Status),
			fmt.Sprintf("httpStatus=%d", resp.Status))
	}
	return resp, nil
}

func (c *Client) postNonIdempotent(ctx context.Context, path string, body interface{}) (*transport.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling QRS request body")
	}
	resp, err := c.transport.Do(ctx, transport.Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        payload,
		Idempotency: transport.NonIdempotent,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status >= 400 {
		return nil, errors.WithDetail(
			errors.Newf("QRS POST %s failed: status %d", path, resp.Status),
			fmt.Sprintf("httpStatus=%d", resp.Status))
	}
	return resp, nil
}

func (c *Client) put(ctx context.Context, path string, body interface{}) (*transport.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling QRS request body")
	}
	resp, err := c.transport.Do(ctx, transport.Request{
		Method:      http.MethodPut,
		Path:        path,
		Body:        payload,
		Idempotency: transport.Idempotent,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status >= 400 {
		return nil, errors.WithDetail(
			errors.Newf("QRS PUT %s failed: status %d", path, resp.Status),
			fmt.Sprintf("httpStatus=%d", resp.Status))
	}
	return resp, nil
}

// ListTags returns the full tag population, fetching once per Client.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tagsLoaded {
		return c.tags, nil
	}
	resp, err := c.get(ctx, "/qrs/tag/full", nil)
	if err != nil {
		return nil, errors.Wrap(err, "listing tags")
	}
	var tags []Tag
	if err := decode(resp, &tags); err != nil {
		return nil, err
	}
	c.tags, c.tagsLoaded = tags, true
	return tags, nil
}

// ListCustomProperties returns the full custom-property population, caching
// it for subsequent calls in the same run.
func (c *Client) ListCustomProperties(ctx context.Context) ([]CustomProperty, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.propsLoaded {
		return c.props, nil
	}
	resp, err := c.get(ctx, "/qrs/custompropertydefinition/full", nil)
	if err != nil {
		return nil, errors.Wrap(err, "listing custom properties")
	}
	var props []CustomProperty
	if err := decode(resp, &props); err != nil {
		return nil, err
	}
	c.props, c.propsLoaded = props, true
	return props, nil
}

// ListReloadTasks fetches reload tasks matching filter (empty = all).
func (c *Client) ListReloadTasks(ctx context.Context, filter Filter) ([]ReloadTask, error) {
	query := url.Values{}
	if filter != "" {
		query.Set("filter", string(filter))
	}
	resp, err := c.get(ctx, "/qrs/reloadtask/full", query)
	if err != nil {
		return nil, errors.Wrap(err, "listing reload tasks")
	}
	var tasks []ReloadTask
	if err := decode(resp, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListExternalProgramTasks fetches external-program tasks matching filter.
func (c *Client) ListExternalProgramTasks(ctx context.Context, filter Filter) ([]ExternalProgramTask, error) {
	query := url.Values{}
	if filter != "" {
		query.Set("filter", string(filter))
	}
	resp, err := c.get(ctx, "/qrs/externalprogramtask/full", query)
	if err != nil {
		return nil, errors.Wrap(err, "listing external-program tasks")
	}
	var tasks []ExternalProgramTask
	if err := decode(resp, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListSchemaEvents fetches all schema (time-based) triggers in the site.
func (c *Client) ListSchemaEvents(ctx context.Context) ([]SchemaEvent, error) {
	resp, err := c.get(ctx, "/qrs/schemaevent/full", nil)
	if err != nil {
		return nil, errors.Wrap(err, "listing schema events")
	}
	var events []SchemaEvent
	if err := decode(resp, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// ListCompositeEvents fetches all dependency-based triggers in the site.
func (c *Client) ListCompositeEvents(ctx context.Context) ([]CompositeEvent, error) {
	resp, err := c.get(ctx, "/qrs/compositeevent/full", nil)
	if err != nil {
		return nil, errors.Wrap(err, "listing composite events")
	}
	var events []CompositeEvent
	if err := decode(resp, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CreateReloadTask creates a reload task (with any embedded schedule
// events) and returns its new GUID. Non-idempotent: callers must not retry
// on application-level failure (§4.2).
func (c *Client) CreateReloadTask(ctx context.Context, spec ReloadTask) (string, error) {
	resp, err := c.postNonIdempotent(ctx, "/qrs/reloadtask", spec)
	if err != nil {
		return "", errors.Wrapf(err, "creating reload task %q", spec.Name)
	}
	var created ReloadTask
	if err := decode(resp, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// CreateExternalProgramTask creates an external-program task and returns
// its new GUID. Non-idempotent.
func (c *Client) CreateExternalProgramTask(ctx context.Context, spec ExternalProgramTask) (string, error) {
	resp, err := c.postNonIdempotent(ctx, "/qrs/externalprogramtask", spec)
	if err != nil {
		return "", errors.Wrapf(err, "creating external-program task %q", spec.Name)
	}
	var created ExternalProgramTask
	if err := decode(resp, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// CreateCompositeEvent creates a dependency-based trigger. Must be called
// after every task it references already exists (§4.6 Phase B).
// Non-idempotent.
func (c *Client) CreateCompositeEvent(ctx context.Context, spec CompositeEvent) (string, error) {
	resp, err := c.postNonIdempotent(ctx, "/qrs/compositeevent", spec)
	if err != nil {
		return "", errors.Wrapf(err, "creating composite event %q", spec.Name)
	}
	var created CompositeEvent
	if err := decode(resp, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UploadApp streams a QVF to QSEoW and returns the new app's GUID.
// Non-idempotent.
func (c *Client) UploadApp(ctx context.Context, qvf io.Reader, name string, excludeData bool) (string, error) {
	body, err := io.ReadAll(qvf)
	if err != nil {
		return "", errors.Wrap(err, "reading QVF stream")
	}
	query := url.Values{}
	query.Set("name", name)
	query.Set("excludedatafromapp", boolString(excludeData))

	resp, err := c.transport.Do(ctx, transport.Request{
		Method:      http.MethodPost,
		Path:        "/qrs/app/upload",
		Query:       query,
		Body:        body,
		Idempotency: transport.NonIdempotent,
	})
	if err != nil {
		return "", errors.Wrapf(err, "uploading app %q", name)
	}
	if resp.Status >= 400 {
		return "", errors.Newf("uploading app %q failed: status %d", name, resp.Status)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := decode(resp, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// PublishApp publishes an uploaded app into a stream. Non-idempotent.
func (c *Client) PublishApp(ctx context.Context, appID, streamID string) error {
	query := url.Values{}
	query.Set("stream", streamID)
	resp, err := c.transport.Do(ctx, transport.Request{
		Method:      http.MethodPut,
		Path:        fmt.Sprintf("/qrs/app/%s/publish", appID),
		Query:       query,
		Idempotency: transport.NonIdempotent,
	})
	if err != nil {
		return errors.Wrapf(err, "publishing app %s", appID)
	}
	if resp.Status >= 400 {
		return errors.Newf("publishing app %s failed: status %d", appID, resp.Status)
	}
	return nil
}

// SetAppOwner reassigns an app's owner. Non-idempotent (mutating PUT).
func (c *Client) SetAppOwner(ctx context.Context, appID, userDirectory, userID string) error {
	body := map[string]interface{}{
		"owner": map[string]string{
			"userDirectory": userDirectory,
			"userId":        userID,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshaling app owner payload")
	}
	resp, err := c.transport.Do(ctx, transport.Request{
		Method:      http.MethodPut,
		Path:        fmt.Sprintf("/qrs/app/%s", appID),
		Body:        payload,
		Idempotency: transport.NonIdempotent,
	})
	if err != nil {
		return errors.Wrapf(err, "setting owner of app %s", appID)
	}
	if resp.Status >= 400 {
		return errors.Newf("setting owner of app %s failed: status %d", appID, resp.Status)
	}
	return nil
}

// AppExists reports whether an app GUID is known to the Repository, used
// by the resolver to verify a literal (non-`newapp-<n>`) app reference
// (§4.5).
func (c *Client) AppExists(ctx context.Context, id string) (bool, error) {
	resp, err := c.transport.Do(ctx, transport.Request{
		Method:      http.MethodGet,
		Path:        fmt.Sprintf("/qrs/app/%s", id),
		Idempotency: transport.Idempotent,
	})
	if err != nil {
		return false, errors.Wrapf(err, "checking existence of app %s", id)
	}
	if resp.Status == http.StatusNotFound {
		return false, nil
	}
	if resp.Status >= 400 {
		return false, errors.Newf("checking existence of app %s failed: status %d", id, resp.Status)
	}
	return true, nil
}

// GetStreamByName looks up a stream by exact name.
func (c *Client) GetStreamByName(ctx context.Context, name string) (*Stream, error) {
	query := url.Values{}
	query.Set("filter", fmt.Sprintf("name eq '%s'", escapeFilterValue(name)))
	resp, err := c.get(ctx, "/qrs/stream/full", query)
	if err != nil {
		return nil, errors.Wrapf(err, "looking up stream %q", name)
	}
	var streams []Stream
	if err := decode(resp, &streams); err != nil {
		return nil, err
	}
	if len(streams) == 0 {
		return nil, errors.Newf("no stream named %q", name)
	}
	return &streams[0], nil
}

// GetStreamByID looks up a stream by GUID.
func (c *Client) GetStreamByID(ctx context.Context, id string) (*Stream, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/qrs/stream/%s", id), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "looking up stream %s", id)
	}
	var stream Stream
	if err := decode(resp, &stream); err != nil {
		return nil, err
	}
	return &stream, nil
}

// UpdateTaskCustomProperties replaces a task's custom-property values.
// Supplements §4.2 for the `task-custom-property-set` command.
func (c *Client) UpdateTaskCustomProperties(ctx context.Context, taskID string, kind TaskKind, values []CustomPropertyValue) error {
	path := taskResourcePath(kind, taskID)
	resp, err := c.get(ctx, path, nil)
	if err != nil {
		return errors.Wrapf(err, "fetching task %s before custom-property update", taskID)
	}
	var partial map[string]interface{}
	if err := decode(resp, &partial); err != nil {
		return err
	}
	partial["customProperties"] = values
	if _, err := c.put(ctx, path, partial); err != nil {
		return errors.Wrapf(err, "updating custom properties of task %s", taskID)
	}
	return nil
}

// UpdateTaskTags replaces a task's tag set. Supplements §4.2.
func (c *Client) UpdateTaskTags(ctx context.Context, taskID string, kind TaskKind, tags []Tag) error {
	path := taskResourcePath(kind, taskID)
	resp, err := c.get(ctx, path, nil)
	if err != nil {
		return errors.Wrapf(err, "fetching task %s before tag update", taskID)
	}
	var partial map[string]interface{}
	if err := decode(resp, &partial); err != nil {
		return err
	}
	partial["tags"] = tags
	if _, err := c.put(ctx, path, partial); err != nil {
		return errors.Wrapf(err, "updating tags of task %s", taskID)
	}
	return nil
}

// UpdateAppTags replaces an app's tag set (used by the Phase 0 app-import
// step, §4.6).
func (c *Client) UpdateAppTags(ctx context.Context, appID string, tags []Tag) error {
	path := fmt.Sprintf("/qrs/app/%s", appID)
	resp, err := c.get(ctx, path, nil)
	if err != nil {
		return errors.Wrapf(err, "fetching app %s before tag update", appID)
	}
	var partial map[string]interface{}
	if err := decode(resp, &partial); err != nil {
		return err
	}
	partial["tags"] = tags
	if _, err := c.put(ctx, path, partial); err != nil {
		return errors.Wrapf(err, "updating tags of app %s", appID)
	}
	return nil
}

// UpdateAppCustomProperties replaces an app's custom-property values
// (used by the Phase 0 app-import step, §4.6).
func (c *Client) UpdateAppCustomProperties(ctx context.Context, appID string, values []CustomPropertyValue) error {
	path := fmt.Sprintf("/qrs/app/%s", appID)
	resp, err := c.get(ctx, path, nil)
	if err != nil {
		return errors.Wrapf(err, "fetching app %s before custom-property update", appID)
	}
	var partial map[string]interface{}
	if err := decode(resp, &partial); err != nil {
		return err
	}
	partial["customProperties"] = values
	if _, err := c.put(ctx, path, partial); err != nil {
		return errors.Wrapf(err, "updating custom properties of app %s", appID)
	}
	return nil
}

// GetLastExecutionResult fetches the most recent execution outcome of a
// task, used to decorate `--tree-details status` output. Supplements §4.2.
func (c *Client) GetLastExecutionResult(ctx context.Context, taskID string) (*ExecutionResult, error) {
	query := url.Values{}
	query.Set("filter", fmt.Sprintf("task.id eq %s", taskID))
	resp, err := c.get(ctx, "/qrs/executionresult", query)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching execution result for task %s", taskID)
	}
	var results []ExecutionResult
	if err := decode(resp, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// TaskKind distinguishes the two task resource collections.
type TaskKind int

const (
	TaskKindReload TaskKind = iota
	TaskKindExternalProgram
)

func taskResourcePath(kind TaskKind, id string) string {
	if kind == TaskKindExternalProgram {
		return fmt.Sprintf("/qrs/externalprogramtask/%s", id)
	}
	return fmt.Sprintf("/qrs/reloadtask/%s", id)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func escapeFilterValue(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
