package importer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrl-q/ctrlq/parse"
	"github.com/ctrl-q/ctrlq/qrs"
	"github.com/ctrl-q/ctrlq/resolve"
	"github.com/ctrl-q/ctrlq/taskgraph"
	"github.com/ctrl-q/ctrlq/transport"
)

func testImporter(t *testing.T, handler http.HandlerFunc) (*Importer, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := &transport.Config{Host: u.Hostname(), RepositoryPort: port, Bearer: &transport.BearerCredentials{Token: "t"}}
	require.NoError(t, cfg.Validate())
	tc, err := transport.NewClient(cfg, nil)
	require.NoError(t, err)
	transport.OverrideForTest(tc, srv.Client(), "http")

	qr := qrs.New(tc, nil)
	g := taskgraph.New()
	resolver := resolve.New(qr, g, nil)
	require.NoError(t, resolver.Warm(context.Background()))

	return New(qr, resolver, Options{}, nil), srv.Close
}

func TestImporter_ChainOfTwoTasks(t *testing.T) {
	var createdTaskNames []string
	var compositeEventPosted qrs.CompositeEvent

	im, closeSrv := testImporter(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/qrs/tag/full" || r.URL.Path == "/qrs/custompropertydefinition/full":
			w.Write([]byte(`[]`))
		case r.URL.Path == "/qrs/app/app-guid-1":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/qrs/reloadtask" && r.Method == http.MethodPost:
			var body qrs.ReloadTask
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			createdTaskNames = append(createdTaskNames, body.Name)
			body.ID = "guid-" + body.Name
			require.NoError(t, json.NewEncoder(w).Encode(body))
		case r.URL.Path == "/qrs/compositeevent" && r.Method == http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&compositeEventPosted))
			compositeEventPosted.ID = "evt-guid"
			require.NoError(t, json.NewEncoder(w).Encode(compositeEventPosted))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	defer closeSrv()

	parsed := &parse.Result{
		Tasks: []parse.TaskRecord{
			{TaskCounter: 1, TaskID: "1", Kind: taskgraph.Reload, Name: "T1", AppRef: "app-guid-1"},
			{
				TaskCounter: 2, TaskID: "2", Kind: taskgraph.Reload, Name: "T2", AppRef: "app-guid-1",
				CompositeEvents: []parse.CompositeEventRecord{
					{
						EventCounter: 1, Name: "dep",
						Rules: []parse.CompositeRuleRecord{{RuleCounter: 1, RuleState: taskgraph.TaskSuccessful, TaskID: "1"}},
					},
				},
			},
		},
	}

	result, err := im.Run(context.Background(), parsed)
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	assert.ElementsMatch(t, []string{"T1", "T2"}, createdTaskNames)
	assert.Equal(t, "guid-T1", result.LocalToGUID["1"])
	assert.Equal(t, "guid-T2", result.LocalToGUID["2"])

	require.Len(t, result.Events, 1)
	assert.NoError(t, result.Events[0].Err)
	assert.Equal(t, "guid-T1", compositeEventPosted.Rules[0].ReloadTaskID)
	assert.Equal(t, "guid-T2", compositeEventPosted.ReloadTaskID)
}

func TestImporter_CompositeEventUsesExternalProgramTaskIDForExternalProgramTasks(t *testing.T) {
	var compositeEventPosted qrs.CompositeEvent

	im, closeSrv := testImporter(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/qrs/tag/full" || r.URL.Path == "/qrs/custompropertydefinition/full":
			w.Write([]byte(`[]`))
		case r.URL.Path == "/qrs/app/app-guid-1":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/qrs/reloadtask" && r.Method == http.MethodPost:
			var body qrs.ReloadTask
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			body.ID = "guid-" + body.Name
			require.NoError(t, json.NewEncoder(w).Encode(body))
		case r.URL.Path == "/qrs/externalprogramtask" && r.Method == http.MethodPost:
			var body qrs.ExternalProgramTask
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			body.ID = "guid-" + body.Name
			require.NoError(t, json.NewEncoder(w).Encode(body))
		case r.URL.Path == "/qrs/compositeevent" && r.Method == http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&compositeEventPosted))
			compositeEventPosted.ID = "evt-guid"
			require.NoError(t, json.NewEncoder(w).Encode(compositeEventPosted))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	defer closeSrv()

	parsed := &parse.Result{
		Tasks: []parse.TaskRecord{
			{TaskCounter: 1, TaskID: "1", Kind: taskgraph.ExternalProgram, Name: "Upstream", AppRef: "app-guid-1"},
			{
				TaskCounter: 2, TaskID: "2", Kind: taskgraph.ExternalProgram, Name: "Downstream", AppRef: "app-guid-1",
				CompositeEvents: []parse.CompositeEventRecord{
					{
						EventCounter: 1, Name: "dep",
						Rules: []parse.CompositeRuleRecord{{RuleCounter: 1, RuleState: taskgraph.TaskSuccessful, TaskID: "1"}},
					},
				},
			},
		},
	}

	result, err := im.Run(context.Background(), parsed)
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	require.Len(t, result.Events, 1)
	assert.NoError(t, result.Events[0].Err)
	assert.Equal(t, "guid-Upstream", compositeEventPosted.Rules[0].ExternalProgramTaskID)
	assert.Empty(t, compositeEventPosted.Rules[0].ReloadTaskID)
	assert.Equal(t, "guid-Downstream", compositeEventPosted.ExternalProgramTaskID)
	assert.Empty(t, compositeEventPosted.ReloadTaskID)
}

func TestImporter_PhaseAFailureDoesNotAbortOtherTasks(t *testing.T) {
	im, closeSrv := testImporter(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/qrs/tag/full" || r.URL.Path == "/qrs/custompropertydefinition/full":
			w.Write([]byte(`[]`))
		case r.URL.Path == "/qrs/app/app-guid-1":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/qrs/reloadtask" && r.Method == http.MethodPost:
			var body qrs.ReloadTask
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body.Name == "Bad" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			body.ID = "guid-" + body.Name
			require.NoError(t, json.NewEncoder(w).Encode(body))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	defer closeSrv()

	parsed := &parse.Result{
		Tasks: []parse.TaskRecord{
			{TaskCounter: 1, TaskID: "1", Kind: taskgraph.Reload, Name: "Bad", AppRef: "app-guid-1"},
			{TaskCounter: 2, TaskID: "2", Kind: taskgraph.Reload, Name: "Good", AppRef: "app-guid-1"},
		},
	}

	result, err := im.Run(context.Background(), parsed)
	require.NoError(t, err)
	assert.False(t, result.Succeeded())
	require.Len(t, result.Tasks, 2)
	assert.Error(t, result.Tasks[0].Err)
	assert.NoError(t, result.Tasks[1].Err)
	assert.Equal(t, "guid-Good", result.LocalToGUID["2"])
}

func TestImporter_DryRunNeverPosts(t *testing.T) {
	var createCalls int
	im, closeSrv := testImporter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/qrs/tag/full", "/qrs/custompropertydefinition/full":
			w.Write([]byte(`[]`))
		case "/qrs/app/app-guid-1":
			w.WriteHeader(http.StatusOK)
		default:
			createCalls++
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	defer closeSrv()
	im.opts.DryRun = true

	parsed := &parse.Result{
		Tasks: []parse.TaskRecord{
			{TaskCounter: 1, TaskID: "1", Kind: taskgraph.Reload, Name: "T1", AppRef: "app-guid-1"},
		},
	}

	result, err := im.Run(context.Background(), parsed)
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, 0, createCalls)
	assert.Contains(t, result.LocalToGUID["1"], "dryrun-task-")
}
