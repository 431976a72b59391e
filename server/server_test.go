package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrl-q/ctrlq/taskgraph"
)

func testGraph() *taskgraph.Graph {
	g := taskgraph.New()
	g.AddTask(taskgraph.Task{ID: "up", Kind: taskgraph.Reload, Name: "Upstream", Enabled: true})
	g.AddTask(taskgraph.Task{ID: "down", Kind: taskgraph.Reload, Name: "Downstream", Enabled: true})
	g.AddCompositeEvent(taskgraph.CompositeEvent{
		ID:             "evt-1",
		Name:           "dep",
		Enabled:        true,
		DownstreamTask: "down",
		Rules:          []taskgraph.CompositeRule{{UpstreamRef: "up", RuleState: taskgraph.TaskSuccessful}},
	})
	return g
}

func TestHandleHealth(t *testing.T) {
	s := New(testGraph(), nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleTasks(t *testing.T) {
	s := New(testGraph(), nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	s.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var tasks []taskgraph.Task
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tasks))
	assert.Len(t, tasks, 2)
}

func TestHandleTree_DefaultsToAllRoots(t *testing.T) {
	s := New(testGraph(), nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tree", nil)
	s.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var tree []map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tree))
	require.Len(t, tree, 1)
}

func TestHandleCORSHeaders(t *testing.T) {
	s := New(testGraph(), nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	s.ServeHTTP(rr, req)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
