package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrl-q/ctrlq/qrs"
	"github.com/ctrl-q/ctrlq/taskgraph"
	"github.com/ctrl-q/ctrlq/transport"
)

func testResolver(t *testing.T, handler http.HandlerFunc) (*Resolver, func()) {
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
	g.AddTask(taskgraph.Task{ID: "existing-guid", Name: "Existing"})
	r := New(qr, g, nil)
	return r, srv.Close
}

func TestResolveTag_KnownAndUnknown(t *testing.T) {
	r, closeSrv := testResolver(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/qrs/tag/full":
			w.Write([]byte(`[{"id":"t1","name":"nightly"}]`))
		case "/qrs/custompropertydefinition/full":
			w.Write([]byte(`[]`))
		}
	})
	defer closeSrv()

	require.NoError(t, r.Warm(context.Background()))

	tag, err := r.ResolveTag("nightly")
	require.NoError(t, err)
	assert.Equal(t, "t1", tag.ID)

	_, err = r.ResolveTag("missing")
	assert.Error(t, err)
}

func TestResolveCustomProperty_ValueMustBeDeclaredChoice(t *testing.T) {
	r, closeSrv := testResolver(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/qrs/tag/full":
			w.Write([]byte(`[]`))
		case "/qrs/custompropertydefinition/full":
			w.Write([]byte(`[{"id":"p1","name":"env","choiceValues":["prod","dev"]}]`))
		}
	})
	defer closeSrv()
	require.NoError(t, r.Warm(context.Background()))

	v, err := r.ResolveCustomProperty("env", "prod")
	require.NoError(t, err)
	assert.Equal(t, "prod", v.Value)

	_, err = r.ResolveCustomProperty("env", "staging")
	assert.Error(t, err)

	_, err = r.ResolveCustomProperty("missing", "x")
	assert.Error(t, err)
}

func TestResolveAppRef_NewAppAndIdempotence(t *testing.T) {
	r, closeSrv := testResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`[]`))
	})
	defer closeSrv()

	r.RecordUploadedApp(1, "new-app-guid")
	guid1, err := r.ResolveAppRef(context.Background(), "newapp-1")
	require.NoError(t, err)
	guid2, err := r.ResolveAppRef(context.Background(), "newapp-1")
	require.NoError(t, err)
	assert.Equal(t, guid1, guid2)
	assert.Equal(t, "new-app-guid", guid1)
}

func TestResolveAppRef_UnresolvedCounterIsError(t *testing.T) {
	r, closeSrv := testResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`[]`))
	})
	defer closeSrv()

	_, err := r.ResolveAppRef(context.Background(), "newapp-99")
	assert.Error(t, err)
}

func TestResolveAppRef_LiteralGUIDExistenceCheck(t *testing.T) {
	r, closeSrv := testResolver(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/qrs/app/literal-guid" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`[]`))
	})
	defer closeSrv()

	_, err := r.ResolveAppRef(context.Background(), "literal-guid")
	assert.Error(t, err)
}

func TestResolveRuleTaskRef_LocalThenExisting(t *testing.T) {
	r, closeSrv := testResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`[]`))
	})
	defer closeSrv()

	local := map[string]string{"1": "new-guid-1"}
	localKinds := map[string]taskgraph.TaskKind{"1": taskgraph.ExternalProgram}
	res, err := r.ResolveRuleTaskRef("1", local, localKinds)
	require.NoError(t, err)
	assert.True(t, res.IsLocal)
	assert.Equal(t, "new-guid-1", res.GUID)
	assert.Equal(t, taskgraph.ExternalProgram, res.Kind)

	res, err = r.ResolveRuleTaskRef("existing-guid", local, localKinds)
	require.NoError(t, err)
	assert.False(t, res.IsLocal)
	assert.Equal(t, taskgraph.Reload, res.Kind)

	_, err = r.ResolveRuleTaskRef("nonsense", local, localKinds)
	assert.Error(t, err)
}
