package executor_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/appcontext"
	"github.com/tailcall-oss/gateway/internal/blueprint"
	"github.com/tailcall-oss/gateway/internal/config"
	"github.com/tailcall-oss/gateway/internal/executor"
	"github.com/tailcall-oss/gateway/internal/language"
	"github.com/tailcall-oss/gateway/internal/plan"
)

type fakeDoer struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (f fakeDoer) Do(req *http.Request) (*http.Response, error) { return f.fn(req) }

func jsonBody(s string) *http.Response {
	return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(s)), Header: http.Header{}}
}

func usersConfig() *config.Config {
	return &config.Config{
		Schema: config.SchemaConfig{Query: "Query"},
		Types: map[string]*config.Type{
			"Query": {
				Fields: map[string]*config.Field{
					"users": {
						Type: "User",
						List: true,
						Http: &config.Http{Method: "GET", BaseURL: "https://api.example.com", Path: "/users"},
					},
				},
			},
			"User": {
				Fields: map[string]*config.Field{
					"id":   {Type: "ID"},
					"name": {Type: "String"},
				},
			},
		},
	}
}

func buildPlan(t *testing.T, bp *blueprint.Blueprint, query string) *plan.Plan {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	p, err := plan.Build(doc, "", bp.Schema, bp)
	require.NoError(t, err)
	return p
}

func TestExecuteFansOutListChildrenIntoStore(t *testing.T) {
	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonBody(`[{"id":"1","name":"Ada"},{"id":"2","name":"Grace"}]`), nil
	}}

	bp, err := blueprint.Compile(usersConfig())
	require.NoError(t, err)
	ac := appcontext.New(bp, appcontext.Options{HTTPDoer: doer, GraphQLDoer: doer})
	defer ac.Close()

	p := buildPlan(t, bp, `query { users { id name } }`)
	store, err := executor.New(ac).Execute(context.Background(), p, nil, nil)
	require.NoError(t, err)

	usersField := p.Fields[0]
	n, ok := store.Len(usersField.ID, executor.Path{})
	require.True(t, ok)
	require.Equal(t, 2, n)

	idField := usersField.Children[0]
	nameField := usersField.Children[1]

	v, ok := store.Value(idField.ID, executor.Path{0})
	require.True(t, ok)
	require.Equal(t, "1", v)

	v, ok = store.Value(nameField.ID, executor.Path{1})
	require.True(t, ok)
	require.Equal(t, "Grace", v)
}

func TestExecuteResolvesTypenameFromEnclosingType(t *testing.T) {
	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonBody(`[{"id":"1","name":"Ada"}]`), nil
	}}

	bp, err := blueprint.Compile(usersConfig())
	require.NoError(t, err)
	ac := appcontext.New(bp, appcontext.Options{HTTPDoer: doer, GraphQLDoer: doer})
	defer ac.Close()

	p := buildPlan(t, bp, `query { users { __typename id } }`)
	store, err := executor.New(ac).Execute(context.Background(), p, nil, nil)
	require.NoError(t, err)

	usersField := p.Fields[0]
	typenameField := usersField.Children[0]
	v, ok := store.Value(typenameField.ID, executor.Path{0})
	require.True(t, ok)
	require.Equal(t, "User", v)
}

func TestExecuteCoalescesIdenticalCallsWhenDedupeEnabled(t *testing.T) {
	var calls int32
	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonBody(`[{"id":"1","name":"Ada"}]`), nil
	}}

	cfg := usersConfig()
	cfg.Server = config.ServerConfig{Dedupe: true}
	bp, err := blueprint.Compile(cfg)
	require.NoError(t, err)
	ac := appcontext.New(bp, appcontext.Options{HTTPDoer: doer, GraphQLDoer: doer})
	defer ac.Close()

	p := buildPlan(t, bp, `query { a: users { id } b: users { id } }`)
	_, err = executor.New(ac).Execute(context.Background(), p, nil, nil)
	require.NoError(t, err)

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecuteRecordsArgumentCoercionError(t *testing.T) {
	cfg := &config.Config{
		Schema: config.SchemaConfig{Query: "Query"},
		Types: map[string]*config.Type{
			"Query": {
				Fields: map[string]*config.Field{
					"byID": {
						Type: "String",
						Args: map[string]*config.Arg{"id": {Type: "Int", NonNull: true}},
						Http: &config.Http{Method: "GET", BaseURL: "https://api.example.com", Path: "/byid/{{.args.id}}"},
					},
				},
			},
		},
	}
	bp, err := blueprint.Compile(cfg)
	require.NoError(t, err)
	ac := appcontext.New(bp, appcontext.Options{})
	defer ac.Close()

	p := buildPlan(t, bp, `query { byID(id: "not-an-int") }`)
	store, err := executor.New(ac).Execute(context.Background(), p, nil, nil)
	require.NoError(t, err)

	_, ok := store.Err(p.Fields[0].ID, executor.Path{})
	require.True(t, ok)
}
