package synth_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/appcontext"
	"github.com/tailcall-oss/gateway/internal/blueprint"
	"github.com/tailcall-oss/gateway/internal/config"
	"github.com/tailcall-oss/gateway/internal/executor"
	"github.com/tailcall-oss/gateway/internal/language"
	"github.com/tailcall-oss/gateway/internal/plan"
	"github.com/tailcall-oss/gateway/internal/script"
	"github.com/tailcall-oss/gateway/internal/synth"
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
					"id":   {Type: "ID", NonNull: true},
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

func TestSynthesizeBuildsNestedListResponse(t *testing.T) {
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

	res := synth.Synthesize(p, store)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"users": []any{
			map[string]any{"id": "1", "name": "Ada"},
			map[string]any{"id": "2", "name": "Grace"},
		},
	}, res.Data)
}

func TestSynthesizeNullsListItemWhenNonNullFieldMissing(t *testing.T) {
	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonBody(`[{"id":"1","name":"Ada"},{"name":"Grace"}]`), nil
	}}

	bp, err := blueprint.Compile(usersConfig())
	require.NoError(t, err)
	ac := appcontext.New(bp, appcontext.Options{HTTPDoer: doer, GraphQLDoer: doer})
	defer ac.Close()

	p := buildPlan(t, bp, `query { users { id name } }`)
	store, err := executor.New(ac).Execute(context.Background(), p, nil, nil)
	require.NoError(t, err)

	res := synth.Synthesize(p, store)
	require.Len(t, res.Errors, 1)
	require.Equal(t, executor.ResponsePath{"users", 1, "id"}, res.Errors[0].Path)

	users := res.Data.(map[string]any)["users"].([]any)
	require.Len(t, users, 2)
	require.Equal(t, map[string]any{"id": "1", "name": "Ada"}, users[0])
	require.Nil(t, users[1])
}

func TestSynthesizeReportsLeafNonNullViolation(t *testing.T) {
	cfg := &config.Config{
		Schema: config.SchemaConfig{Query: "Query"},
		Types: map[string]*config.Type{
			"Query": {
				Fields: map[string]*config.Field{
					"greeting": {Type: "String", NonNull: true, JS: &config.JS{Name: "nullify"}},
				},
			},
		},
	}
	bp, err := blueprint.Compile(cfg)
	require.NoError(t, err)
	ac := appcontext.New(bp, appcontext.Options{ScriptFuncs: map[string]script.Func{
		"nullify": func(any) (any, error) { return nil, nil },
	}})
	defer ac.Close()

	p := buildPlan(t, bp, `query { greeting }`)
	store, err := executor.New(ac).Execute(context.Background(), p, nil, nil)
	require.NoError(t, err)

	res := synth.Synthesize(p, store)
	require.Len(t, res.Errors, 1)
	require.Equal(t, executor.ResponsePath{"greeting"}, res.Errors[0].Path)
	require.Nil(t, res.Data.(map[string]any)["greeting"])
}
