package appcontext_test

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
	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/script"
)

func batchConfig() *config.Config {
	return &config.Config{
		Schema:   config.SchemaConfig{Query: "Query"},
		Upstream: config.UpstreamConfig{Batch: &config.Batch{Delay: 5, MaxSize: 10}},
		Server:   config.ServerConfig{Dedupe: true},
		Types: map[string]*config.Type{
			"Query": {
				Fields: map[string]*config.Field{
					"users": {
						Type: "User",
						List: true,
						Http: &config.Http{
							Method:   "GET",
							BaseURL:  "https://api.example.com",
							Path:     "/users",
							Query:    []config.KeyValue{{Key: "id", Value: "{{.value}}"}},
							BatchKey: []string{"id"},
						},
					},
					"greeting": {
						Type: "String",
						JS:   &config.JS{Name: "greet"},
					},
				},
			},
			"User": {Fields: map[string]*config.Field{"id": {Type: "ID"}}},
		},
	}
}

type fakeDoer struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (f fakeDoer) Do(req *http.Request) (*http.Response, error) { return f.fn(req) }

func TestNewAssignsDataloaderIndexToBatchedHTTPField(t *testing.T) {
	bp, err := blueprint.Compile(batchConfig())
	require.NoError(t, err)

	ac := appcontext.New(bp, appcontext.Options{})
	defer ac.Close()

	fb := bp.FieldBlueprint("Query", "users")
	io := fb.IR.(*ir.IO)
	require.NotNil(t, io.HTTP.DLID)
	require.Equal(t, 0, *io.HTTP.DLID)
}

func TestNewDedupeEnabledWhenServerConfigured(t *testing.T) {
	bp, err := blueprint.Compile(batchConfig())
	require.NoError(t, err)

	ac := appcontext.New(bp, appcontext.Options{})
	defer ac.Close()

	require.NotNil(t, ac.Dedupe)
}

func TestResolversDispatchesHTTPThroughAssignedLoader(t *testing.T) {
	var calls int
	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		calls++
		require.Equal(t, []string{"1"}, req.URL.Query()["id"])
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(`[{"id":"1"}]`)), Header: http.Header{}}, nil
	}}

	bp, err := blueprint.Compile(batchConfig())
	require.NoError(t, err)

	ac := appcontext.New(bp, appcontext.Options{HTTPDoer: doer, GraphQLDoer: doer})
	defer ac.Close()

	fb := bp.FieldBlueprint("Query", "users")
	leaf := fb.IR.(*ir.IO).HTTP

	v, err := ac.Resolvers.ResolveHTTP(&ir.EvalContext{Context: context.Background(), Value: "1"}, leaf)
	require.NoError(t, err)
	require.Equal(t, []any{map[string]any{"id": "1"}}, v)
	require.Equal(t, 1, calls)
}

func TestResolversDispatchesJSThroughScriptWorker(t *testing.T) {
	bp, err := blueprint.Compile(batchConfig())
	require.NoError(t, err)

	ac := appcontext.New(bp, appcontext.Options{ScriptFuncs: map[string]script.Func{
		"greet": func(input any) (any, error) { return "hi", nil },
	}})
	defer ac.Close()

	fb := bp.FieldBlueprint("Query", "greeting")
	leaf := fb.IR.(*ir.IO).JS

	v, err := ac.Resolvers.ResolveJS(&ir.EvalContext{Context: context.Background()}, leaf)
	require.NoError(t, err)
	require.Equal(t, "hi", v)
}

func TestAuthorizerDeniesWhenNoMechanismConfigured(t *testing.T) {
	bp, err := blueprint.Compile(batchConfig())
	require.NoError(t, err)

	ac := appcontext.New(bp, appcontext.Options{})
	defer ac.Close()

	err = ac.Auth.Authorize(&ir.EvalContext{Context: context.Background()})
	require.Error(t, err)
}

func TestAuthorizerReadsAuthorizationHeader(t *testing.T) {
	cfg := batchConfig()
	cfg.Auth = &config.AuthConfig{Basic: &config.BasicAuth{Username: "a", Password: "b"}}
	bp, err := blueprint.Compile(cfg)
	require.NoError(t, err)

	ac := appcontext.New(bp, appcontext.Options{})
	defer ac.Close()

	good := "Basic " + basicAuthHeader("a", "b")
	err = ac.Auth.Authorize(&ir.EvalContext{Context: context.Background(), Headers: map[string][]string{"Authorization": {good}}})
	require.NoError(t, err)
}

func basicAuthHeader(user, pass string) string {
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	req.SetBasicAuth(user, pass)
	return strings.TrimPrefix(req.Header.Get("Authorization"), "Basic ")
}
