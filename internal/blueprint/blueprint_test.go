package blueprint_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/blueprint"
	"github.com/tailcall-oss/gateway/internal/config"
	"github.com/tailcall-oss/gateway/internal/ir"
)

func simpleConfig() *config.Config {
	return &config.Config{
		Schema: config.SchemaConfig{Query: "Query"},
		Types: map[string]*config.Type{
			"Query": {
				Fields: map[string]*config.Field{
					"user": {
						Type: "User",
						Args: map[string]*config.Arg{"id": {Type: "ID", NonNull: true}},
						Http: &config.Http{
							Method:  "GET",
							BaseURL: "https://api.example.com",
							Path:    "/users/{{.args.id}}",
						},
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

func TestCompileSucceedsForWellFormedConfig(t *testing.T) {
	bp, err := blueprint.Compile(simpleConfig())
	require.NoError(t, err)
	require.NotNil(t, bp.Schema)
	require.Equal(t, "Query", bp.Schema.QueryType)

	fb := bp.FieldBlueprint("Query", "user")
	require.NotNil(t, fb)
	io, ok := fb.IR.(*ir.IO)
	require.True(t, ok)
	require.NotNil(t, io.HTTP)
}

func TestCompileFailsWhenFieldIsProtectedWithoutAuthConfigured(t *testing.T) {
	cfg := simpleConfig()
	cfg.Types["Query"].Fields["user"].Protected = true
	_, err := blueprint.Compile(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "@protected but no top-level auth is configured")
}

func TestCompileWrapsProtectedFieldAndCarriesAuthConfig(t *testing.T) {
	cfg := simpleConfig()
	cfg.Types["Query"].Fields["user"].Protected = true
	cfg.Auth = &config.AuthConfig{Basic: &config.BasicAuth{Username: "a", Password: "b"}}

	bp, err := blueprint.Compile(cfg)
	require.NoError(t, err)
	require.Same(t, cfg.Auth, bp.Auth)

	fb := bp.FieldBlueprint("Query", "user")
	require.NotNil(t, fb)
	require.True(t, fb.Protected)
	protect, ok := fb.IR.(*ir.Protect)
	require.True(t, ok)
	require.NotNil(t, protect.Inner)
}

func TestCompileFailsWhenRootFieldHasNoResolverAndTargetIsScalar(t *testing.T) {
	cfg := &config.Config{
		Schema: config.SchemaConfig{Query: "Query"},
		Types: map[string]*config.Type{
			"Query": {
				Fields: map[string]*config.Field{
					"name": {Type: "String"},
				},
			},
		},
	}
	_, err := blueprint.Compile(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "has no resolver")
}

func TestCompileAccumulatesMultipleIndependentErrors(t *testing.T) {
	cfg := &config.Config{
		Schema: config.SchemaConfig{Query: "Query"},
		Types: map[string]*config.Type{
			"Query": {
				Fields: map[string]*config.Field{
					"a": {Type: "String"},
					"b": {
						Type: "String",
						Http: &config.Http{Method: "GET", BaseURL: "https://x", Path: "/a"},
						Grpc: &config.Grpc{Service: "x.Y", Method: "Z"},
					},
				},
			},
		},
	}
	_, err := blueprint.Compile(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "has no resolver")
	require.Contains(t, err.Error(), "more than one resolver directive")
}

func TestCompileValidatesHTTPBatchKeyRequiresGetAndValueDiscriminant(t *testing.T) {
	cfg := &config.Config{
		Schema: config.SchemaConfig{Query: "Query"},
		Upstream: config.UpstreamConfig{
			Batch: &config.Batch{Delay: 10, MaxSize: 50},
		},
		Types: map[string]*config.Type{
			"Query": {
				Fields: map[string]*config.Field{
					"users": {
						Type: "User",
						List: true,
						Http: &config.Http{
							Method:   "POST",
							BaseURL:  "https://api.example.com",
							Path:     "/users",
							BatchKey: []string{"id"},
						},
					},
				},
			},
			"User": {Fields: map[string]*config.Field{"id": {Type: "ID"}}},
		},
	}
	_, err := blueprint.Compile(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "batchKey requires method GET")
	require.Contains(t, err.Error(), "templated on {{.value}}")
}

func TestCompileAcceptsValidHTTPBatchKey(t *testing.T) {
	cfg := &config.Config{
		Schema: config.SchemaConfig{Query: "Query"},
		Upstream: config.UpstreamConfig{
			Batch: &config.Batch{Delay: 10, MaxSize: 50},
		},
		Types: map[string]*config.Type{
			"Query": {
				Fields: map[string]*config.Field{
					"users": {
						Type: "User",
						List: true,
						Http: &config.Http{
							Method:  "GET",
							BaseURL: "https://api.example.com",
							Path:    "/users",
							Query:   []config.KeyValue{{Key: "ids", Value: "{{.value}}"}},
							BatchKey: []string{"id"},
						},
					},
				},
			},
			"User": {Fields: map[string]*config.Field{"id": {Type: "ID"}}},
		},
	}
	bp, err := blueprint.Compile(cfg)
	require.NoError(t, err)
	fb := bp.FieldBlueprint("Query", "users")
	require.NotNil(t, fb)
	io := fb.IR.(*ir.IO)
	require.NotNil(t, io.HTTP.GroupBy)
	require.Equal(t, "ids", io.HTTP.GroupBy.QueryParam)
}
