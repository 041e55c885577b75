package graphqlrt_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/graphqlrt"
	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/reqtemplate"
)

type fakeDoer struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (f fakeDoer) Do(req *http.Request) (*http.Response, error) { return f.fn(req) }

func jsonResponse(body string) *http.Response {
	return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}
}

func TestResolveGraphQLExtractsNamedField(t *testing.T) {
	tpl, err := reqtemplate.NewGraphQL("https://upstream.example.com/graphql", "user", reqtemplate.KVFromPairs([][2]string{{"id", "{{.args.id}}"}}), nil, false)
	require.NoError(t, err)

	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		require.Contains(t, string(body), `"query"`)
		return jsonResponse(`{"data":{"user":{"id":"7","name":"rex"}}}`), nil
	}}

	rt := graphqlrt.New(doer)
	v, err := rt.ResolveGraphQL(&ir.EvalContext{Context: context.Background(), Args: map[string]any{"id": "7"}}, &ir.GraphQLIO{Template: tpl, FieldName: "user"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": "7", "name": "rex"}, v)
}

func TestResolveGraphQLSurfacesUpstreamErrors(t *testing.T) {
	tpl, err := reqtemplate.NewGraphQL("https://upstream.example.com/graphql", "user", nil, nil, false)
	require.NoError(t, err)

	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(`{"errors":[{"message":"not found"}]}`), nil
	}}

	rt := graphqlrt.New(doer)
	_, err = rt.ResolveGraphQL(&ir.EvalContext{Context: context.Background()}, &ir.GraphQLIO{Template: tpl, FieldName: "user"})
	require.ErrorContains(t, err, "not found")
}
