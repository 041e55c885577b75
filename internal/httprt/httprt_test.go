package httprt_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/httprt"
	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/reqtemplate"
)

type fakeDoer struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (f fakeDoer) Do(req *http.Request) (*http.Response, error) { return f.fn(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}
}

func TestResolveHTTPDecodesJSONBody(t *testing.T) {
	tpl, err := reqtemplate.NewHTTP("GET", "https://api.example.com/users/{{.args.id}}", nil, nil, "", "")
	require.NoError(t, err)

	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "https://api.example.com/users/7", req.URL.String())
		return jsonResponse(200, `{"id":"7","name":"rex"}`), nil
	}}

	rt := httprt.New(doer, nil, nil)
	v, err := rt.ResolveHTTP(&ir.EvalContext{Context: context.Background(), Args: map[string]any{"id": "7"}}, &ir.HTTPIO{Template: tpl})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": "7", "name": "rex"}, v)
}

func TestResolveHTTPSurfacesUpstreamErrorStatus(t *testing.T) {
	tpl, err := reqtemplate.NewHTTP("GET", "https://api.example.com/users/1", nil, nil, "", "")
	require.NoError(t, err)

	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(500, `{"error":"boom"}`), nil
	}}

	rt := httprt.New(doer, nil, nil)
	_, err = rt.ResolveHTTP(&ir.EvalContext{Context: context.Background()}, &ir.HTTPIO{Template: tpl})
	require.ErrorContains(t, err, "status 500")
}
