package reqtemplate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/reqtemplate"
)

type mapContext map[string]string

func (m mapContext) PathString(path []string) (string, bool) {
	key := ""
	for i, seg := range path {
		if i > 0 {
			key += "."
		}
		key += seg
	}
	v, ok := m[key]
	return v, ok
}

func TestHTTPRenderPercentEncodesQueryAndSkipsEmptyHeaders(t *testing.T) {
	tpl, err := reqtemplate.NewHTTP(
		"GET",
		"https://api.example.com/users/{{.args.id}}",
		reqtemplate.KVFromPairs([][2]string{{"tag", "{{.args.tag}}"}}),
		reqtemplate.KVFromPairs([][2]string{
			{"Authorization", "Bearer {{.env.TOKEN}}"},
			{"X-Empty", "{{.env.MISSING}}"},
		}),
		"",
		"",
	)
	require.NoError(t, err)

	ctx := mapContext{
		"args.id":  "42 rex",
		"args.tag": "a b",
		"env.TOKEN": "abc",
	}
	rendered, err := tpl.Render(ctx)
	require.NoError(t, err)

	require.Equal(t, "GET", rendered.Method)
	require.Contains(t, rendered.URL, "/users/42%20rex")
	require.Contains(t, rendered.URL, "tag=a+b")
	require.Equal(t, "Bearer abc", rendered.Headers.Get("Authorization"))
	require.Empty(t, rendered.Headers.Get("X-Empty"))
}

func TestHTTPRenderFailsWhenBaseURLUnresolved(t *testing.T) {
	tpl, err := reqtemplate.NewHTTP("GET", "https://api.example.com/users/{{.args.id}}", nil, nil, "", "")
	require.NoError(t, err)

	_, err = tpl.Render(mapContext{})
	require.Error(t, err)

	var renderErr *reqtemplate.TemplateRenderError
	require.ErrorAs(t, err, &renderErr)
}

func TestGraphQLRenderAssemblesQueryAndVariables(t *testing.T) {
	g, err := reqtemplate.NewGraphQL(
		"https://upstream.example.com/graphql",
		"user",
		reqtemplate.KVFromPairs([][2]string{{"id", "{{.args.id}}"}}),
		nil,
		false,
	)
	require.NoError(t, err)

	rendered, err := g.Render(mapContext{"args.id": "7"})
	require.NoError(t, err)
	require.Equal(t, "query { user(id: $id) }", rendered.Query)
	require.Equal(t, "7", rendered.Variables["id"])
}

func TestGrpcRenderSkipsEmptyHeaders(t *testing.T) {
	g, err := reqtemplate.NewGrpc(
		"grpc://upstream.example.com:9000",
		"user.UserService",
		"GetUser",
		`{"id": "{{.args.id}}"}`,
		reqtemplate.KVFromPairs([][2]string{{"X-Empty", "{{.env.MISSING}}"}}),
	)
	require.NoError(t, err)

	rendered, err := g.Render(mapContext{"args.id": "9"})
	require.NoError(t, err)
	require.Equal(t, "user.UserService", rendered.Service)
	require.Equal(t, "GetUser", rendered.Method)
	require.Contains(t, string(rendered.Body), `"id": "9"`)
	require.NotContains(t, rendered.Headers, "X-Empty")
}
