package reqtemplate

import (
	"fmt"

	"github.com/tailcall-oss/gateway/internal/mustache"
)

// GraphQL is the compiled form of an @graphQL field resolver: a single
// outbound query assembled from the field name and templated arguments.
type GraphQL struct {
	BaseURL   *mustache.Template
	FieldName string
	Args      []KV
	Headers   []KV
	Batch     bool
}

// NewGraphQL compiles a @graphQL directive's templates.
func NewGraphQL(baseURL, fieldName string, args, headers []config2KV, batch bool) (*GraphQL, error) {
	base, err := mustache.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("reqtemplate: graphql base url: %w", err)
	}
	g := &GraphQL{BaseURL: base, FieldName: fieldName, Batch: batch}
	for _, a := range args {
		tpl, err := mustache.Parse(a.Value)
		if err != nil {
			return nil, fmt.Errorf("reqtemplate: graphql arg %s: %w", a.Key, err)
		}
		g.Args = append(g.Args, KV{Key: a.Key, Value: tpl})
	}
	for _, h := range headers {
		tpl, err := mustache.Parse(h.Value)
		if err != nil {
			return nil, fmt.Errorf("reqtemplate: graphql header %s: %w", h.Key, err)
		}
		g.Headers = append(g.Headers, KV{Key: h.Key, Value: tpl})
	}
	return g, nil
}

// RenderedQuery is the fully-rendered outbound GraphQL request.
type RenderedQuery struct {
	URL       string
	Query     string
	Variables map[string]any
	Headers   map[string]string
}

// Render assembles the outbound query string "query { field(args...) }"
// and renders the base URL/headers against ctx.
func (g *GraphQL) Render(ctx mustache.PathString) (*RenderedQuery, error) {
	url, err := g.BaseURL.RenderRequired(ctx)
	if err != nil {
		return nil, &TemplateRenderError{Template: g.BaseURL.String(), Cause: err}
	}

	variables := make(map[string]any, len(g.Args))
	var argPairs string
	for i, a := range g.Args {
		val, err := a.Value.Render(ctx)
		if err != nil {
			return nil, &TemplateRenderError{Template: a.Value.String(), Cause: err}
		}
		variables[a.Key] = val
		if i > 0 {
			argPairs += ", "
		}
		argPairs += fmt.Sprintf("%s: $%s", a.Key, a.Key)
	}

	query := g.FieldName
	if len(g.Args) > 0 {
		query = fmt.Sprintf("%s(%s)", g.FieldName, argPairs)
	}
	query = fmt.Sprintf("query { %s }", query)

	headers := map[string]string{}
	for _, h := range g.Headers {
		val, err := h.Value.Render(ctx)
		if err != nil {
			return nil, &TemplateRenderError{Template: h.Value.String(), Cause: err}
		}
		if val != "" {
			headers[h.Key] = val
		}
	}

	return &RenderedQuery{URL: url, Query: query, Variables: variables, Headers: headers}, nil
}
