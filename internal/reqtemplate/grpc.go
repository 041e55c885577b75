package reqtemplate

import (
	"fmt"

	"github.com/tailcall-oss/gateway/internal/mustache"
)

// Grpc is the compiled form of a @grpc field resolver.
type Grpc struct {
	BaseURL *mustache.Template
	Service string
	Method  string
	Body    *mustache.Template
	Headers []KV
}

// NewGrpc compiles a @grpc directive's templates.
func NewGrpc(baseURL, service, method, body string, headers []config2KV) (*Grpc, error) {
	base, err := mustache.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("reqtemplate: grpc base url: %w", err)
	}
	g := &Grpc{BaseURL: base, Service: service, Method: method}
	if body != "" {
		tpl, err := mustache.Parse(body)
		if err != nil {
			return nil, fmt.Errorf("reqtemplate: grpc body: %w", err)
		}
		g.Body = tpl
	}
	for _, h := range headers {
		tpl, err := mustache.Parse(h.Value)
		if err != nil {
			return nil, fmt.Errorf("reqtemplate: grpc header %s: %w", h.Key, err)
		}
		g.Headers = append(g.Headers, KV{Key: h.Key, Value: tpl})
	}
	return g, nil
}

// RenderedGrpc is the fully-rendered outbound unary gRPC call.
type RenderedGrpc struct {
	Target  string
	Service string
	Method  string
	Body    []byte
	Headers map[string]string
}

// Render renders the base URL, body and headers against ctx.
func (g *Grpc) Render(ctx mustache.PathString) (*RenderedGrpc, error) {
	target, err := g.BaseURL.RenderRequired(ctx)
	if err != nil {
		return nil, &TemplateRenderError{Template: g.BaseURL.String(), Cause: err}
	}

	var body []byte
	if g.Body != nil {
		rendered, err := g.Body.Render(ctx)
		if err != nil {
			return nil, &TemplateRenderError{Template: g.Body.String(), Cause: err}
		}
		body = []byte(rendered)
	}

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

	return &RenderedGrpc{
		Target:  target,
		Service: g.Service,
		Method:  g.Method,
		Body:    body,
		Headers: headers,
	}, nil
}
