// Package reqtemplate holds the compiled forms of upstream calls: the
// mustache-templated URL, headers, query params and body that a field's
// @http/@graphQL/@grpc directive lowers into, plus the Render step that
// turns one against a request-scoped context into a concrete outbound call.
package reqtemplate

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tailcall-oss/gateway/internal/mustache"
)

// TemplateRenderError is returned when a required template variable has no
// value (spec §4.4 item 3).
type TemplateRenderError struct {
	Template string
	Cause    error
}

func (e *TemplateRenderError) Error() string {
	return fmt.Sprintf("template render failed for %q: %v", e.Template, e.Cause)
}

func (e *TemplateRenderError) Unwrap() error { return e.Cause }

// HTTP is the compiled form of an @http field resolver.
type HTTP struct {
	Method   string
	BaseURL  *mustache.Template // required: the rendered base path must resolve
	Query    []KV
	Headers  []KV
	Body     *mustache.Template
	Encoding string
}

// KV pairs a literal key with a mustache-templated value.
type KV struct {
	Key   string
	Value *mustache.Template
}

// NewHTTP compiles path/query/header/body strings (already concatenated
// base URL + path by the caller) into an HTTP request template.
func NewHTTP(method, urlTemplate string, query, headers []config2KV, body, encoding string) (*HTTP, error) {
	base, err := mustache.Parse(urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("reqtemplate: base url: %w", err)
	}
	t := &HTTP{Method: method, BaseURL: base, Encoding: encoding}
	for _, q := range query {
		tpl, err := mustache.Parse(q.Value)
		if err != nil {
			return nil, fmt.Errorf("reqtemplate: query %s: %w", q.Key, err)
		}
		t.Query = append(t.Query, KV{Key: q.Key, Value: tpl})
	}
	for _, h := range headers {
		tpl, err := mustache.Parse(h.Value)
		if err != nil {
			return nil, fmt.Errorf("reqtemplate: header %s: %w", h.Key, err)
		}
		t.Headers = append(t.Headers, KV{Key: h.Key, Value: tpl})
	}
	if body != "" {
		tpl, err := mustache.Parse(body)
		if err != nil {
			return nil, fmt.Errorf("reqtemplate: body: %w", err)
		}
		t.Body = tpl
	}
	return t, nil
}

// config2KV avoids an import cycle with internal/config; callers pass plain
// key/value pairs already extracted from config.KeyValue.
type config2KV struct {
	Key   string
	Value string
}

// KVFromPairs adapts (key, value) string pairs into config2KV, used by
// blueprint compilation when lowering config.KeyValue slices.
func KVFromPairs(pairs [][2]string) []config2KV {
	out := make([]config2KV, len(pairs))
	for i, p := range pairs {
		out[i] = config2KV{Key: p[0], Value: p[1]}
	}
	return out
}

// RenderedRequest is the fully-rendered, ready-to-dispatch form of an HTTP
// template, kept separate from *http.Request so it can double as a
// DataLoader batch key (it must be comparable/hashable-friendly).
type RenderedRequest struct {
	Method  string
	URL     string // includes query string, canonical (sorted) form
	Headers http.Header
	Body    []byte
}

// Render renders the template against ctx, percent-encoding path content and
// skipping headers that render empty. The URL template is the fully joined
// base+path string.
func (t *HTTP) Render(ctx mustache.PathString) (*RenderedRequest, error) {
	rawURL, err := t.BaseURL.RenderRequired(ctx)
	if err != nil {
		return nil, &TemplateRenderError{Template: t.BaseURL.String(), Cause: err}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("reqtemplate: invalid rendered url %q: %w", rawURL, err)
	}
	q := u.Query()
	for _, kv := range t.Query {
		val, err := kv.Value.Render(ctx)
		if err != nil {
			return nil, &TemplateRenderError{Template: kv.Value.String(), Cause: err}
		}
		q.Set(kv.Key, val)
	}
	u.RawQuery = q.Encode()

	headers := make(http.Header, len(t.Headers))
	for _, kv := range t.Headers {
		val, err := kv.Value.Render(ctx)
		if err != nil {
			return nil, &TemplateRenderError{Template: kv.Value.String(), Cause: err}
		}
		if strings.TrimSpace(val) == "" {
			continue // spec §4.4 item 2: skip a header whose value renders empty
		}
		headers.Set(kv.Key, val)
	}

	var body []byte
	if t.Body != nil {
		rendered, err := t.Body.Render(ctx)
		if err != nil {
			return nil, &TemplateRenderError{Template: t.Body.String(), Cause: err}
		}
		body = []byte(rendered)
	}

	return &RenderedRequest{
		Method:  t.Method,
		URL:     u.String(),
		Headers: headers,
		Body:    body,
	}, nil
}

// ToHTTPRequest converts a RenderedRequest into a stdlib *http.Request.
func (r *RenderedRequest) ToHTTPRequest() (*http.Request, error) {
	var bodyReader *strings.Reader
	if len(r.Body) > 0 {
		bodyReader = strings.NewReader(string(r.Body))
	} else {
		bodyReader = strings.NewReader("")
	}
	req, err := http.NewRequest(r.Method, r.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header = r.Headers
	return req, nil
}
