package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/tailcall-oss/gateway/internal/appcontext"
	"github.com/tailcall-oss/gateway/internal/blueprint"
	"github.com/tailcall-oss/gateway/internal/config"
	"github.com/tailcall-oss/gateway/internal/reqid"
	"google.golang.org/grpc/metadata"
)

type fakeDoer struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (f fakeDoer) Do(req *http.Request) (*http.Response, error) { return f.fn(req) }

func jsonBody(s string) *http.Response {
	return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(s)), Header: http.Header{}}
}

func helloConfig() *config.Config {
	return &config.Config{
		Schema: config.SchemaConfig{Query: "Query"},
		Types: map[string]*config.Type{
			"Query": {
				Fields: map[string]*config.Field{
					"hello": {
						Type: "String",
						Http: &config.Http{Method: "GET", BaseURL: "https://api.example.com", Path: "/hello"},
					},
				},
			},
		},
	}
}

func newTestHandler(t *testing.T, doer fakeDoer, opts ...Option) *Handler {
	t.Helper()
	bp, err := blueprint.Compile(helloConfig())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ac := appcontext.New(bp, appcontext.Options{HTTPDoer: doer, GraphQLDoer: doer})
	t.Cleanup(ac.Close)
	h, err := New(ac, opts...)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return h
}

func TestForwardedHeaders(t *testing.T) {
	var captured *http.Request
	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonBody(`"world"`), nil
	}}
	h := newTestHandler(t, doer, WithMetadataHeaders("X-Test"))

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test", "abc")
	req.Header.Set("X-Other", "nope")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	md, _ := metadata.FromOutgoingContext(captured.Context())
	if md == nil || len(md.Get("x-test")) == 0 || md.Get("x-test")[0] != "abc" || len(md.Get("x-other")) > 0 {
		t.Fatalf("metadata not propagated correctly: %v", md)
	}
}

func TestForwardedHeadersDefaultEmpty(t *testing.T) {
	var captured *http.Request
	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonBody(`"world"`), nil
	}}
	h := newTestHandler(t, doer)

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test", "abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	md, _ := metadata.FromOutgoingContext(captured.Context())
	if md != nil && len(md.Get("x-test")) > 0 {
		t.Fatalf("header should not be forwarded by default: %v", md)
	}
}

func TestCORSAndPreflight(t *testing.T) {
	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonBody(`"world"`), nil
	}}
	h := newTestHandler(t, doer, WithCORS("*"))

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	pre := httptest.NewRequest("OPTIONS", "/", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	if pw.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pw.Code)
	}
	if pw.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight missing CORS header")
	}
	if pw.Header().Get("Access-Control-Allow-Headers") != "X-Test" {
		t.Fatalf("preflight missing allow headers")
	}
}

func TestMaxBodyBytes(t *testing.T) {
	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonBody(`"world"`), nil
	}}
	h := newTestHandler(t, doer, WithMaxBodyBytes(10))

	body := bytes.NewBufferString(`{"query":"1234567890"}`)
	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	var captured *http.Request
	doer := fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonBody(`"world"`), nil
	}}
	h := newTestHandler(t, doer)

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}

	capturedID, _ := reqid.FromContext(captured.Context())
	if capturedID == 0 {
		t.Fatalf("missing request id in context")
	}
	md, _ := metadata.FromOutgoingContext(captured.Context())
	if got := md.Get("graphql-request-id"); len(got) == 0 || got[0] != strconv.FormatInt(capturedID, 10) {
		t.Fatalf("metadata mismatch: %v id %d", md, capturedID)
	}
}
