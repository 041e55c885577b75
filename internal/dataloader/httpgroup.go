package dataloader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/tailcall-oss/gateway/internal/reqtemplate"
)

// HTTPDoer is the subset of *http.Client an HTTPGroupLoader dispatches
// through, letting tests substitute a fake transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GroupBy names the batched responses' dotted grouping path and the query
// parameter whose per-call value is the discriminant, mirroring
// internal/ir.GroupBy without importing internal/ir (dataloader sits below
// the IR layer; internal/httprt adapts ir.GroupBy into this shape).
type GroupBy struct {
	ResponsePath []string
	QueryParam   string
}

// HTTPGroupLoader batches many @http calls that share everything but one
// "{{.value}}"-templated query parameter into a single upstream request,
// merging the discriminant values into repeated query params and
// regrouping the JSON array response by GroupBy.ResponsePath, the Go
// counterpart of the original HttpDataLoader::load's group_by branch.
type HTTPGroupLoader struct {
	loader *Loader[*reqtemplate.RenderedRequest, json.RawMessage]
}

// NewHTTPGroupLoader constructs a loader batching on the given delay
// window/max size, dispatching merged requests through doer.
func NewHTTPGroupLoader(delay time.Duration, maxSize int, doer HTTPDoer, group GroupBy) *HTTPGroupLoader {
	g := &HTTPGroupLoader{}
	g.loader = New[*reqtemplate.RenderedRequest, json.RawMessage](delay, maxSize, func(ctx context.Context, keys []*reqtemplate.RenderedRequest) (map[*reqtemplate.RenderedRequest]json.RawMessage, map[*reqtemplate.RenderedRequest]error) {
		return dispatchGrouped(ctx, doer, group, keys)
	})
	return g
}

// Load renders req through the shared batch, returning this call's slice
// of the merged response as a JSON array (possibly empty).
func (g *HTTPGroupLoader) Load(ctx context.Context, req *reqtemplate.RenderedRequest) (json.RawMessage, error) {
	return g.loader.Load(ctx, req)
}

func dispatchGrouped(ctx context.Context, doer HTTPDoer, group GroupBy, keys []*reqtemplate.RenderedRequest) (map[*reqtemplate.RenderedRequest]json.RawMessage, map[*reqtemplate.RenderedRequest]error) {
	values := map[*reqtemplate.RenderedRequest]json.RawMessage{}
	errs := map[*reqtemplate.RenderedRequest]error{}
	if len(keys) == 0 {
		return values, errs
	}

	// Sort keys so the merged URL is built deterministically (also makes
	// the outgoing request reproducible in tests).
	sorted := append([]*reqtemplate.RenderedRequest(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].URL < sorted[j].URL })

	merged, discriminants, err := mergeRequests(sorted, group.QueryParam)
	if err != nil {
		for _, k := range keys {
			errs[k] = err
		}
		return values, errs
	}

	httpReq, err := merged.ToHTTPRequest()
	if err != nil {
		for _, k := range keys {
			errs[k] = err
		}
		return values, errs
	}
	httpReq = httpReq.WithContext(ctx)

	resp, err := doer.Do(httpReq)
	if err != nil {
		for _, k := range keys {
			errs[k] = err
		}
		return values, errs
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		for _, k := range keys {
			errs[k] = err
		}
		return values, errs
	}

	var items []any
	if err := json.Unmarshal(body, &items); err != nil {
		for _, k := range keys {
			errs[k] = fmt.Errorf("dataloader: decoding grouped http response: %w", err)
		}
		return values, errs
	}

	grouped := groupByPath(items, group.ResponsePath)
	for _, k := range keys {
		id, ok := discriminants[k]
		if !ok {
			errs[k] = fmt.Errorf("dataloader: no discriminant value recorded for request %q", k.URL)
			continue
		}
		slice := grouped[id]
		if slice == nil {
			slice = []any{}
		}
		encoded, err := json.Marshal(slice)
		if err != nil {
			errs[k] = err
			continue
		}
		values[k] = encoded
	}
	return values, errs
}

// mergeRequests builds one RenderedRequest from sorted's shared
// method/headers/body, with queryParam's value repeated once per request
// -- the Go equivalent of the original's first_url.query_pairs_mut()
// .extend_pairs(pairs). It also records each request's own discriminant
// value so the response can be redistributed afterward.
func mergeRequests(sorted []*reqtemplate.RenderedRequest, queryParam string) (*reqtemplate.RenderedRequest, map[*reqtemplate.RenderedRequest]string, error) {
	first := sorted[0]
	u, err := url.Parse(first.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("dataloader: parsing request url %q: %w", first.URL, err)
	}
	q := u.Query()
	q.Del(queryParam)

	discriminants := make(map[*reqtemplate.RenderedRequest]string, len(sorted))
	for _, r := range sorted {
		ru, err := url.Parse(r.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("dataloader: parsing request url %q: %w", r.URL, err)
		}
		val := ru.Query().Get(queryParam)
		discriminants[r] = val
		q.Add(queryParam, val)
	}
	u.RawQuery = q.Encode()

	return &reqtemplate.RenderedRequest{
		Method:  first.Method,
		URL:     u.String(),
		Headers: first.Headers,
		Body:    first.Body,
	}, discriminants, nil
}

// groupByPath buckets items by the string-stringified value at path,
// matching the teacher's config-level dotted batchKey paths.
func groupByPath(items []any, path []string) map[string][]any {
	out := map[string][]any{}
	for _, item := range items {
		key, ok := stringifyPath(item, path)
		if !ok {
			continue
		}
		out[key] = append(out[key], item)
	}
	return out
}

func stringifyPath(v any, path []string) (string, bool) {
	cur := v
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = m[seg]
		if !ok {
			return "", false
		}
	}
	if cur == nil {
		return "", false
	}
	if s, ok := cur.(string); ok {
		return s, true
	}
	return fmt.Sprint(cur), true
}
