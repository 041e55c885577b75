package ir_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/reqtemplate"
)

type stubResolvers struct {
	http    func(*ir.EvalContext, *ir.HTTPIO) (any, error)
	graphQL func(*ir.EvalContext, *ir.GraphQLIO) (any, error)
	grpc    func(*ir.EvalContext, *ir.GrpcIO) (any, error)
	js      func(*ir.EvalContext, *ir.JSIO) (any, error)
}

func (s stubResolvers) ResolveHTTP(ctx *ir.EvalContext, io *ir.HTTPIO) (any, error) {
	return s.http(ctx, io)
}
func (s stubResolvers) ResolveGraphQL(ctx *ir.EvalContext, io *ir.GraphQLIO) (any, error) {
	return s.graphQL(ctx, io)
}
func (s stubResolvers) ResolveGrpc(ctx *ir.EvalContext, io *ir.GrpcIO) (any, error) {
	return s.grpc(ctx, io)
}
func (s stubResolvers) ResolveJS(ctx *ir.EvalContext, io *ir.JSIO) (any, error) {
	return s.js(ctx, io)
}

func TestEvalIODispatchesToMatchingResolver(t *testing.T) {
	rt := stubResolvers{
		http: func(*ir.EvalContext, *ir.HTTPIO) (any, error) { return "from-http", nil },
	}
	node := &ir.IO{HTTP: &ir.HTTPIO{}}
	v, err := ir.Eval(node, &ir.EvalContext{}, rt, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "from-http", v)
}

func TestEvalContextOpReadsAmbientState(t *testing.T) {
	ctx := &ir.EvalContext{
		Value:   map[string]any{"id": 7},
		Args:    map[string]any{"name": "rex"},
		Headers: map[string][]string{"X-Trace": {"abc"}},
		Vars:    map[string]string{"region": "us"},
	}

	v, err := ir.Eval(&ir.ContextOp{Kind: ir.ContextOpValue, Path: []string{"id"}}, ctx, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 7, v)

	v, err = ir.Eval(&ir.ContextOp{Kind: ir.ContextOpArgs, Path: []string{"name"}}, ctx, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "rex", v)

	v, err = ir.Eval(&ir.ContextOp{Kind: ir.ContextOpHeaders, Path: []string{"X-Trace"}}, ctx, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "abc", v)

	v, err = ir.Eval(&ir.ContextOp{Kind: ir.ContextOpVars, Path: []string{"region"}}, ctx, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "us", v)
}

func TestEvalMapTransformsInnerResult(t *testing.T) {
	inner := &ir.ContextOp{Kind: ir.ContextOpValue}
	node := &ir.Map{Inner: inner, Name: "double", Transform: func(v any) (any, error) {
		return v.(int) * 2, nil
	}}
	v, err := ir.Eval(node, &ir.EvalContext{Value: 21}, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestEvalMapWrapsTransformError(t *testing.T) {
	node := &ir.Map{Inner: &ir.ContextOp{Kind: ir.ContextOpValue}, Name: "boom", Transform: func(any) (any, error) {
		return nil, errors.New("bad")
	}}
	_, err := ir.Eval(node, &ir.EvalContext{}, nil, nil, nil)
	require.ErrorContains(t, err, "boom")
}

func TestEvalPipeFeedsFirstResultAsSecondsValue(t *testing.T) {
	first := &ir.Map{Inner: &ir.ContextOp{Kind: ir.ContextOpArgs, Path: []string{"id"}}, Transform: func(v any) (any, error) {
		return v, nil
	}}
	second := &ir.ContextOp{Kind: ir.ContextOpValue}
	node := &ir.Pipe{First: first, Second: second}

	v, err := ir.Eval(node, &ir.EvalContext{Args: map[string]any{"id": "u1"}}, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "u1", v)
}

func TestEvalPathProjectsNestedValue(t *testing.T) {
	inner := &ir.ContextOp{Kind: ir.ContextOpValue}
	node := &ir.Path{Inner: inner, Segments: []string{"profile", "name"}}
	ctx := &ir.EvalContext{Value: map[string]any{"profile": map[string]any{"name": "rex"}}}

	v, err := ir.Eval(node, ctx, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "rex", v)
}

func TestEvalPathMissingSegmentYieldsNil(t *testing.T) {
	node := &ir.Path{Inner: &ir.ContextOp{Kind: ir.ContextOpValue}, Segments: []string{"missing"}}
	v, err := ir.Eval(node, &ir.EvalContext{Value: map[string]any{}}, nil, nil, nil)
	require.NoError(t, err)
	require.Nil(t, v)
}

type denyAuth struct{ err error }

func (d denyAuth) Authorize(*ir.EvalContext) error { return d.err }

func TestEvalProtectDeniesWithoutEvaluatingInner(t *testing.T) {
	called := false
	inner := &ir.Map{Inner: &ir.ContextOp{Kind: ir.ContextOpValue}, Transform: func(v any) (any, error) {
		called = true
		return v, nil
	}}
	node := &ir.Protect{Inner: inner}

	_, err := ir.Eval(node, &ir.EvalContext{}, nil, denyAuth{err: errors.New("denied")}, nil)
	require.ErrorContains(t, err, "denied")
	require.False(t, called)
}

func TestEvalProtectPassesThroughWhenAuthorizerNil(t *testing.T) {
	node := &ir.Protect{Inner: &ir.ContextOp{Kind: ir.ContextOpValue}}
	v, err := ir.Eval(node, &ir.EvalContext{Value: "ok"}, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

type memCache struct {
	hits   int
	values map[string]any
}

func (m *memCache) Get(key string) (any, bool) { v, ok := m.values[key]; return v, ok }
func (m *memCache) Set(key string, value any, _ int) {
	if m.values == nil {
		m.values = map[string]any{}
	}
	m.values[key] = value
}

func TestEvalCacheStoresAndReusesResult(t *testing.T) {
	calls := 0
	inner := &ir.Map{Inner: &ir.ContextOp{Kind: ir.ContextOpValue}, Transform: func(v any) (any, error) {
		calls++
		return v, nil
	}}
	node := &ir.Cache{Inner: inner, MaxAgeSeconds: 60}
	cache := &memCache{}
	ctx := &ir.EvalContext{Value: "v", Args: map[string]any{"id": "1"}}

	v1, err := ir.Eval(node, ctx, nil, nil, cache)
	require.NoError(t, err)
	v2, err := ir.Eval(node, ctx, nil, nil, cache)
	require.NoError(t, err)

	require.Equal(t, v1, v2)
	require.Equal(t, 1, calls)
}

func TestEvalDynamicRendersTemplateAgainstContext(t *testing.T) {
	// Dynamic delegates straight to reqtemplate.DynamicValue.Render; here we
	// confirm Eval hands it ctx unchanged, so the args head resolves.
	dv, err := reqtemplate.NewDynamicValue("{{.args.name}}")
	require.NoError(t, err)
	ctx := &ir.EvalContext{Args: map[string]any{"name": "rex"}}
	v, err := ir.Eval(&ir.Dynamic{Value: dv}, ctx, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "rex", v)
}
