package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/ir"
)

func TestShouldDedupeOnlyWhenEnabledAndQuery(t *testing.T) {
	require.True(t, ir.ShouldDedupe(true, true))
	require.False(t, ir.ShouldDedupe(true, false))
	require.False(t, ir.ShouldDedupe(false, true))
	require.False(t, ir.ShouldDedupe(false, false))
}

func TestEvalContextPathStringResolvesHeads(t *testing.T) {
	ctx := &ir.EvalContext{
		Value:   map[string]any{"id": 7},
		Args:    map[string]any{"name": "rex"},
		Headers: map[string][]string{"X-Trace": {"abc"}},
		Vars:    map[string]string{"region": "us"},
	}

	v, ok := ctx.PathString([]string{"value", "id"})
	require.True(t, ok)
	require.Equal(t, "7", v)

	v, ok = ctx.PathString([]string{"args", "name"})
	require.True(t, ok)
	require.Equal(t, "rex", v)

	v, ok = ctx.PathString([]string{"headers", "X-Trace"})
	require.True(t, ok)
	require.Equal(t, "abc", v)

	v, ok = ctx.PathString([]string{"vars", "region"})
	require.True(t, ok)
	require.Equal(t, "us", v)

	_, ok = ctx.PathString([]string{"args", "missing"})
	require.False(t, ok)
}

func TestIOVariantsAreMutuallyExclusiveByConstruction(t *testing.T) {
	leaf := &ir.IO{JS: &ir.JSIO{Name: "greet"}}
	require.Nil(t, leaf.HTTP)
	require.Nil(t, leaf.GraphQL)
	require.Nil(t, leaf.Grpc)
	require.Equal(t, "greet", leaf.JS.Name)
}
