// Package ir defines the executable intermediate representation that the
// blueprint compiler lowers a field's resolver directive into. An IR value
// is a small expression tree: at its leaves sit the IO calls (the three
// upstream call shapes plus @js scripts), and above them sit combinators
// (Map, Pipe, Path, Dynamic, Protect, Cache, ContextOp) that transform or
// gate a leaf's result.
//
// Eval walks that tree directly; it only delegates the four IO leaf
// shapes out, through the Resolvers interface, to internal/httprt,
// internal/graphqlrt, internal/grpcrt and internal/script (composed by
// internal/appcontext) so this package never imports any of them.
package ir

import (
	"context"
	"fmt"

	"github.com/tailcall-oss/gateway/internal/reqtemplate"
)

// IR is one node of the resolver expression tree.
type IR interface {
	irNode()
}

// IO is a leaf node: exactly one of HTTP, GraphQL, Grpc, JS is set.
type IO struct {
	HTTP    *HTTPIO
	GraphQL *GraphQLIO
	Grpc    *GrpcIO
	JS      *JSIO
}

func (*IO) irNode() {}

// GroupBy names the dotted response path and discriminant query param a
// batched @http call's responses are regrouped by (spec §4.5).
type GroupBy struct {
	ResponsePath []string
	QueryParam   string
}

// HTTPFilter is the @http onRequest script hook, evaluated by
// internal/script before the request is dispatched.
type HTTPFilter struct {
	ScriptName string
}

// HTTPIO is the @http leaf.
type HTTPIO struct {
	Template *reqtemplate.HTTP
	GroupBy  *GroupBy // non-nil when batchKey is configured
	DLID     *int     // index into httprt.Runtime.Loaders, nil if unbatched
	Filter   *HTTPFilter
}

// GraphQLIO is the @graphQL leaf.
type GraphQLIO struct {
	Template  *reqtemplate.GraphQL
	FieldName string
	Batch     bool
	DLID      *int
}

// GrpcIO is the @grpc leaf.
type GrpcIO struct {
	Template *reqtemplate.Grpc
	DLID     *int
}

// JSIO is the @js leaf: calls a named script function with the parent's
// resolved value.
type JSIO struct {
	Name string
}

// ShouldDedupe reports whether an IO call should be routed through the
// dedupe layer before evaluation. Ported from the original evaluator's
// early-out `!server.dedupe || !is_query`: dedupe only ever applies to
// query operations, and only when the server enables it.
func ShouldDedupe(dedupeEnabled, isQuery bool) bool {
	return dedupeEnabled && isQuery
}

// Map applies a pure transform to Inner's evaluated value.
type Map struct {
	Inner     IR
	Transform func(any) (any, error)
	Name      string // diagnostic label, e.g. "groupBy", "flatten"
}

func (*Map) irNode() {}

// Pipe evaluates First, then feeds its result as the evaluation input to
// Second. Used for @call's step chains.
type Pipe struct {
	First  IR
	Second IR
}

func (*Pipe) irNode() {}

// Path projects a nested value out of Inner's result by a dotted path,
// used for @addField and single-field wrapper flattening.
type Path struct {
	Inner    IR
	Segments []string
}

func (*Path) irNode() {}

// Dynamic evaluates a mustache-style template directly against the current
// resolution context, with no upstream call (the @expr leaf case where the
// body is a literal/templated value rather than an IO).
type Dynamic struct {
	Value *reqtemplate.DynamicValue
}

func (*Dynamic) irNode() {}

// Protect gates Inner behind an authentication/authorization check; denial
// short-circuits with an auth error instead of evaluating Inner.
type Protect struct {
	Inner IR
}

func (*Protect) irNode() {}

// Cache wraps Inner with a response cache keyed by Inner's identity plus
// the current value and arguments, honoring MaxAgeSeconds from the @cache
// directive.
type Cache struct {
	Inner         IR
	MaxAgeSeconds int
}

func (*Cache) irNode() {}

// ContextOpKind selects which piece of ambient request state ContextOp
// reads (as opposed to dispatching an upstream call).
type ContextOpKind int

const (
	ContextOpValue ContextOpKind = iota // the parent resolved value
	ContextOpArgs
	ContextOpHeaders
	ContextOpVars
)

// ContextOp reads ambient request/parent state without dispatching a call,
// used for simple field-alias and pass-through resolvers.
type ContextOp struct {
	Kind ContextOpKind
	Path []string
}

func (*ContextOp) irNode() {}

// EvalContext is the ambient state an IR tree is evaluated against. It
// implements mustache.PathString so IO leaves can render their templates
// directly from it.
type EvalContext struct {
	Context context.Context

	// Value is the parent field's resolved value, read in a mustache
	// expression through the "value" head.
	Value any

	Args    map[string]any
	Headers map[string][]string
	Vars    map[string]string

	IsQuery       bool // true for query operations, false for mutation
	DedupeEnabled bool
}

// PathString implements mustache.PathString over args/headers/vars/value.
func (c *EvalContext) PathString(path []string) (string, bool) {
	if len(path) == 0 {
		return "", false
	}
	switch path[0] {
	case "value":
		return pathIntoValue(c.Value, path[1:])
	case "args":
		return pathIntoValue(c.Args, path[1:])
	case "vars":
		if len(path) < 2 {
			return "", false
		}
		v, ok := c.Vars[path[1]]
		return v, ok
	case "headers":
		if len(path) < 2 {
			return "", false
		}
		vs, ok := c.Headers[path[1]]
		if !ok || len(vs) == 0 {
			return "", false
		}
		return vs[0], true
	default:
		return "", false
	}
}

func pathIntoValue(v any, path []string) (string, bool) {
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
	return stringify(cur)
}

func stringify(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}
