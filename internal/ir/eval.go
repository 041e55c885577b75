package ir

import (
	"fmt"
)

// Resolvers dispatches the four call shapes an IO leaf can carry.
// internal/httprt, internal/graphqlrt, internal/grpcrt and internal/script
// each implement the slice of this interface they own; internal/appcontext
// composes the four into one value so Eval never imports any of them
// directly (avoiding an import cycle back into this package).
type Resolvers interface {
	ResolveHTTP(ctx *EvalContext, io *HTTPIO) (any, error)
	ResolveGraphQL(ctx *EvalContext, io *GraphQLIO) (any, error)
	ResolveGrpc(ctx *EvalContext, io *GrpcIO) (any, error)
	ResolveJS(ctx *EvalContext, io *JSIO) (any, error)
}

// Authorizer backs the Protect node: Authorize returns a non-nil error to
// deny the request, short-circuiting evaluation of the protected subtree.
type Authorizer interface {
	Authorize(ctx *EvalContext) error
}

// CacheStore backs the Cache node. Get reports a hit with its cached value;
// Set stores value under key for maxAgeSeconds (0 means cache forever, per
// the @cache directive's default).
type CacheStore interface {
	Get(key string) (any, bool)
	Set(key string, value any, maxAgeSeconds int)
}

// Eval walks node, evaluating it against ctx. rt resolves IO leaves; auth
// and cache may be nil, in which case Protect/Cache nodes are evaluated as
// plain pass-throughs (no authorization check, no caching). internal/executor
// always passes the AppContext's Auth and Cache, which appcontext.New sets.
func Eval(node IR, ctx *EvalContext, rt Resolvers, auth Authorizer, cache CacheStore) (any, error) {
	switch n := node.(type) {
	case *IO:
		return evalIO(n, ctx, rt)
	case *Map:
		v, err := Eval(n.Inner, ctx, rt, auth, cache)
		if err != nil {
			return nil, err
		}
		out, err := n.Transform(v)
		if err != nil {
			return nil, fmt.Errorf("ir: map %q: %w", n.Name, err)
		}
		return out, nil
	case *Pipe:
		v, err := Eval(n.First, ctx, rt, auth, cache)
		if err != nil {
			return nil, err
		}
		next := *ctx
		next.Value = v
		return Eval(n.Second, &next, rt, auth, cache)
	case *Path:
		v, err := Eval(n.Inner, ctx, rt, auth, cache)
		if err != nil {
			return nil, err
		}
		return pathIntoAny(v, n.Segments), nil
	case *Dynamic:
		return n.Value.Render(ctx)
	case *Protect:
		if auth != nil {
			if err := auth.Authorize(ctx); err != nil {
				return nil, err
			}
		}
		return Eval(n.Inner, ctx, rt, auth, cache)
	case *Cache:
		if cache == nil {
			return Eval(n.Inner, ctx, rt, auth, cache)
		}
		key := cacheKey(n, ctx)
		if v, ok := cache.Get(key); ok {
			return v, nil
		}
		v, err := Eval(n.Inner, ctx, rt, auth, cache)
		if err != nil {
			return nil, err
		}
		cache.Set(key, v, n.MaxAgeSeconds)
		return v, nil
	case *ContextOp:
		return evalContextOp(n, ctx), nil
	default:
		return nil, fmt.Errorf("ir: eval: unknown node type %T", node)
	}
}

func evalIO(io *IO, ctx *EvalContext, rt Resolvers) (any, error) {
	switch {
	case io.HTTP != nil:
		return rt.ResolveHTTP(ctx, io.HTTP)
	case io.GraphQL != nil:
		return rt.ResolveGraphQL(ctx, io.GraphQL)
	case io.Grpc != nil:
		return rt.ResolveGrpc(ctx, io.Grpc)
	case io.JS != nil:
		return rt.ResolveJS(ctx, io.JS)
	default:
		return nil, fmt.Errorf("ir: IO node has no call configured")
	}
}

func evalContextOp(n *ContextOp, ctx *EvalContext) any {
	switch n.Kind {
	case ContextOpValue:
		return pathIntoAny(ctx.Value, n.Path)
	case ContextOpArgs:
		return pathIntoAny(ctx.Args, n.Path)
	case ContextOpHeaders:
		if len(n.Path) == 0 {
			return nil
		}
		vs, ok := ctx.Headers[n.Path[0]]
		if !ok || len(vs) == 0 {
			return nil
		}
		return vs[0]
	case ContextOpVars:
		if len(n.Path) == 0 {
			return nil
		}
		v, ok := ctx.Vars[n.Path[0]]
		if !ok {
			return nil
		}
		return v
	default:
		return nil
	}
}

// pathIntoAny projects a nested value out of v by a dotted path of map
// keys, the any-valued counterpart of pathIntoValue used by template
// rendering. A miss at any segment yields nil rather than an error: a
// resolver reading a field that happens to be absent on the parent value
// is treated as null, not a hard failure.
func pathIntoAny(v any, path []string) any {
	cur := v
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

// cacheKey builds a deterministic fingerprint for a Cache node's current
// evaluation. Go's fmt prints map keys in sorted order, so formatting
// ctx.Args/ctx.Value directly gives a stable string across calls with the
// same inputs without hand-rolling a canonical encoder.
func cacheKey(n *Cache, ctx *EvalContext) string {
	return fmt.Sprintf("%p|%v|%v", n.Inner, ctx.Value, ctx.Args)
}
