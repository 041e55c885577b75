// Package appcontext wires one compiled blueprint.Blueprint up to live
// transports: it composes internal/httprt, internal/graphqlrt,
// internal/grpcrt and internal/script into a single ir.Resolvers, builds
// the per-field dataloaders a @http batchKey needs, and adapts
// internal/auth into ir.Authorizer. internal/executor evaluates IR through
// the AppContext it returns, never touching the transport packages itself.
package appcontext

import (
	"fmt"
	"net/http"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/tailcall-oss/gateway/internal/auth"
	"github.com/tailcall-oss/gateway/internal/blueprint"
	"github.com/tailcall-oss/gateway/internal/dataloader"
	"github.com/tailcall-oss/gateway/internal/dedupe"
	"github.com/tailcall-oss/gateway/internal/graphqlrt"
	"github.com/tailcall-oss/gateway/internal/grpcrt"
	"github.com/tailcall-oss/gateway/internal/httprt"
	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/script"
)

// Options configures the transports and upstream-facing dependencies an
// AppContext assembles. HTTPDoer/GraphQLDoer default to an *http.Client
// with a 30-second timeout when left nil.
type Options struct {
	HTTPDoer    httprt.Doer
	GraphQLDoer graphqlrt.Doer
	GrpcFiles   []protoreflect.FileDescriptor
	GrpcTransport grpcrt.Transport
	ScriptFuncs map[string]script.Func
}

// AppContext holds everything internal/executor needs to evaluate a
// blueprint's IR trees for one running server.
type AppContext struct {
	Blueprint *blueprint.Blueprint

	Resolvers ir.Resolvers
	Auth      ir.Authorizer
	Cache     ir.CacheStore
	Dedupe    *dedupe.Result[string, any]

	scripts *script.Worker
}

// New assembles an AppContext for bp. Fields in bp's IR trees with an
// unassigned HTTP dataloader slot (a @http batchKey field) get one
// HTTPGroupLoader each, indexed into ir.HTTPIO.DLID in place.
func New(bp *blueprint.Blueprint, opts Options) *AppContext {
	httpDoer := opts.HTTPDoer
	if httpDoer == nil {
		httpDoer = &http.Client{Timeout: 30 * time.Second}
	}
	graphqlDoer := opts.GraphQLDoer
	if graphqlDoer == nil {
		graphqlDoer = &http.Client{Timeout: 30 * time.Second}
	}

	scripts := script.NewWorker(script.NewFuncEngine(opts.ScriptFuncs))

	loaders := assignHTTPLoaders(bp, httpDoer, time.Duration(bp.Upstream.GetDelay())*time.Millisecond, bp.Upstream.GetMaxSize())

	resolvers := &combinedResolvers{
		http:    httprt.New(httpDoer, loaders, scripts),
		graphql: graphqlrt.New(graphqlDoer),
		js:      scripts,
	}
	if opts.GrpcTransport != nil {
		resolvers.grpc = grpcrt.New(opts.GrpcFiles, opts.GrpcTransport)
	}

	ac := &AppContext{
		Blueprint: bp,
		Resolvers: resolvers,
		Auth:      &authorizer{g: auth.New(bp.Auth)},
		Cache:     newMemCache(),
		scripts:   scripts,
	}
	if bp.Server.Dedupe {
		ac.Dedupe = dedupe.NewResult[string, any]()
	}
	return ac
}

// Close releases the dedicated script goroutine. Safe to call once the
// server is done serving requests.
func (ac *AppContext) Close() {
	ac.scripts.Close()
}

// combinedResolvers composes the per-transport runtimes into one
// ir.Resolvers, the only shape internal/ir.Eval ever sees.
type combinedResolvers struct {
	http    *httprt.Runtime
	graphql *graphqlrt.Runtime
	grpc    *grpcrt.Runtime
	js      *script.Worker
}

func (c *combinedResolvers) ResolveHTTP(ctx *ir.EvalContext, leaf *ir.HTTPIO) (any, error) {
	return c.http.ResolveHTTP(ctx, leaf)
}

func (c *combinedResolvers) ResolveGraphQL(ctx *ir.EvalContext, leaf *ir.GraphQLIO) (any, error) {
	return c.graphql.ResolveGraphQL(ctx, leaf)
}

func (c *combinedResolvers) ResolveGrpc(ctx *ir.EvalContext, leaf *ir.GrpcIO) (any, error) {
	if c.grpc == nil {
		return nil, fmt.Errorf("appcontext: field uses @grpc but no grpc transport is configured")
	}
	return c.grpc.ResolveGrpc(ctx, leaf)
}

func (c *combinedResolvers) ResolveJS(ctx *ir.EvalContext, leaf *ir.JSIO) (any, error) {
	return c.js.Call(ctx.Context, leaf.Name, ctx.Value)
}

// authorizer adapts auth.GlobalContext to ir.Authorizer by pulling the
// Authorization header out of ambient eval state.
type authorizer struct {
	g *auth.GlobalContext
}

func (a *authorizer) Authorize(ctx *ir.EvalContext) error {
	header := ""
	if vs, ok := ctx.Headers["Authorization"]; ok && len(vs) > 0 {
		header = vs[0]
	}
	return a.g.Verify(auth.Credentials{Authorization: header})
}

// assignHTTPLoaders walks every field's IR tree looking for @http leaves
// with a GroupBy (batchKey configured but no loader assigned yet), builds
// one HTTPGroupLoader per such leaf, and points its DLID at the loader's
// index in the returned slice.
func assignHTTPLoaders(bp *blueprint.Blueprint, doer dataloader.HTTPDoer, delay time.Duration, maxSize int) []*dataloader.HTTPGroupLoader {
	var loaders []*dataloader.HTTPGroupLoader
	for _, fb := range bp.Fields {
		walkIR(fb.IR, func(io *ir.IO) {
			if io.HTTP == nil || io.HTTP.GroupBy == nil || io.HTTP.DLID != nil {
				return
			}
			idx := len(loaders)
			loaders = append(loaders, dataloader.NewHTTPGroupLoader(delay, maxSize, doer, dataloader.GroupBy{
				ResponsePath: io.HTTP.GroupBy.ResponsePath,
				QueryParam:   io.HTTP.GroupBy.QueryParam,
			}))
			io.HTTP.DLID = &idx
		})
	}
	return loaders
}

// walkIR visits every IO leaf reachable from node.
func walkIR(node ir.IR, visit func(*ir.IO)) {
	switch n := node.(type) {
	case nil:
	case *ir.IO:
		visit(n)
	case *ir.Map:
		walkIR(n.Inner, visit)
	case *ir.Pipe:
		walkIR(n.First, visit)
		walkIR(n.Second, visit)
	case *ir.Path:
		walkIR(n.Inner, visit)
	case *ir.Protect:
		walkIR(n.Inner, visit)
	case *ir.Cache:
		walkIR(n.Inner, visit)
	case *ir.Dynamic, *ir.ContextOp:
		// no IO leaf reachable
	}
}
