package blueprint

import (
	"fmt"
	"strings"

	"github.com/tailcall-oss/gateway/internal/config"
	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/mustache"
	"github.com/tailcall-oss/gateway/internal/reqtemplate"
	"github.com/tailcall-oss/gateway/internal/valid"
)

// compileAllFields compiles every field's resolver directive into an IR
// tree, writing results directly into bp.Fields, and returns the
// accumulated validation outcome across the whole type graph.
func compileAllFields(cfg *config.Config, bp *Blueprint) valid.Valid[struct{}] {
	typeNames := sortedKeys(cfg.Types)
	return valid.MapTo(valid.FromIter(typeNames, func(typeName string) valid.Valid[struct{}] {
		t := cfg.Types[typeName]
		fieldNames := sortedKeys(t.Fields)
		return valid.MapTo(valid.FromIter(fieldNames, func(fieldName string) valid.Valid[struct{}] {
			f := t.Fields[fieldName]
			return compileField(cfg, typeName, fieldName, f, bp)
		}), struct{}{})
	}), struct{}{})
}

func compileField(cfg *config.Config, typeName, fieldName string, f *config.Field, bp *Blueprint) valid.Valid[struct{}] {
	trace := fmt.Sprintf("%s.%s", typeName, fieldName)

	kindCount := 0
	for _, set := range []bool{f.Http != nil, f.Grpc != nil, f.GraphQL != nil, f.Expr != nil, f.JS != nil, f.Call != nil} {
		if set {
			kindCount++
		}
	}
	if kindCount > 1 {
		return valid.Fail[struct{}]("field declares more than one resolver directive").Trace(trace)
	}
	if kindCount == 0 {
		return valid.Succeed(struct{}{}) // pass-through field, resolved by nested lookup
	}

	if f.Protected && cfg.Auth == nil {
		return valid.Fail[struct{}]("field is @protected but no top-level auth is configured").Trace(trace)
	}

	nodeV := compileResolverNode(cfg, f)
	return valid.Map(nodeV, func(node ir.IR) struct{} {
		if f.Protected {
			node = &ir.Protect{Inner: node}
		}
		if f.Cache != nil {
			node = &ir.Cache{Inner: node, MaxAgeSeconds: f.Cache.MaxAge}
		}
		bp.Fields[FieldKey{Type: typeName, Field: fieldName}] = &FieldBlueprint{
			IR:          node,
			Protected:   f.Protected,
			CacheMaxAge: cacheMaxAge(f.Cache),
		}
		return struct{}{}
	}).Trace(trace)
}

func cacheMaxAge(c *config.Cache) int {
	if c == nil {
		return 0
	}
	return c.MaxAge
}

func compileResolverNode(cfg *config.Config, f *config.Field) valid.Valid[ir.IR] {
	switch {
	case f.Http != nil:
		return compileHTTP(cfg, f.Http)
	case f.Grpc != nil:
		return compileGrpc(f.Grpc)
	case f.GraphQL != nil:
		return compileGraphQL(f.GraphQL)
	case f.Expr != nil:
		return compileExpr(f.Expr)
	case f.JS != nil:
		return compileJS(f.JS)
	case f.Call != nil:
		return compileCall(f.Call)
	default:
		return valid.Fail[ir.IR]("no resolver directive to compile")
	}
}

func kvPairs(kvs []config.KeyValue) [][2]string {
	out := make([][2]string, len(kvs))
	for i, kv := range kvs {
		out[i] = [2]string{kv.Key, kv.Value}
	}
	return out
}

// compileHTTP lowers an @http directive, validating the batchKey rules of
// spec §4.4/§4.5: batching is only valid on GET requests, requires a
// positive delay and max size, and the discriminant query parameter must
// be the single templated value "{{.value}}".
func compileHTTP(cfg *config.Config, h *config.Http) valid.Valid[ir.IR] {
	method := h.Method
	if method == "" {
		method = "GET"
	}

	url := h.BaseURL + h.Path
	tpl, err := reqtemplate.NewHTTP(method, url, reqtemplate.KVFromPairs(kvPairs(h.Query)), reqtemplate.KVFromPairs(kvPairs(h.Headers)), h.Body, h.Encoding)
	if err != nil {
		return valid.Failf[ir.IR]("compiling http template: %v", err)
	}

	node := &ir.HTTPIO{Template: tpl}
	if h.OnRequest != "" {
		node.Filter = &ir.HTTPFilter{ScriptName: h.OnRequest}
	}

	if len(h.BatchKey) == 0 {
		return valid.Succeed[ir.IR](&ir.IO{HTTP: node})
	}

	batchV := validateBatchKey(cfg, h, method)
	return valid.Map(batchV, func(gb *ir.GroupBy) ir.IR {
		node.GroupBy = gb
		return &ir.IO{HTTP: node}
	})
}

func validateBatchKey(cfg *config.Config, h *config.Http, method string) valid.Valid[*ir.GroupBy] {
	v := valid.Succeed[*ir.GroupBy](nil)

	if !strings.EqualFold(method, "GET") {
		v = valid.And(v, valid.Fail[*ir.GroupBy]("@http batchKey requires method GET"))
	}
	if cfg.Upstream.GetDelay() < 1 {
		v = valid.And(v, valid.Fail[*ir.GroupBy]("@http batchKey requires upstream.batch.delay >= 1"))
	}
	if cfg.Upstream.GetMaxSize() < 1 {
		v = valid.And(v, valid.Fail[*ir.GroupBy]("@http batchKey requires upstream.batch.maxSize >= 1"))
	}

	var discriminant string
	matches := 0
	for _, q := range h.Query {
		tpl, err := mustache.Parse(q.Value)
		if err == nil && tpl.ExpressionContainsHead("value") {
			matches++
			discriminant = q.Key
		}
	}
	if matches != 1 {
		v = valid.And(v, valid.Failf[*ir.GroupBy]("@http batchKey requires exactly one query parameter templated on {{.value}}, found %d", matches))
	}

	return valid.Map(v, func(*ir.GroupBy) *ir.GroupBy {
		return &ir.GroupBy{ResponsePath: h.BatchKey, QueryParam: discriminant}
	})
}

func compileGrpc(g *config.Grpc) valid.Valid[ir.IR] {
	tpl, err := reqtemplate.NewGrpc(g.BaseURL, g.Service, g.Method, g.Body, reqtemplate.KVFromPairs(kvPairs(g.Headers)))
	if err != nil {
		return valid.Failf[ir.IR]("compiling grpc template: %v", err)
	}
	return valid.Succeed[ir.IR](&ir.IO{Grpc: &ir.GrpcIO{Template: tpl}})
}

func compileGraphQL(g *config.GraphQL) valid.Valid[ir.IR] {
	tpl, err := reqtemplate.NewGraphQL(g.BaseURL, g.Name, reqtemplate.KVFromPairs(kvPairs(g.Args)), reqtemplate.KVFromPairs(kvPairs(g.Headers)), g.Batch)
	if err != nil {
		return valid.Failf[ir.IR]("compiling graphql template: %v", err)
	}
	return valid.Succeed[ir.IR](&ir.IO{GraphQL: &ir.GraphQLIO{Template: tpl, FieldName: g.Name, Batch: g.Batch}})
}

func compileJS(js *config.JS) valid.Valid[ir.IR] {
	if js.Name == "" {
		return valid.Fail[ir.IR]("@js requires a function name")
	}
	return valid.Succeed[ir.IR](&ir.IO{JS: &ir.JSIO{Name: js.Name}})
}

func compileExpr(e *config.Expr) valid.Valid[ir.IR] {
	body, ok := e.Body.(string)
	if !ok {
		return valid.Fail[ir.IR]("@expr currently supports scalar templated bodies only")
	}
	dv, err := reqtemplate.NewDynamicValue(body)
	if err != nil {
		return valid.Failf[ir.IR]("compiling expr template: %v", err)
	}
	return valid.Succeed[ir.IR](&ir.Dynamic{Value: dv})
}

// compileCall lowers a @call pipeline into a chain of Pipe nodes, one per
// step, starting from the parent value; each step's Pipe reads the argument
// named by the step's Query through a ContextOp.
func compileCall(c *config.Call) valid.Valid[ir.IR] {
	if len(c.Steps) == 0 {
		return valid.Fail[ir.IR]("@call requires at least one step")
	}
	var node ir.IR = &ir.ContextOp{Kind: ir.ContextOpValue}
	for _, step := range c.Steps {
		node = &ir.Pipe{
			First:  node,
			Second: &ir.ContextOp{Kind: ir.ContextOpArgs, Path: []string{step.Query}},
		}
	}
	return valid.Succeed(node)
}
