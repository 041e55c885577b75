// Package executor evaluates a plan.Plan's field tree against one
// appcontext.AppContext, fanning work out across goroutines instead of the
// original evaluator's depth-synchronized batching: a field's children, and
// a list field's items, are all independent subtrees once the field's own
// value is in hand, so nothing stops them resolving concurrently. Every
// field instance's outcome -- value, list length, or error -- lands in a
// Store; internal/synth reads the Store afterward to apply GraphQL's
// null-propagation and response-shaping rules, decoupled from evaluation.
package executor

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/tailcall-oss/gateway/internal/appcontext"
	"github.com/tailcall-oss/gateway/internal/introspection"
	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/language"
	"github.com/tailcall-oss/gateway/internal/plan"
	"github.com/tailcall-oss/gateway/internal/schema"
)

// Executor evaluates plans against one AppContext.
type Executor struct {
	ac *appcontext.AppContext
}

// New constructs an Executor bound to ac.
func New(ac *appcontext.AppContext) *Executor {
	return &Executor{ac: ac}
}

// Execute coerces vars against p's declared variable definitions, then
// evaluates every root field concurrently, returning the populated Store
// once every field instance it reaches has recorded an outcome. headers is
// the inbound request's header set, the ambient state @http.onRequest and
// @protected templates read.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan, headers map[string][]string, vars map[string]any) (*Store, error) {
	coercedVars, err := coerceVariableValues(p.VariableDefinitions, vars)
	if err != nil {
		return nil, err
	}

	store := newStore()
	rootType := e.rootTypeName(p.Operation)
	isQuery := p.Operation == language.Query

	var wg sync.WaitGroup
	wg.Add(len(p.Fields))
	for _, f := range p.Fields {
		go func(f *plan.Field) {
			defer wg.Done()
			e.executeField(ctx, &wg, store, f, rootType, nil, Path{}, headers, coercedVars, isQuery)
		}(f)
	}
	wg.Wait()

	return store, nil
}

func (e *Executor) rootTypeName(op language.Operation) string {
	switch op {
	case language.Mutation:
		return e.ac.Blueprint.Schema.MutationType
	case language.Subscription:
		return e.ac.Blueprint.Schema.SubscriptionType
	default:
		return e.ac.Blueprint.Schema.QueryType
	}
}

// executeField resolves one field instance and records its outcome into
// store. If the field has children (an object/interface return type), it
// fans out into goroutines -- one per child, and per list item when the
// field is a list -- registered against wg before
// returning -- the caller only waits on wg, never on executeField's return,
// so a parent and its descendants genuinely run concurrently.
func (e *Executor) executeField(ctx context.Context, wg *sync.WaitGroup, store *Store, f *plan.Field, objectTypeName string, parentValue any, path Path, headers map[string][]string, vars map[string]any, isQuery bool) {
	if f.Name == "__typename" {
		store.setValue(f.ID, path, objectTypeName)
		return
	}

	args, err := coerceArgumentValues(f.ArgDefs, f.Args, vars)
	if err != nil {
		store.setErr(f.ID, path, err)
		return
	}

	raw, err := e.resolve(ctx, f, parentValue, args, headers, isQuery)
	if err != nil {
		store.setErr(f.ID, path, err)
		return
	}

	if len(f.Children) == 0 {
		store.setValue(f.ID, path, raw)
		return
	}

	childObjectType := schema.GetNamedType(f.Type)

	if f.Type.IsList() {
		if raw == nil {
			store.setLen(f.ID, path, 0)
			return
		}
		items, ok := toSlice(raw)
		if !ok {
			store.setErr(f.ID, path, fmt.Errorf("field %q: expected a list value, got %T", f.ResponseName, raw))
			return
		}
		store.setLen(f.ID, path, len(items))
		for i, item := range items {
			itemPath := path.Child(i)
			item := item
			wg.Add(len(f.Children))
			for _, child := range f.Children {
				child := child
				go func() {
					defer wg.Done()
					e.executeField(ctx, wg, store, child, childObjectType, item, itemPath, headers, vars, isQuery)
				}()
			}
		}
		return
	}

	store.setValue(f.ID, path, raw)
	if raw == nil {
		return
	}
	wg.Add(len(f.Children))
	for _, child := range f.Children {
		child := child
		go func() {
			defer wg.Done()
			e.executeField(ctx, wg, store, child, childObjectType, raw, path, headers, vars, isQuery)
		}()
	}
}

// resolve computes one field instance's raw value: the result of
// evaluating its IR tree, dedupe-gated the same way the original
// evaluator gates a query's upstream calls, or -- for a field with no
// resolver directive at all -- a plain same-named lookup on the parent's
// resolved value.
func (e *Executor) resolve(ctx context.Context, f *plan.Field, parentValue any, args map[string]any, headers map[string][]string, isQuery bool) (any, error) {
	if f.IR == nil {
		switch f.Name {
		case "__schema":
			return introspection.RootSchema(e.ac.Blueprint.Schema), nil
		case "__type":
			return introspection.RootType(e.ac.Blueprint.Schema, args), nil
		}
		if v, ok := introspection.ResolveMetaField(e.ac.Blueprint.Schema, parentValue, f.Name, args); ok {
			return v, nil
		}
		return lookupField(parentValue, f.Name), nil
	}

	evalCtx := &ir.EvalContext{
		Context:       ctx,
		Value:         parentValue,
		Args:          args,
		Headers:       headers,
		IsQuery:       isQuery,
		DedupeEnabled: e.ac.Blueprint.Server.Dedupe,
	}

	if e.ac.Dedupe != nil && ir.ShouldDedupe(evalCtx.DedupeEnabled, evalCtx.IsQuery) {
		key := fingerprint(f.IR, parentValue, args)
		return e.ac.Dedupe.Dedupe(key, func() (any, error) {
			return ir.Eval(f.IR, evalCtx, e.ac.Resolvers, e.ac.Auth, e.ac.Cache)
		})
	}
	return ir.Eval(f.IR, evalCtx, e.ac.Resolvers, e.ac.Auth, e.ac.Cache)
}

// fingerprint builds a deterministic dedupe key for one IR evaluation,
// keyed by the IR node's identity rather than the plan.Field wrapping it,
// so two aliases selecting the same underlying field (same compiled IR)
// with the same parent value and arguments coalesce into one call. This
// is the same shape internal/ir's @cache leaf uses for its own cache key.
func fingerprint(node ir.IR, parentValue any, args map[string]any) string {
	return fmt.Sprintf("%p|%v|%v", node, parentValue, args)
}

func lookupField(v any, name string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[name]
}

// toSlice accepts both the []any a JSON-decoded upstream body produces
// and the typed slices (e.g. []*schema.Type) an in-process resolver like
// internal/introspection returns directly.
func toSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
