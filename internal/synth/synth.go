// Package synth converts a plan.Plan's field tree plus the executor.Store
// an Executor populated into a GraphQL response: applying null-propagation
// (a non-null field that errored or resolved null nulls out its nearest
// nullable ancestor instead) and building each error's dotted response
// path as it walks. Kept as its own package, rather than folded back into
// internal/executor, so evaluation concurrency and response shaping stay
// decoupled -- the original evaluator's jit::exec module makes the same
// split between its Store-writing Executor and its separate Synth.
package synth

import (
	"fmt"

	"github.com/tailcall-oss/gateway/internal/executor"
	"github.com/tailcall-oss/gateway/internal/plan"
	"github.com/tailcall-oss/gateway/internal/schema"
)

// Synthesize walks p's root fields, reading store for each field
// instance's outcome, and returns the assembled ExecutionResult.
func Synthesize(p *plan.Plan, store *executor.Store) *executor.ExecutionResult {
	data := make(map[string]any, len(p.Fields))
	var errs []executor.GraphQLError

	for _, f := range p.Fields {
		v, _ := completeField(store, f, executor.Path{}, executor.ResponsePath{f.ResponseName}, &errs)
		data[f.ResponseName] = v
	}

	return &executor.ExecutionResult{Data: data, Errors: errs}
}

// completeField resolves one field instance into its response value,
// reporting whether a non-null field of this one bottomed out (forcing
// the caller -- the nearest nullable ancestor -- to null itself out per
// GraphQL's null-propagation rule).
func completeField(store *executor.Store, f *plan.Field, path executor.Path, respPath executor.ResponsePath, errs *[]executor.GraphQLError) (any, bool) {
	if err, ok := store.Err(f.ID, path); ok {
		appendError(errs, err.Error(), respPath)
		return nil, schema.IsNonNull(f.Type)
	}

	if len(f.Children) == 0 {
		return completeLeaf(store, f, path, respPath, errs)
	}

	if f.Type.IsList() {
		return completeList(store, f, path, respPath, errs)
	}

	return completeObject(store, f, path, respPath, errs)
}

func completeLeaf(store *executor.Store, f *plan.Field, path executor.Path, respPath executor.ResponsePath, errs *[]executor.GraphQLError) (any, bool) {
	v, _ := store.Value(f.ID, path)
	if v == nil && schema.IsNonNull(f.Type) {
		appendError(errs, fmt.Sprintf("cannot return null for non-nullable field %q", f.ResponseName), respPath)
		return nil, true
	}
	return v, false
}

func completeObject(store *executor.Store, f *plan.Field, path executor.Path, respPath executor.ResponsePath, errs *[]executor.GraphQLError) (any, bool) {
	v, ok := store.Value(f.ID, path)
	if !ok || v == nil {
		if schema.IsNonNull(f.Type) {
			appendError(errs, fmt.Sprintf("cannot return null for non-nullable field %q", f.ResponseName), respPath)
			return nil, true
		}
		return nil, false
	}

	obj := make(map[string]any, len(f.Children))
	bubble := false
	for _, child := range f.Children {
		childPath := appendPath(respPath, child.ResponseName)
		cv, cb := completeField(store, child, path, childPath, errs)
		if cb {
			bubble = true
		}
		obj[child.ResponseName] = cv
	}
	if bubble {
		return nil, schema.IsNonNull(f.Type)
	}
	return obj, false
}

func completeList(store *executor.Store, f *plan.Field, path executor.Path, respPath executor.ResponsePath, errs *[]executor.GraphQLError) (any, bool) {
	n, ok := store.Len(f.ID, path)
	if !ok {
		if schema.IsNonNull(f.Type) {
			appendError(errs, fmt.Sprintf("cannot return null for non-nullable field %q", f.ResponseName), respPath)
			return nil, true
		}
		return nil, false
	}

	elemNonNull := schema.IsNonNull(listElementType(f.Type))
	items := make([]any, n)
	bubbleList := false

	for i := 0; i < n; i++ {
		itemPath := path.Child(i)
		itemRespPath := appendPath(respPath, i)

		obj := make(map[string]any, len(f.Children))
		itemBubble := false
		for _, child := range f.Children {
			childRespPath := appendPath(itemRespPath, child.ResponseName)
			cv, cb := completeField(store, child, itemPath, childRespPath, errs)
			if cb {
				itemBubble = true
			}
			obj[child.ResponseName] = cv
		}

		if itemBubble && elemNonNull {
			bubbleList = true
			items[i] = nil
			continue
		}
		if itemBubble {
			items[i] = nil
			continue
		}
		items[i] = obj
	}

	if bubbleList {
		return nil, schema.IsNonNull(f.Type)
	}
	return items, false
}

// listElementType returns a list field's element type, unwrapping the
// field's own non-null wrapper first if present.
func listElementType(t *schema.TypeRef) *schema.TypeRef {
	if schema.IsNonNull(t) {
		t = schema.Unwrap(t)
	}
	return schema.Unwrap(t)
}

func appendError(errs *[]executor.GraphQLError, message string, respPath executor.ResponsePath) {
	*errs = append(*errs, executor.GraphQLError{Message: message, Path: append(executor.ResponsePath{}, respPath...)})
}

func appendPath(respPath executor.ResponsePath, elem any) executor.ResponsePath {
	out := make(executor.ResponsePath, len(respPath)+1)
	copy(out, respPath)
	out[len(respPath)] = elem
	return out
}
