package blueprint

import (
	"github.com/tailcall-oss/gateway/internal/config"
	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/schema"
	"github.com/tailcall-oss/gateway/internal/valid"
)

// applyTransformers runs the post-compilation passes over bp: @addField
// hoisting, unused-type tree-shaking and the single-field wrapper inlining
// the original implementation calls FlattenSingleField. All three run after
// field compilation so they see the fully resolved IR tree and type graph.
func applyTransformers(cfg *config.Config, v valid.Valid[*Blueprint]) valid.Valid[*Blueprint] {
	return valid.Map(v, func(bp *Blueprint) *Blueprint {
		if bp == nil {
			return bp
		}
		applyAddFields(cfg, bp)
		treeShake(cfg, bp)
		flattenSingleField(cfg, bp)
		return bp
	})
}

// treeShake drops schema types that are unreachable from the query/mutation
// roots, the same reachability walk the original implementation's
// tree_shake transformer performs before emitting SDL.
func treeShake(cfg *config.Config, bp *Blueprint) {
	if bp.Schema == nil {
		return
	}
	reachable := map[string]bool{}
	var visit func(name string)
	visit = func(name string) {
		if reachable[name] {
			return
		}
		t := bp.Schema.Types[name]
		if t == nil {
			return
		}
		reachable[name] = true
		for _, f := range t.Fields {
			visit(schema.GetNamedType(f.Type))
		}
		for _, iface := range t.Interfaces {
			visit(iface)
		}
		for _, possible := range t.PossibleTypes {
			visit(possible)
		}
	}
	if bp.Schema.QueryType != "" {
		visit(bp.Schema.QueryType)
	}
	if bp.Schema.MutationType != "" {
		visit(bp.Schema.MutationType)
	}

	for name := range bp.Schema.Types {
		if !reachable[name] && !isBuiltinScalar(name) {
			delete(bp.Schema.Types, name)
		}
	}
}

func isBuiltinScalar(name string) bool {
	switch name {
	case "String", "Int", "Float", "Boolean", "ID":
		return true
	default:
		return false
	}
}

// flattenSingleField inlines a type whose only purpose is wrapping a
// single nested field (e.g. a generated "XxxResponse { data: Xxx }"
// envelope), ported from config/transformer/flatten_single_field.rs. Every
// field elsewhere in the schema that is typed at such a wrapper, where the
// wrapper's config explicitly marks its single field @omit, has its
// declared Type rewritten to the wrapper's single inner field's type; an
// ir.Path node is spliced onto the field's compiled IR so evaluation still
// reads through the wrapper object at runtime.
func flattenSingleField(cfg *config.Config, bp *Blueprint) {
	if bp.Schema == nil {
		return
	}

	wrapperInner := map[string]*schema.Field{} // wrapper type name -> its one field
	for name, t := range bp.Schema.Types {
		if t.Kind != schema.TypeKindObject || len(t.Fields) != 1 {
			continue
		}
		cfgType := cfg.FindType(name)
		if cfgType == nil {
			continue
		}
		var only *config.Field
		for _, f := range cfgType.Fields {
			only = f
		}
		if only == nil || !only.Omit {
			continue // only flatten wrappers explicitly marked @omit
		}
		wrapperInner[name] = t.Fields[0]
	}
	if len(wrapperInner) == 0 {
		return
	}

	for typeName, t := range bp.Schema.Types {
		for _, f := range t.Fields {
			wrapperName := schema.GetNamedType(f.Type)
			inner, ok := wrapperInner[wrapperName]
			if !ok {
				continue
			}
			f.Type = inner.Type

			key := FieldKey{Type: typeName, Field: f.Name}
			if fb, ok := bp.Fields[key]; ok {
				fb.IR = &ir.Path{Inner: fb.IR, Segments: []string{inner.Name}}
			}
		}
	}
}
