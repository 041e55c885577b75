package blueprint

import (
	"github.com/tailcall-oss/gateway/internal/config"
	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/schema"
)

// applyAddFields hoists every @addField-marked field up as a new sibling
// field on its declaring type, resolved by projecting through the
// original field's path. Supplements the distilled directive set: it is
// not named by the core [MODULE] blocks but the original implementation
// exposes it as config::AddField, and it composes naturally with the
// existing field-resolution machinery.
func applyAddFields(cfg *config.Config, bp *Blueprint) {
	if bp.Schema == nil {
		return
	}
	for typeName, t := range cfg.Types {
		st := bp.Schema.Types[typeName]
		if st == nil {
			continue
		}
		for fieldName, f := range t.Fields {
			if f.AddField == nil {
				continue
			}
			hoisted := resolveAddFieldType(bp.Schema, st, f.AddField.Path)
			if hoisted == nil {
				continue
			}
			st.Fields = append(st.Fields, &schema.Field{
				Name: f.AddField.Name,
				Type: hoisted,
			})

			base := &ir.ContextOp{Kind: ir.ContextOpValue, Path: []string{fieldName}}
			bp.Fields[FieldKey{Type: typeName, Field: f.AddField.Name}] = &FieldBlueprint{
				IR: &ir.Path{Inner: base, Segments: f.AddField.Path},
			}
		}
	}
}

// resolveAddFieldType walks path through st's declared fields (and their
// named types) to find the schema.TypeRef the hoisted field should carry.
func resolveAddFieldType(sch *schema.Schema, st *schema.Type, path []string) *schema.TypeRef {
	cur := st
	var fieldType *schema.TypeRef
	for i, seg := range path {
		var found *schema.Field
		for _, f := range cur.Fields {
			if f.Name == seg {
				found = f
				break
			}
		}
		if found == nil {
			return nil
		}
		fieldType = found.Type
		if i == len(path)-1 {
			return fieldType
		}
		next := sch.Types[schema.GetNamedType(fieldType)]
		if next == nil {
			return nil
		}
		cur = next
	}
	return fieldType
}
