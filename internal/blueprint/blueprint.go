// Package blueprint compiles a validated config.Config into an executable
// Blueprint: a GraphQL schema plus, for every field that carries a resolver
// directive, the ir.IR tree the executor evaluates to resolve it.
//
// Compilation never stops at the first problem. Every step is expressed as
// a valid.TryFold so independent mistakes across the document (a bad
// @http on one field, a dangling type reference on another) are reported
// together, the same way the teacher's protoir builder accumulates
// Violations instead of bailing out on the first one.
package blueprint

import (
	"fmt"
	"sort"

	"github.com/tailcall-oss/gateway/internal/config"
	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/schema"
	"github.com/tailcall-oss/gateway/internal/valid"
)

// FieldKey names a field within the compiled schema.
type FieldKey struct {
	Type  string
	Field string
}

// FieldBlueprint is the compiled form of one field's resolver.
type FieldBlueprint struct {
	IR          ir.IR
	Protected   bool
	CacheMaxAge int
}

// Blueprint is the fully compiled, executable form of a Config.
type Blueprint struct {
	Schema    *schema.Schema
	Fields    map[FieldKey]*FieldBlueprint
	Server    config.ServerConfig
	Upstream  config.UpstreamConfig
	Telemetry config.TelemetryConfig
	Auth      *config.AuthConfig
}

// FieldBlueprint looks up the compiled resolver for (typeName, fieldName),
// returning nil when the field has no resolver directive (a plain
// pass-through field resolved by nested-value lookup).
func (b *Blueprint) FieldBlueprint(typeName, fieldName string) *FieldBlueprint {
	return b.Fields[FieldKey{Type: typeName, Field: fieldName}]
}

// Compile lowers cfg into a Blueprint. All validation failures across the
// whole document are collected before returning an error.
func Compile(cfg *config.Config) (*Blueprint, error) {
	v := compile(cfg)
	return v.ToResult()
}

func compile(cfg *config.Config) valid.Valid[*Blueprint] {
	bp := &Blueprint{
		Fields:    map[FieldKey]*FieldBlueprint{},
		Server:    cfg.Server,
		Upstream:  cfg.Upstream,
		Telemetry: cfg.Telemetry,
		Auth:      cfg.Auth,
	}

	schemaV := compileSchema(cfg)
	rootsV := validateSchemaRoots(cfg)
	fieldsV := compileAllFields(cfg, bp)

	result := valid.Map(valid.And(valid.And(schemaV, rootsV), fieldsV), func(s *schema.Schema) *Blueprint {
		bp.Schema = s
		return bp
	})
	return applyTransformers(cfg, result)
}

// compileSchema builds the schema.Schema directly from the config's type
// declarations, mirroring internal/schema.BuildFromIR's deterministic,
// sorted-iteration construction style but sourcing config.Type instead of
// a protoir.Definition.
func compileSchema(cfg *config.Config) valid.Valid[*schema.Schema] {
	s := &schema.Schema{
		QueryType:    cfg.Schema.Query,
		MutationType: cfg.Schema.Mutation,
		Types:        map[string]*schema.Type{},
		Directives:   map[string]*schema.Directive{},
	}

	names := sortedKeys(cfg.Types)
	for _, name := range names {
		t := cfg.Types[name]
		st := &schema.Type{Name: name}
		if t.Interface {
			st.Kind = schema.TypeKindInterface
		} else {
			st.Kind = schema.TypeKindObject
		}
		st.Interfaces = append([]string{}, t.Implements...)
		sort.Strings(st.Interfaces)

		fieldNames := sortedKeys(t.Fields)
		for _, fname := range fieldNames {
			f := t.Fields[fname]
			st.Fields = append(st.Fields, &schema.Field{
				Name: fname,
				Type: fieldTypeRef(f),
				Arguments: compileArgs(f.Args),
			})
		}
		s.Types[name] = st
	}

	for name, e := range cfg.Enums {
		st := &schema.Type{Name: name, Kind: schema.TypeKindEnum}
		for _, v := range e.Values {
			st.EnumValues = append(st.EnumValues, &schema.EnumValue{Name: v})
		}
		s.Types[name] = st
	}

	for name, u := range cfg.Unions {
		st := &schema.Type{Name: name, Kind: schema.TypeKindUnion}
		st.PossibleTypes = append([]string{}, u.Types...)
		sort.Strings(st.PossibleTypes)
		s.Types[name] = st
	}

	return valid.Succeed(s)
}

func fieldTypeRef(f *config.Field) *schema.TypeRef {
	t := schema.NamedType(f.Type)
	if f.List {
		t = schema.ListType(t)
	}
	if f.NonNull {
		t = schema.NonNullType(t)
	}
	return t
}

func compileArgs(args map[string]*config.Arg) []*schema.InputValue {
	names := sortedKeys(args)
	out := make([]*schema.InputValue, 0, len(names))
	for _, name := range names {
		a := args[name]
		t := schema.NamedType(a.Type)
		if a.List {
			t = schema.ListType(t)
		}
		if a.NonNull {
			t = schema.NonNullType(t)
		}
		out = append(out, &schema.InputValue{Name: name, Type: t})
	}
	return out
}

// validateSchemaRoots checks that every field of every root operation type
// is resolvable, recursing into nested object types with a
// visited set so cyclic type graphs terminate instead of looping forever.
// Ported from the original implementation's validate_type_has_resolvers.
func validateSchemaRoots(cfg *config.Config) valid.Valid[struct{}] {
	if cfg.Schema.Query == "" {
		return valid.Fail[struct{}]("schema must declare a query root type")
	}
	v := typeHasResolvers(cfg, cfg.Schema.Query, map[string]bool{}).Trace("schema.query")
	if cfg.Schema.Mutation != "" {
		v = valid.And(v, typeHasResolvers(cfg, cfg.Schema.Mutation, map[string]bool{}).Trace("schema.mutation"))
	}
	return v
}

func typeHasResolvers(cfg *config.Config, typeName string, visited map[string]bool) valid.Valid[struct{}] {
	if visited[typeName] {
		return valid.Succeed(struct{}{}) // cycle: already validated on this path
	}
	visited[typeName] = true

	t := cfg.FindType(typeName)
	if t == nil {
		return valid.Failf[struct{}]("type %q is not defined", typeName)
	}
	if len(t.Fields) == 0 {
		return valid.Failf[struct{}]("type %q declares no fields", typeName)
	}

	fieldNames := sortedKeys(t.Fields)
	result := valid.FromIter(fieldNames, func(fname string) valid.Valid[struct{}] {
		f := t.Fields[fname]
		if f.HasResolver() {
			return valid.Succeed(struct{}{})
		}
		if cfg.IsScalar(f.Type) {
			return valid.Failf[struct{}]("field %q.%s has no resolver and its type %q is a scalar", typeName, fname, f.Type)
		}
		// visited is shared across sibling fields deliberately: a cycle
		// reached from any branch of this root only needs validating once.
		return typeHasResolvers(cfg, f.Type, visited).Trace(fmt.Sprintf("%s.%s", typeName, fname))
	})
	return valid.MapTo(result, struct{}{})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
