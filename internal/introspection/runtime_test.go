package introspection

import (
	"testing"

	schema "github.com/tailcall-oss/gateway/internal/schema"
)

func buildSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sdl := `type Query { hello: String }`
	sch, err := schema.BuildFromSDL(sdl)
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	return sch
}

func TestExtendSchemaAddsMetaFieldsAndTypes(t *testing.T) {
	sch := buildSchema(t)
	extended := ExtendSchema(sch)

	qt := extended.GetQueryType()
	if qt == nil {
		t.Fatalf("extended schema has no query type")
	}
	var sawSchemaField, sawTypeField bool
	for _, f := range qt.Fields {
		if f.Name == "__schema" {
			sawSchemaField = true
		}
		if f.Name == "__type" {
			sawTypeField = true
		}
	}
	if !sawSchemaField || !sawTypeField {
		t.Fatalf("expected __schema and __type on Query, fields=%v", qt.Fields)
	}
	if extended.Types["__Schema"] == nil || extended.Types["__Type"] == nil {
		t.Fatalf("expected __Schema/__Type meta-types in extended schema")
	}
	if extended.Types["Query"] == nil {
		t.Fatalf("expected original types preserved")
	}
}

func TestResolveMetaFieldWalksSchemaAndType(t *testing.T) {
	sch := buildSchema(t)
	extended := ExtendSchema(sch)

	root := RootSchema(extended)
	v, ok := ResolveMetaField(extended, root, "queryType", nil)
	if !ok {
		t.Fatalf("expected queryType to resolve")
	}
	qt, ok := v.(*schema.Type)
	if !ok || qt.Name != "Query" {
		t.Fatalf("queryType = %#v", v)
	}

	name, ok := ResolveMetaField(extended, qt, "name", nil)
	if !ok || name != "Query" {
		t.Fatalf("type.name = %v ok=%v", name, ok)
	}

	rt := RootType(extended, map[string]any{"name": "Query"})
	if rt == nil || rt.Name != "Query" {
		t.Fatalf("RootType(name: Query) = %#v", rt)
	}
}
