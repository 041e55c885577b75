// Package plan walks a parsed GraphQL operation against a compiled
// Blueprint and produces an OperationPlan: a field tree where every field
// node already carries its resolver IR, ready for the executor to
// evaluate without any further schema lookups.
package plan

import (
	"fmt"

	"github.com/tailcall-oss/gateway/internal/blueprint"
	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/language"
	"github.com/tailcall-oss/gateway/internal/schema"
)

// FieldID uniquely identifies one field node within a Plan.
type FieldID uint64

// Field is one selected field, with its children pre-resolved.
type Field struct {
	ID           FieldID
	ResponseName string
	Name         string
	Type         *schema.TypeRef
	IR           ir.IR // nil for a plain pass-through field (resolved by nested lookup)
	Args         map[string]*language.Value
	ArgDefs      []*schema.InputValue // the field's declared arguments, for coercion/defaulting
	Children     []*Field
	Position     *language.Position
}

// Plan is the field tree for one operation.
type Plan struct {
	Operation           language.Operation
	VariableDefinitions language.VariableDefinitionList
	Fields               []*Field
}

// Build collects doc's operation (opName, or the sole operation when the
// document defines exactly one) against schema/bp, attaching each field's
// compiled IR from the blueprint.
func Build(doc *language.QueryDocument, opName string, sch *schema.Schema, bp *blueprint.Blueprint) (*Plan, error) {
	op := findOperation(doc, opName)
	if op == nil {
		return nil, fmt.Errorf("plan: operation %q not found", opName)
	}

	var rootType *schema.Type
	switch op.Operation {
	case language.Query:
		rootType = sch.GetQueryType()
	case language.Mutation:
		rootType = sch.GetMutationType()
	case language.Subscription:
		rootType = sch.GetSubscriptionType()
	default:
		return nil, fmt.Errorf("plan: unsupported operation type %q", op.Operation)
	}
	if rootType == nil {
		return nil, fmt.Errorf("plan: no root type for operation %q", op.Operation)
	}

	b := &builder{doc: doc, schema: sch, bp: bp, nextID: 1}
	fields, err := b.collect(rootType, op.SelectionSet)
	if err != nil {
		return nil, err
	}
	return &Plan{Operation: op.Operation, VariableDefinitions: op.VariableDefinitions, Fields: fields}, nil
}

type builder struct {
	doc    *language.QueryDocument
	schema *schema.Schema
	bp     *blueprint.Blueprint
	nextID uint64
}

func findOperation(doc *language.QueryDocument, opName string) *language.OperationDefinition {
	if opName == "" && len(doc.Operations) == 1 {
		for _, op := range doc.Operations {
			return op
		}
	}
	for _, op := range doc.Operations {
		if op.Name == opName {
			return op
		}
	}
	return nil
}

// collect groups selectionSet into response-named field nodes, merging
// fragment spreads and inline fragments the same way the teacher's
// collectFields does (ported, adapted to attach IR instead of invoking a
// Runtime).
func (b *builder) collect(objectType *schema.Type, selectionSet language.SelectionSet) ([]*Field, error) {
	groups := newFieldGroups()
	visited := map[string]bool{}
	if err := b.collectInto(objectType, selectionSet, groups, visited); err != nil {
		return nil, err
	}

	fields := make([]*Field, 0, len(groups.order))
	for _, name := range groups.order {
		astFields := groups.byName[name]
		f, err := b.buildField(objectType, name, astFields)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (b *builder) collectInto(objectType *schema.Type, selectionSet language.SelectionSet, groups *fieldGroups, visited map[string]bool) error {
	for _, sel := range selectionSet {
		switch s := sel.(type) {
		case *language.Field:
			name := s.Alias
			if name == "" {
				name = s.Name
			}
			groups.add(name, s)
		case *language.InlineFragment:
			if s.TypeCondition != "" && s.TypeCondition != objectType.Name {
				continue
			}
			if err := b.collectInto(objectType, s.SelectionSet, groups, visited); err != nil {
				return err
			}
		case *language.FragmentSpread:
			if visited[s.Name] {
				continue
			}
			visited[s.Name] = true
			fd := b.doc.Fragments.ForName(s.Name)
			if fd == nil {
				return fmt.Errorf("plan: fragment %q not found", s.Name)
			}
			if fd.TypeCondition != "" && fd.TypeCondition != objectType.Name {
				continue
			}
			if err := b.collectInto(objectType, fd.SelectionSet, groups, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) buildField(objectType *schema.Type, responseName string, astFields []*language.Field) (*Field, error) {
	first := astFields[0]

	if first.Name == "__typename" {
		return &Field{ID: b.id(), ResponseName: responseName, Name: "__typename", Position: first.Position}, nil
	}

	fieldDef := lookupField(objectType, first.Name)
	if fieldDef == nil {
		return nil, fmt.Errorf("plan: unknown field %q on type %q", first.Name, objectType.Name)
	}

	args := map[string]*language.Value{}
	for _, a := range first.Arguments {
		args[a.Name] = a.Value
	}

	f := &Field{
		ID:           b.id(),
		ResponseName: responseName,
		Name:         first.Name,
		Type:         fieldDef.Type,
		Args:         args,
		ArgDefs:      fieldDef.Arguments,
		Position:     first.Position,
	}
	if b.bp != nil {
		if fb := b.bp.FieldBlueprint(objectType.Name, first.Name); fb != nil {
			f.IR = fb.IR
		}
	}

	namedType := schema.GetNamedType(fieldDef.Type)
	childType := b.schema.Types[namedType]
	if childType != nil && (childType.Kind == schema.TypeKindObject || childType.Kind == schema.TypeKindInterface) {
		var merged language.SelectionSet
		for _, af := range astFields {
			merged = append(merged, af.SelectionSet...)
		}
		children, err := b.collect(childType, merged)
		if err != nil {
			return nil, err
		}
		f.Children = children
	}

	return f, nil
}

func (b *builder) id() FieldID {
	id := FieldID(b.nextID)
	b.nextID++
	return id
}

func lookupField(t *schema.Type, name string) *schema.Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

type fieldGroups struct {
	order  []string
	byName map[string][]*language.Field
}

func newFieldGroups() *fieldGroups {
	return &fieldGroups{byName: map[string][]*language.Field{}}
}

func (g *fieldGroups) add(name string, f *language.Field) {
	if _, ok := g.byName[name]; !ok {
		g.order = append(g.order, name)
	}
	g.byName[name] = append(g.byName[name], f)
}
