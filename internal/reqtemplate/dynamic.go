package reqtemplate

import (
	"fmt"

	"github.com/tailcall-oss/gateway/internal/mustache"
)

// DynamicValue is a @expr body that is a template (or nested structure of
// templates) evaluated directly against the request context, with no
// upstream call.
type DynamicValue struct {
	Template *mustache.Template
	Fields   map[string]*DynamicValue
	Items    []*DynamicValue
}

// NewDynamicValue compiles a scalar mustache body. Object/array @expr
// bodies are compiled field-by-field by the blueprint compiler, which
// builds up Fields/Items directly.
func NewDynamicValue(body string) (*DynamicValue, error) {
	tpl, err := mustache.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("reqtemplate: dynamic value: %w", err)
	}
	return &DynamicValue{Template: tpl}, nil
}

// Render evaluates the value against ctx, recursing into Fields/Items for
// object/array bodies.
func (d *DynamicValue) Render(ctx mustache.PathString) (any, error) {
	if d.Template != nil {
		return d.Template.Render(ctx)
	}
	if d.Fields != nil {
		out := make(map[string]any, len(d.Fields))
		for k, v := range d.Fields {
			rendered, err := v.Render(ctx)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	}
	out := make([]any, len(d.Items))
	for i, v := range d.Items {
		rendered, err := v.Render(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = rendered
	}
	return out, nil
}
