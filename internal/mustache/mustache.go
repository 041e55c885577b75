// Package mustache implements the gateway's template language: the subset
// of mustache used to reference request context inside config-declared
// upstream calls, e.g. "Bearer {{.env.TOKEN}}" or "{{.args.id}}".
package mustache

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// PathString resolves a dotted path (already split on ".") against whatever
// request-scoped or config-scoped context is rendering the template. It
// returns (value, true) on a hit, ("", false) when the path has no value.
type PathString interface {
	PathString(path []string) (string, bool)
}

// HasHeaders exposes the inbound header map a template's "headers" head can
// read from.
type HasHeaders interface {
	Headers() map[string][]string
}

// ErrRequiredMissing is returned by Render when a segment marked required
// resolves to nothing.
var ErrRequiredMissing = errors.New("mustache: required expression resolved to no value")

type segment struct {
	literal  string
	expr     []string // nil for a literal segment
	required bool
}

// Template is a parsed, render-many mustache string.
type Template struct {
	raw      string
	segments []segment
}

// Parse parses a mustache string. A bare "{{.a.b.c}}" expression renders the
// dotted path resolved through PathString. Unbalanced "{{"/"}}" is an error.
func Parse(s string) (*Template, error) {
	t := &Template{raw: s}
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "{{")
		if start < 0 {
			t.segments = append(t.segments, segment{literal: s[i:]})
			break
		}
		start += i
		if start > i {
			t.segments = append(t.segments, segment{literal: s[i:start]})
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			return nil, fmt.Errorf("mustache: unterminated expression in %q", s)
		}
		end += start
		inner := strings.TrimSpace(s[start+2 : end])
		required := true
		inner = strings.TrimPrefix(inner, ".")
		if inner == "" {
			return nil, fmt.Errorf("mustache: empty expression in %q", s)
		}
		t.segments = append(t.segments, segment{expr: strings.Split(inner, "."), required: required})
		i = end + 2
	}
	if len(t.segments) == 0 {
		t.segments = append(t.segments, segment{literal: ""})
	}
	return t, nil
}

// MustParse is Parse but panics on error; useful for builtin/static templates.
func MustParse(s string) *Template {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the original source text.
func (t *Template) String() string { return t.raw }

// IsConst reports whether the template has no expressions (pure literal),
// letting callers skip PathString entirely for static values.
func (t *Template) IsConst() bool {
	for _, seg := range t.segments {
		if seg.expr != nil {
			return false
		}
	}
	return true
}

// ExpressionContainsHead reports whether any expression's first path
// segment equals head — used to locate the batch-join discriminant query
// param, whose template contains "{{.value}}".
func (t *Template) ExpressionContainsHead(head string) bool {
	for _, seg := range t.segments {
		if seg.expr != nil && len(seg.expr) > 0 && seg.expr[0] == head {
			return true
		}
	}
	return false
}

// Render renders the template against ctx. Missing optional expressions
// render to the empty string; this function never marks an expression
// required — RenderRequired does, for callers that must fail loudly
// (e.g. a required URL path segment).
func (t *Template) Render(ctx PathString) (string, error) {
	return t.render(ctx, false)
}

// RenderRequired is Render but returns ErrRequiredMissing if any expression
// fails to resolve.
func (t *Template) RenderRequired(ctx PathString) (string, error) {
	return t.render(ctx, true)
}

func (t *Template) render(ctx PathString, strict bool) (string, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.expr == nil {
			b.WriteString(seg.literal)
			continue
		}
		val, ok := ctx.PathString(seg.expr)
		if !ok {
			if strict {
				return "", fmt.Errorf("%w: {{.%s}}", ErrRequiredMissing, strings.Join(seg.expr, "."))
			}
			continue
		}
		b.WriteString(val)
	}
	return b.String(), nil
}

// RenderPathEscaped is Render but percent-encodes each expression's
// rendered value as a URL path segment, for use inside a request path.
func (t *Template) RenderPathEscaped(ctx PathString) (string, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.expr == nil {
			b.WriteString(seg.literal)
			continue
		}
		val, ok := ctx.PathString(seg.expr)
		if !ok {
			continue
		}
		b.WriteString(url.PathEscape(val))
	}
	return b.String(), nil
}
