// Package valid implements the accumulating validation framework used by
// the blueprint compiler: every compile step returns a Valid[T] instead of
// a plain error, so unrelated problems surface together in one pass.
package valid

import (
	"fmt"
	"strings"
)

// Cause is a single validation failure with a trace of the frames it
// unwound through (pushed front-to-back as the call stack returns).
type Cause struct {
	Message string
	Trace   []string
}

// ValidationError is the accumulated, final form of one or more Causes.
type ValidationError struct {
	Causes []Cause
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("Validation Error\n")
	for _, c := range e.Causes {
		b.WriteString("• ")
		b.WriteString(c.Message)
		if len(c.Trace) > 0 {
			b.WriteString(" [")
			b.WriteString(strings.Join(c.Trace, ", "))
			b.WriteString("]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Valid is either a successful value or a non-empty list of causes.
// Unlike a plain error-returning function, two Valid values can be combined
// with And/Zip without losing either side's causes.
type Valid[T any] struct {
	value  T
	causes []Cause
}

// Succeed lifts a value into Valid with no causes.
func Succeed[T any](v T) Valid[T] { return Valid[T]{value: v} }

// Fail produces a Valid carrying a single-message cause.
func Fail[T any](msg string) Valid[T] {
	return Valid[T]{causes: []Cause{{Message: msg}}}
}

// Failf is Fail with fmt.Sprintf formatting.
func Failf[T any](format string, args ...any) Valid[T] {
	return Fail[T](fmt.Sprintf(format, args...))
}

// FailWith wraps an already-built Cause.
func FailWith[T any](c Cause) Valid[T] {
	return Valid[T]{causes: []Cause{c}}
}

// FailWhen returns Fail(msg) if cond is true, else Succeed(zero).
func FailWhen[T any](cond bool, msg string) Valid[T] {
	if cond {
		return Fail[T](msg)
	}
	var zero T
	return Succeed(zero)
}

// IsSucceed reports whether v carries no causes.
func (v Valid[T]) IsSucceed() bool { return len(v.causes) == 0 }

// Causes returns the accumulated causes, empty if none.
func (v Valid[T]) Causes() []Cause { return v.causes }

// And runs other regardless of whether v failed, keeping v's value but
// accumulating causes from both sides. This is what makes compile-time
// validation exhaustive instead of short-circuiting.
func And[T, U any](v Valid[T], other Valid[U]) Valid[T] {
	out := Valid[T]{value: v.value}
	out.causes = append(out.causes, v.causes...)
	out.causes = append(out.causes, other.causes...)
	return out
}

// Zip2 combines two independently-validated values into a tuple, running
// both sides and accumulating causes from both even if one already failed.
func Zip2[A, B any](a Valid[A], b Valid[B]) Valid[[2]any] {
	out := Valid[[2]any]{value: [2]any{a.value, b.value}}
	out.causes = append(out.causes, a.causes...)
	out.causes = append(out.causes, b.causes...)
	return out
}

// AndThen is the monadic bind: f only runs when v succeeded; f's causes are
// appended to v's (which are empty in that case) and the trace prefix
// carried so far is preserved since Trace is applied post-hoc by callers.
func AndThen[T, U any](v Valid[T], f func(T) Valid[U]) Valid[U] {
	if !v.IsSucceed() {
		var zero U
		return Valid[U]{value: zero, causes: v.causes}
	}
	return f(v.value)
}

// Map transforms the success value, leaving causes untouched.
func Map[T, U any](v Valid[T], f func(T) U) Valid[U] {
	if !v.IsSucceed() {
		return Valid[U]{causes: v.causes}
	}
	return Valid[U]{value: f(v.value)}
}

// MapTo replaces the success value with a constant.
func MapTo[T, U any](v Valid[T], u U) Valid[U] {
	return Map(v, func(T) U { return u })
}

// Unit discards the value, keeping only success/failure and causes.
func Unit[T any](v Valid[T]) Valid[struct{}] {
	return MapTo(v, struct{}{})
}

// Trace prepends a trace segment to every accumulated cause. Called as the
// validation frame unwinds, so the innermost segment ends up first.
func (v Valid[T]) Trace(segment string) Valid[T] {
	if len(v.causes) == 0 {
		return v
	}
	out := Valid[T]{value: v.value, causes: make([]Cause, len(v.causes))}
	for i, c := range v.causes {
		trace := make([]string, 0, len(c.Trace)+1)
		trace = append(trace, segment)
		trace = append(trace, c.Trace...)
		out.causes[i] = Cause{Message: c.Message, Trace: trace}
	}
	return out
}

// FromIter applies f to every element of items, never short-circuiting:
// every element is visited and every cause surfaces, in item order.
func FromIter[E, T any](items []E, f func(E) Valid[T]) Valid[[]T] {
	out := make([]T, 0, len(items))
	var causes []Cause
	for _, item := range items {
		r := f(item)
		out = append(out, r.value)
		causes = append(causes, r.causes...)
	}
	return Valid[[]T]{value: out, causes: causes}
}

// ToResult converts a Valid into a (value, error) pair, matching ordinary
// Go error handling at the boundary where accumulation stops being useful
// (e.g. returning from blueprint.Compile to its caller).
func (v Valid[T]) ToResult() (T, error) {
	if v.IsSucceed() {
		return v.value, nil
	}
	var zero T
	return zero, &ValidationError{Causes: v.causes}
}

// FromOption succeeds with *v when non-nil, else fails with msg.
func FromOption[T any](v *T, msg string) Valid[T] {
	if v == nil {
		return Fail[T](msg)
	}
	return Succeed(*v)
}

// TryFold is a composable step in a larger fold: given the immutable input
// and the partial output built so far, produce the next partial output (or
// causes). TryFolds compose with Then, mirroring the Rust TryFold::and.
type TryFold[I, O any] func(input I, partial O) Valid[O]

// Then composes two TryFolds left-to-right, running the second over the
// first's output regardless of whether the first failed (matching And's
// exhaustive-accumulation semantics).
func (f TryFold[I, O]) Then(g TryFold[I, O]) TryFold[I, O] {
	return func(input I, partial O) Valid[O] {
		first := f(input, partial)
		second := g(input, first.value)
		out := And(first, second)
		out.value = second.value
		return out
	}
}
