// Package script runs the @js directive and the @http onRequest hook on a
// single dedicated goroutine, reached through a bounded channel mailbox.
// No JS engine ships in the example corpus this gateway was built from, so
// Engine is a small interface boundary plus a deterministic in-process
// implementation (a registry of named Go functions) standing in for an
// embedded JS runtime.
package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Engine executes one named function against an input value, the contract
// both the real embedded-JS case and this package's stand-in share.
type Engine interface {
	Call(name string, input any) (any, error)
}

// Func is a single registered function; FuncEngine is the deterministic
// stand-in Engine built from a fixed set of them.
type Func func(input any) (any, error)

// FuncEngine dispatches Call by name to a fixed registry of Go functions.
type FuncEngine struct {
	funcs map[string]Func
}

// NewFuncEngine builds an Engine from a name->Func registry.
func NewFuncEngine(funcs map[string]Func) *FuncEngine {
	return &FuncEngine{funcs: funcs}
}

// ErrUnknownFunction is returned when Call names a function the engine was
// not built with.
var ErrUnknownFunction = errors.New("script: unknown function")

// Call implements Engine.
func (e *FuncEngine) Call(name string, input any) (any, error) {
	fn, ok := e.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return fn(input)
}

type call struct {
	name   string
	input  any
	result chan callResult
}

type callResult struct {
	value any
	err   error
}

// Worker serializes every Engine.Call onto one goroutine, so a JS engine
// that assumes single-threaded access (the real embedded runtimes do) is
// never invoked concurrently. It is started lazily on the first Call and
// must be stopped with Close when the gateway shuts down.
type Worker struct {
	engine Engine
	calls  chan call

	startOnce sync.Once
	closeOnce sync.Once
}

// NewWorker constructs a Worker around engine. The goroutine is not
// started until the first Call.
func NewWorker(engine Engine) *Worker {
	return &Worker{engine: engine, calls: make(chan call)}
}

func (w *Worker) start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

func (w *Worker) run() {
	for c := range w.calls {
		v, err := w.engine.Call(c.name, c.input)
		c.result <- callResult{value: v, err: err}
	}
}

// Call invokes name(input) on the worker goroutine, blocking until the
// result is ready or ctx is canceled.
func (w *Worker) Call(ctx context.Context, name string, input any) (any, error) {
	w.start()
	c := call{name: name, input: input, result: make(chan callResult, 1)}
	select {
	case w.calls <- c:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-c.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the worker goroutine. It is safe to call multiple times and
// safe to call even if the worker was never started.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.calls)
	})
}
