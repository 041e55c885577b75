// Package httprt evaluates the @http IO leaf: renders the compiled
// reqtemplate.HTTP against the current EvalContext, optionally runs the
// onRequest script hook, dispatches through a per-field HTTPGroupLoader
// when the field is batched, and decodes the JSON response body.
package httprt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tailcall-oss/gateway/internal/dataloader"
	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/reqtemplate"
	"github.com/tailcall-oss/gateway/internal/script"
)

// Doer is the subset of *http.Client Runtime dispatches unbatched calls
// through.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Runtime implements the HTTP slice of ir.Resolvers.
type Runtime struct {
	Doer    Doer
	Loaders []*dataloader.HTTPGroupLoader // indexed by ir.HTTPIO.DLID
	Scripts *script.Worker                // runs @http.onRequest hooks; hooks are skipped when nil
}

// New constructs a Runtime. loaders is the slice appcontext.New builds,
// the one ir.HTTPIO.DLID indexes into.
func New(doer Doer, loaders []*dataloader.HTTPGroupLoader, scripts *script.Worker) *Runtime {
	return &Runtime{Doer: doer, Loaders: loaders, Scripts: scripts}
}

// ResolveHTTP implements ir.Resolvers.
func (rt *Runtime) ResolveHTTP(ctx *ir.EvalContext, leaf *ir.HTTPIO) (any, error) {
	rendered, err := leaf.Template.Render(ctx)
	if err != nil {
		return nil, fmt.Errorf("httprt: rendering request: %w", err)
	}

	if leaf.Filter != nil && rt.Scripts != nil {
		filtered, err := rt.Scripts.Call(ctx.Context, leaf.Filter.ScriptName, rendered)
		if err != nil {
			return nil, fmt.Errorf("httprt: onRequest hook %q: %w", leaf.Filter.ScriptName, err)
		}
		if r, ok := filtered.(*reqtemplate.RenderedRequest); ok {
			rendered = r
		}
	}

	var body json.RawMessage
	if leaf.DLID != nil {
		if *leaf.DLID < 0 || *leaf.DLID >= len(rt.Loaders) {
			return nil, fmt.Errorf("httprt: dataloader index %d out of range", *leaf.DLID)
		}
		body, err = rt.Loaders[*leaf.DLID].Load(ctx.Context, rendered)
	} else {
		body, err = rt.doDirect(ctx.Context, rendered)
	}
	if err != nil {
		return nil, err
	}

	return decodeJSON(body)
}

func (rt *Runtime) doDirect(ctx context.Context, rendered *reqtemplate.RenderedRequest) (json.RawMessage, error) {
	req, err := rendered.ToHTTPRequest()
	if err != nil {
		return nil, fmt.Errorf("httprt: building request: %w", err)
	}
	req = req.WithContext(ctx)

	resp, err := rt.Doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httprt: dispatching request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httprt: reading response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("httprt: upstream returned status %d", resp.StatusCode)
	}
	return body, nil
}

func decodeJSON(body json.RawMessage) (any, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("httprt: decoding response body: %w", err)
	}
	return v, nil
}
