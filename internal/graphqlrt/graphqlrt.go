// Package graphqlrt evaluates the @graphQL IO leaf: renders the compiled
// reqtemplate.GraphQL query, dispatches it to the configured upstream, and
// extracts the named field out of the response envelope.
package graphqlrt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tailcall-oss/gateway/internal/ir"
)

// Doer is the subset of *http.Client Runtime dispatches through.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Runtime implements the GraphQL slice of ir.Resolvers.
type Runtime struct {
	Doer Doer
}

// New constructs a Runtime.
func New(doer Doer) *Runtime {
	return &Runtime{Doer: doer}
}

type upstreamEnvelope struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []upstreamError            `json:"errors"`
}

type upstreamError struct {
	Message string `json:"message"`
}

// ResolveGraphQL implements ir.Resolvers.
func (rt *Runtime) ResolveGraphQL(ctx *ir.EvalContext, leaf *ir.GraphQLIO) (any, error) {
	rendered, err := leaf.Template.Render(ctx)
	if err != nil {
		return nil, fmt.Errorf("graphqlrt: rendering query: %w", err)
	}

	payload, err := json.Marshal(map[string]any{"query": rendered.Query, "variables": rendered.Variables})
	if err != nil {
		return nil, fmt.Errorf("graphqlrt: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx.Context, http.MethodPost, rendered.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("graphqlrt: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range rendered.Headers {
		req.Header.Set(k, v)
	}

	resp, err := rt.Doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphqlrt: dispatching request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("graphqlrt: reading response: %w", err)
	}

	var env upstreamEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("graphqlrt: decoding response: %w", err)
	}
	if len(env.Errors) > 0 {
		return nil, fmt.Errorf("graphqlrt: upstream error: %s", env.Errors[0].Message)
	}

	raw, ok := env.Data[leaf.FieldName]
	if !ok {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("graphqlrt: decoding field %q: %w", leaf.FieldName, err)
	}
	return v, nil
}
