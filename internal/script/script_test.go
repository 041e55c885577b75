package script_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/script"
)

func TestWorkerSerializesCallsOntoOneGoroutine(t *testing.T) {
	var activeCount, maxActive int
	ch := make(chan struct{})

	engine := script.NewFuncEngine(map[string]script.Func{
		"greet": func(input any) (any, error) {
			activeCount++
			if activeCount > maxActive {
				maxActive = activeCount
			}
			<-ch
			activeCount--
			return "hello " + input.(string), nil
		},
	})
	w := script.NewWorker(engine)
	defer w.Close()

	done := make(chan struct{})
	go func() {
		v, err := w.Call(context.Background(), "greet", "a")
		require.NoError(t, err)
		require.Equal(t, "hello a", v)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	close(ch)
	<-done

	require.Equal(t, 1, maxActive)
}

func TestWorkerCallReturnsUnknownFunctionError(t *testing.T) {
	w := script.NewWorker(script.NewFuncEngine(nil))
	defer w.Close()

	_, err := w.Call(context.Background(), "missing", nil)
	require.ErrorIs(t, err, script.ErrUnknownFunction)
}

func TestWorkerCallRespectsContextCancellation(t *testing.T) {
	w := script.NewWorker(script.NewFuncEngine(map[string]script.Func{
		"slow": func(any) (any, error) {
			time.Sleep(50 * time.Millisecond)
			return nil, nil
		},
	}))
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := w.Call(ctx, "slow", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
